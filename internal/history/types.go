// Package history records scored predictions for audit and analytics.
// Recording is best effort: callers log failures and never fail a scoring request on them.
package history

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/framingham-risk-server/internal/domain"
)

// Store defines the interface for prediction history storage.
type Store interface {
	// Save records a prediction. An empty ID is replaced with a new UUID.
	Save(ctx context.Context, p *domain.Prediction) error

	// Get retrieves a prediction by ID. Returns domain.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*domain.Prediction, error)

	// List returns predictions matching filter, newest first.
	List(ctx context.Context, filter domain.PredictionFilter) ([]*domain.Prediction, error)

	// Count returns the number of predictions matching filter, ignoring Limit and Offset.
	Count(ctx context.Context, filter domain.PredictionFilter) (int, error)

	// ListByPatient returns the most recent predictions of one patient.
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.Prediction, error)

	// Delete removes a prediction by ID. Returns domain.ErrNotFound when absent.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes all predictions as a PredictionExport document.
	ExportJSON(ctx context.Context, w io.Writer) error

	// ImportJSON loads a PredictionExport document, skipping IDs that already exist.
	ImportJSON(ctx context.Context, r io.Reader) (imported int, skipped int, err error)

	// ExportXLSX writes predictions matching filter as a spreadsheet.
	ExportXLSX(ctx context.Context, w io.Writer, filter domain.PredictionFilter) error

	// Close closes the store and releases resources.
	Close() error
}

// PredictionExport represents the JSON export format.
type PredictionExport struct {
	Version     string               `json:"version"`
	ExportedAt  time.Time            `json:"exported_at"`
	Count       int                  `json:"count"`
	Predictions []*domain.Prediction `json:"predictions"`
}

// exportVersion is the current PredictionExport format version
const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// DefaultListLimit is applied when a filter carries no limit.
const DefaultListLimit = 100

// placeholder renders the n-th (1-based) bind parameter of a SQL dialect
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// whereClause builds the WHERE part of a history query from filter
func whereClause(filter domain.PredictionFilter, ph placeholder) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(column string, op string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s %s %s", column, op, ph(len(args))))
	}

	if filter.PatientID != "" {
		add("patient_id", "=", filter.PatientID)
	}
	if filter.Model != "" {
		add("model", "=", filter.Model)
	}
	if filter.Label != "" {
		add("label", "=", filter.Label)
	}
	if !filter.Since.IsZero() {
		add("created_at", ">=", filter.Since.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// pageClause appends LIMIT/OFFSET bind parameters
func pageClause(filter domain.PredictionFilter, ph placeholder, args []interface{}) (string, []interface{}) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	return fmt.Sprintf(" LIMIT %s OFFSET %s", ph(len(args)-1), ph(len(args))), args
}

// prepare fills the fields a store assigns on insert
func prepare(p *domain.Prediction, newID func() string) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if len(p.Input) == 0 {
		p.Input = []byte("{}")
	}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, patient_id, test_id, request_id, model, shape, input,
	probability, label, low_confidence, created_at`

// scanPrediction scans a row selected with selectColumns
func scanPrediction(s scanner) (*domain.Prediction, error) {
	p := &domain.Prediction{}
	var input string

	err := s.Scan(
		&p.ID, &p.PatientID, &p.TestID, &p.RequestID, &p.Model, &p.Shape, &input,
		&p.Probability, &p.Label, &p.LowConfidence, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Input = []byte(input)
	return p, nil
}
