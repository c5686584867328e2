package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite prediction store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a prediction is being written
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL DEFAULT '',
		test_id TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL,
		shape TEXT NOT NULL DEFAULT 'current',
		input TEXT NOT NULL DEFAULT '{}',
		probability REAL NOT NULL,
		label TEXT NOT NULL,
		low_confidence INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_patient ON predictions(patient_id);
	CREATE INDEX IF NOT EXISTS idx_predictions_model_label ON predictions(model, label);
	CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save records a prediction.
func (s *SQLiteStore) Save(ctx context.Context, p *domain.Prediction) error {
	prepare(p, uuid.NewString)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (
			id, patient_id, test_id, request_id, model, shape, input,
			probability, label, low_confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.PatientID,
		p.TestID,
		p.RequestID,
		p.Model,
		p.Shape,
		string(p.Input),
		p.Probability,
		p.Label,
		p.LowConfidence,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves a prediction by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM predictions WHERE id = ?", id)

	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s not found: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return p, nil
}

// List returns predictions matching filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter domain.PredictionFilter) ([]*domain.Prediction, error) {
	where, args := whereClause(filter, questionMark)
	page, args := pageClause(filter, questionMark, args)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM predictions"+where+" ORDER BY created_at DESC, id"+page,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Count returns the number of predictions matching filter.
func (s *SQLiteStore) Count(ctx context.Context, filter domain.PredictionFilter) (int, error) {
	where, args := whereClause(filter, questionMark)

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return count, nil
}

// ListByPatient returns the most recent predictions of one patient.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.Prediction, error) {
	return s.List(ctx, domain.PredictionFilter{PatientID: patientID, Limit: limit})
}

// Delete removes a prediction by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM predictions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("prediction %s not found: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON exports all predictions to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, w io.Writer) error {
	all, err := s.List(ctx, domain.PredictionFilter{Limit: maxExportLimit})
	if err != nil {
		return fmt.Errorf("failed to list predictions: %w", err)
	}
	return encodeExport(w, all)
}

// ImportJSON imports predictions from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, r io.Reader) (imported int, skipped int, err error) {
	return importPredictions(ctx, s, r)
}

// ExportXLSX writes predictions matching filter as a spreadsheet.
func (s *SQLiteStore) ExportXLSX(ctx context.Context, w io.Writer, filter domain.PredictionFilter) error {
	if filter.Limit <= 0 {
		filter.Limit = maxExportLimit
	}
	preds, err := s.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list predictions: %w", err)
	}
	return WriteXLSX(w, preds)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeExport(w io.Writer, preds []*domain.Prediction) error {
	export := &PredictionExport{
		Version:     exportVersion,
		ExportedAt:  time.Now().UTC(),
		Count:       len(preds),
		Predictions: preds,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importPredictions loads an export document into any Store, skipping known IDs
func importPredictions(ctx context.Context, store Store, r io.Reader) (imported int, skipped int, err error) {
	var export PredictionExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, p := range export.Predictions {
		if p.ID != "" {
			_, err := store.Get(ctx, p.ID)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
		}

		if err := store.Save(ctx, p); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
