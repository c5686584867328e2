package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL prediction store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL prediction store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save records a prediction.
func (s *PostgresStore) Save(ctx context.Context, p *domain.Prediction) error {
	prepare(p, uuid.NewString)

	query := `
		INSERT INTO predictions (
			id, patient_id, test_id, request_id, model, shape, input,
			probability, label, low_confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
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
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// Get retrieves a prediction by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM predictions WHERE id = $1", id)

	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s not found: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// List returns predictions matching filter, newest first.
func (s *PostgresStore) List(ctx context.Context, filter domain.PredictionFilter) ([]*domain.Prediction, error) {
	where, args := whereClause(filter, dollar)
	page, args := pageClause(filter, dollar, args)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM predictions"+where+" ORDER BY created_at DESC, id"+page,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
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
func (s *PostgresStore) Count(ctx context.Context, filter domain.PredictionFilter) (int, error) {
	where, args := whereClause(filter, dollar)

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// ListByPatient returns the most recent predictions of one patient.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.Prediction, error) {
	return s.List(ctx, domain.PredictionFilter{PatientID: patientID, Limit: limit})
}

// Delete removes a prediction by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM predictions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("prediction %s not found: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON exports all predictions to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, w io.Writer) error {
	all, err := s.List(ctx, domain.PredictionFilter{Limit: maxExportLimit})
	if err != nil {
		return fmt.Errorf("failed to list predictions: %w", err)
	}
	return encodeExport(w, all)
}

// ImportJSON imports predictions from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, r io.Reader) (imported int, skipped int, err error) {
	return importPredictions(ctx, s, r)
}

// ExportXLSX writes predictions matching filter as a spreadsheet.
func (s *PostgresStore) ExportXLSX(ctx context.Context, w io.Writer, filter domain.PredictionFilter) error {
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
