package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/domain"
)

// PredictionRepository serves analytics queries over the predictions table
type PredictionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *pgxpool.Pool, logger *logrus.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:  db,
		log: logger,
	}
}

// Save inserts a prediction, assigning an ID and timestamp when absent
func (r *PredictionRepository) Save(ctx context.Context, p *domain.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	input := string(p.Input)
	if input == "" {
		input = "{}"
	}

	query := `
		INSERT INTO predictions (
			id, patient_id, test_id, request_id, model, shape, input,
			probability, label, low_confidence, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.PatientID, p.TestID, p.RequestID, p.Model, p.Shape, input,
		p.Probability, p.Label, p.LowConfidence, p.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"prediction_id": p.ID,
			"model":         p.Model,
			"error":         err,
		}).Error("Failed to create prediction")
		return fmt.Errorf("creating prediction: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"prediction_id": p.ID,
		"model":         p.Model,
		"label":         p.Label,
	}).Debug("Prediction created")

	return nil
}

// GetByID retrieves a prediction by its ID
func (r *PredictionRepository) GetByID(ctx context.Context, id string) (*domain.Prediction, error) {
	query := `
		SELECT id, patient_id, test_id, request_id, model, shape, input,
			   probability, label, low_confidence, created_at
		FROM predictions
		WHERE id = $1`

	var p domain.Prediction
	var input string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.PatientID, &p.TestID, &p.RequestID, &p.Model, &p.Shape, &input,
		&p.Probability, &p.Label, &p.LowConfidence, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("prediction not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"prediction_id": id,
			"error":         err,
		}).Error("Failed to get prediction by ID")
		return nil, fmt.Errorf("getting prediction by ID: %w", err)
	}
	p.Input = []byte(input)

	return &p, nil
}

// Summary counts predictions per model and label created at or after since.
// A zero since covers all history.
func (r *PredictionRepository) Summary(ctx context.Context, since time.Time) ([]domain.RiskSummary, error) {
	query := `
		SELECT model, label, COUNT(*), AVG(probability)
		FROM predictions
		WHERE created_at >= $1
		GROUP BY model, label
		ORDER BY model, label`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		r.log.WithError(err).Error("Failed to query risk summary")
		return nil, fmt.Errorf("querying risk summary: %w", err)
	}
	defer rows.Close()

	var summaries []domain.RiskSummary
	for rows.Next() {
		var s domain.RiskSummary
		if err := rows.Scan(&s.Model, &s.Label, &s.Count, &s.AvgProbability); err != nil {
			return nil, fmt.Errorf("scanning risk summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating risk summary: %w", err)
	}

	return summaries, nil
}

// HighRisk lists the most recent predictions at or above the high-risk threshold
func (r *PredictionRepository) HighRisk(ctx context.Context, limit int) ([]*domain.Prediction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, patient_id, test_id, model, probability, label, created_at
		FROM high_risk_predictions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.WithError(err).Error("Failed to query high-risk predictions")
		return nil, fmt.Errorf("querying high-risk predictions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Prediction
	for rows.Next() {
		p := &domain.Prediction{}
		if err := rows.Scan(&p.ID, &p.PatientID, &p.TestID, &p.Model, &p.Probability, &p.Label, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning high-risk prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating high-risk predictions: %w", err)
	}

	return out, nil
}

// PurgeBefore deletes predictions older than cutoff and returns how many were removed
func (r *PredictionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM predictions WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging predictions: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"cutoff":  cutoff,
		"deleted": tag.RowsAffected(),
	}).Info("Purged old predictions")

	return tag.RowsAffected(), nil
}
