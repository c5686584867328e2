package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framingham-risk-server/internal/domain"
)

func testBreakerConfig() domain.BreakerConfig {
	return domain.BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Hour,
		FailureThreshold: 3,
	}
}

func TestResilientRecorder_TripsAfterThreshold(t *testing.T) {
	logger, _ := newTestLogger()
	next := &fakeRecorder{err: errors.New("connection refused")}
	r := NewResilientRecorder(next, testBreakerConfig(), logger)

	for i := 0; i < 3; i++ {
		err := r.Save(context.Background(), &domain.Prediction{ID: "p"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	assert.Equal(t, gobreaker.StateOpen, r.State())
	err := r.Save(context.Background(), &domain.Prediction{ID: "p"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResilientRecorder_PassesThrough(t *testing.T) {
	logger, _ := newTestLogger()
	next := &fakeRecorder{}
	r := NewResilientRecorder(next, testBreakerConfig(), logger)

	require.NoError(t, r.Save(context.Background(), &domain.Prediction{ID: "p1"}))
	assert.Equal(t, 1, next.count())
	assert.Equal(t, gobreaker.StateClosed, r.State())
}

func TestResilientPublisher_TripsAfterThreshold(t *testing.T) {
	logger, _ := newTestLogger()
	next := &fakePublisher{err: errors.New("timeout")}
	p := NewResilientPublisher(next, testBreakerConfig(), logger)

	for i := 0; i < 3; i++ {
		require.Error(t, p.PublishHighRisk(context.Background(), domain.HighRiskEvent{}))
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())
	assert.ErrorIs(t, p.PublishHighRisk(context.Background(), domain.HighRiskEvent{}), ErrUnavailable)
}
