package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/framingham-risk-server/internal/domain"
)

// ErrUnavailable is returned while a breaker is open
var ErrUnavailable = errors.New("circuit breaker open")

func newBreaker(name string, cfg domain.BreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

func execute(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", cb.Name(), ErrUnavailable)
	}
	return err
}

// ResilientRecorder guards a PredictionRecorder with a circuit breaker so a failing
// store is skipped quickly instead of being retried on every request
type ResilientRecorder struct {
	next    domain.PredictionRecorder
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewResilientRecorder wraps next
func NewResilientRecorder(next domain.PredictionRecorder, cfg domain.BreakerConfig, logger *logrus.Logger) *ResilientRecorder {
	return &ResilientRecorder{
		next:    next,
		breaker: newBreaker("history", cfg, logger),
		timeout: 5 * time.Second,
	}
}

// Save records p unless the breaker is open
func (r *ResilientRecorder) Save(ctx context.Context, p *domain.Prediction) error {
	return execute(r.breaker, func() error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.next.Save(ctx, p)
	})
}

// State reports the breaker state
func (r *ResilientRecorder) State() gobreaker.State {
	return r.breaker.State()
}

// ResilientPublisher guards an EventPublisher with a circuit breaker
type ResilientPublisher struct {
	next    domain.EventPublisher
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewResilientPublisher wraps next
func NewResilientPublisher(next domain.EventPublisher, cfg domain.BreakerConfig, logger *logrus.Logger) *ResilientPublisher {
	return &ResilientPublisher{
		next:    next,
		breaker: newBreaker("notify", cfg, logger),
		timeout: 2 * time.Second,
	}
}

// PublishHighRisk publishes event unless the breaker is open
func (p *ResilientPublisher) PublishHighRisk(ctx context.Context, event domain.HighRiskEvent) error {
	return execute(p.breaker, func() error {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.next.PublishHighRisk(ctx, event)
	})
}

// State reports the breaker state
func (p *ResilientPublisher) State() gobreaker.State {
	return p.breaker.State()
}
