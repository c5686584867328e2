package domain

import (
	"context"
)

// PredictionRecorder persists scored predictions
type PredictionRecorder interface {
	Save(ctx context.Context, p *Prediction) error
}

// PredictionReader reads recorded predictions back
type PredictionReader interface {
	Get(ctx context.Context, id string) (*Prediction, error)
	List(ctx context.Context, filter PredictionFilter) ([]*Prediction, error)
	Count(ctx context.Context, filter PredictionFilter) (int, error)
}

// EventPublisher notifies downstream consumers about high-risk predictions
type EventPublisher interface {
	PublishHighRisk(ctx context.Context, event HighRiskEvent) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
