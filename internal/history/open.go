package history

import (
	"fmt"

	"github.com/framingham-risk-server/internal/domain"
)

// Open creates the store selected by cfg. It returns a nil Store when history is disabled.
// databaseURL is only used by the postgres backend.
func Open(cfg domain.HistoryConfig, databaseURL string) (Store, error) {
	switch cfg.Backend {
	case domain.HistoryBackendNone, "":
		return nil, nil
	case domain.HistoryBackendSQLite:
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case domain.HistoryBackendPostgres:
		store, err := NewPostgresStoreFromURL(databaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}
