// Package audit records one row per explanation attempt and reads the most
// recent rows back for display.
package audit

import (
	"fmt"

	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/logger"
)

// New opens the backend selected by cfg.Backend.
func New(cfg config.AuditConfig, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "csv":
		return NewCSVStore(cfg.Path, log), nil
	case "redis":
		return NewRedisStore(cfg.Redis.URL, cfg.Redis.Key, cfg.Redis.MaxRows, log)
	case "postgres":
		return NewPostgresStore(cfg.Postgres, log)
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Backend)
	}
}
