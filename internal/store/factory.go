package store

import (
	"fmt"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
)

// New creates a blob store based on configuration.
// File stores resolve keys against the working directory, so callers pass
// cfg.Dir as part of each key.
func New(cfg config.StoreConfig, log *logger.Logger) (BlobStore, error) {
	switch cfg.Type {
	case "", "file":
		return NewFileStore(""), nil

	case "memory":
		return NewMemoryStore(), nil

	case "redis":
		s, err := NewRedisStore(cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		if log != nil {
			log.Info("Connected to redis blob store", "prefix", cfg.Prefix)
		}
		return s, nil

	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown store type: %s", cfg.Type))
	}
}
