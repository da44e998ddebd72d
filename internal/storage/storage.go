// Package storage persists estimation results as an optional history log.
// The core pipeline never touches storage; the API server appends a
// record after each produced result when a backend is configured.
package storage

import (
	"fmt"
	"log/slog"
	"time"

	"priceloupe/internal/config"
	"priceloupe/internal/types"
)

// Record is one stored estimation outcome.
type Record struct {
	Name      string                  `json:"name" bson:"name"`
	Result    *types.EstimationResult `json:"result" bson:"result"`
	CreatedAt time.Time               `json:"created_at" bson:"created_at"`
}

// Storage is the interface all history backends implement.
type Storage interface {
	// Name returns the backend identifier.
	Name() string

	// Store appends one estimation record.
	Store(rec *Record) error

	// Close flushes and releases the backend.
	Close() error
}

// New creates the configured history backend. Type "none" yields nil,
// meaning history is disabled.
func New(cfg *config.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "jsonl":
		return NewJSONLStorage(cfg.OutputPath, logger)
	case "mongodb":
		return NewMongoStorage(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
