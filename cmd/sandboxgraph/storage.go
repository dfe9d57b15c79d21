package main

import (
	"context"
	"fmt"

	"github.com/conneroisu/sandboxgraph/internal/config"
	"github.com/conneroisu/sandboxgraph/internal/storage"
)

func newStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		entries := cfg.MemoryEntries
		if entries == 0 {
			entries = 256
		}
		return storage.NewMemoryStorage(entries)
	case "postgres":
		return storage.NewPostgresStorage(ctx, cfg.PostgresURL)
	case "minio":
		return storage.NewMinioStorage(ctx, cfg.MinioEndpoint, cfg.MinioAccess, cfg.MinioSecret, cfg.MinioBucket, cfg.MinioSecure)
	default:
		return nil, fmt.Errorf("sandboxgraph: unknown storage backend %q", cfg.Backend)
	}
}
