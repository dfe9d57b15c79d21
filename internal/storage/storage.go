// Package storage implements the §6 Storage collaborator contract —
// opaque save(blob)/load() keyed by sandboxId — with three interchangeable
// backends wiring the domain dependencies retrieved for this spec:
// an in-memory LRU, a Postgres-backed store, and an S3/minio object store.
package storage

import "context"

// Storage is the persistence collaborator the graph manager's save/load
// consume. The blob's internal shape (serialize.Blob, marshaled) is
// private to the core; Storage only ever sees bytes.
type Storage interface {
	Save(ctx context.Context, sandboxID string, blob []byte) error
	Load(ctx context.Context, sandboxID string) ([]byte, bool, error)
	Clear(ctx context.Context, sandboxID string) error
}
