package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage persists the opaque sandbox-graph blob in a single
// table, for deployments that want durable cross-instance graph caching
// rather than a process-local cache. Grounded on the
// Keyhole-Koro-InsightifyCore pack repo's jackc/pgx/v5 usage.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to connString and ensures the backing table
// exists.
func NewPostgresStorage(ctx context.Context, connString string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS sandbox_graph_blobs (
	sandbox_id TEXT PRIMARY KEY,
	blob       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (p *PostgresStorage) Save(ctx context.Context, sandboxID string, blob []byte) error {
	const upsert = `
INSERT INTO sandbox_graph_blobs (sandbox_id, blob, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (sandbox_id) DO UPDATE SET blob = $2, updated_at = now()`
	_, err := p.pool.Exec(ctx, upsert, sandboxID, blob)
	return err
}

func (p *PostgresStorage) Load(ctx context.Context, sandboxID string) ([]byte, bool, error) {
	const query = `SELECT blob FROM sandbox_graph_blobs WHERE sandbox_id = $1`
	var blob []byte
	err := p.pool.QueryRow(ctx, query, sandboxID).Scan(&blob)
	if err != nil {
		return nil, false, nil
	}
	return blob, true, nil
}

func (p *PostgresStorage) Clear(ctx context.Context, sandboxID string) error {
	const del = `DELETE FROM sandbox_graph_blobs WHERE sandbox_id = $1`
	_, err := p.pool.Exec(ctx, del, sandboxID)
	return err
}

// Close releases the underlying connection pool.
func (p *PostgresStorage) Close() {
	p.pool.Close()
}
