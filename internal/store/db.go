package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaStatements = `
CREATE TABLE IF NOT EXISTS traffic_records (
	id                   UUID PRIMARY KEY,
	src_ip               TEXT NOT NULL,
	dst_ip               TEXT NOT NULL,
	src_port             INTEGER NOT NULL,
	dst_port             INTEGER NOT NULL,
	protocol             TEXT NOT NULL DEFAULT 'TCP',
	packet_size          BIGINT NOT NULL DEFAULT 0,
	duration             DOUBLE PRECISION NOT NULL DEFAULT 0,
	flow_bytes_per_sec   DOUBLE PRECISION NOT NULL DEFAULT 0,
	flow_packets_per_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
	fwd_packets          BIGINT NOT NULL DEFAULT 0,
	bwd_packets          BIGINT NOT NULL DEFAULT 0,
	label                TEXT NOT NULL DEFAULT 'PENDING',
	confidence           DOUBLE PRECISION,
	processed            BOOLEAN NOT NULL DEFAULT FALSE,
	captured_at          TIMESTAMPTZ NOT NULL,
	origin_file          TEXT NOT NULL DEFAULT '',
	claimed_by           TEXT,
	claimed_at           TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_traffic_records_processed ON traffic_records (processed);
CREATE INDEX IF NOT EXISTS idx_traffic_records_label ON traffic_records (label);
CREATE INDEX IF NOT EXISTS idx_traffic_records_captured_at ON traffic_records (captured_at);

CREATE TABLE IF NOT EXISTS predictions (
	id            UUID PRIMARY KEY,
	traffic_id    UUID NOT NULL REFERENCES traffic_records (id) ON DELETE CASCADE,
	label         TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	model_version TEXT NOT NULL,
	predicted_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_predictions_traffic_id ON predictions (traffic_id);
CREATE INDEX IF NOT EXISTS idx_predictions_predicted_at ON predictions (predicted_at);
`

// Store wraps the Postgres connection pool for the record store.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore connects to Postgres and verifies the connection.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Store{Pool: pool}, nil
}

// EnsureSchema creates the record store tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schemaStatements); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
