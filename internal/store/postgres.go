package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the relational backing for patterns, decisions and feedback
// events. No bespoke formats: three plain tables, read-committed isolation.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and applies the schema
func New(ctx context.Context, connectionString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Printf("Connected to Postgres, schema ready")

	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id                    UUID PRIMARY KEY,
	type                  TEXT NOT NULL,
	value                 TEXT NOT NULL,
	tenant_id             TEXT NOT NULL DEFAULT '',
	success_count         BIGINT NOT NULL DEFAULT 0,
	failure_count         BIGINT NOT NULL DEFAULT 0,
	accuracy              DOUBLE PRECISION NOT NULL DEFAULT 0,
	multiplier            DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	archived              BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (type, value, tenant_id)
);

CREATE TABLE IF NOT EXISTS decisions (
	id                    UUID PRIMARY KEY,
	tenant_id             TEXT NOT NULL,
	finding_id            TEXT NOT NULL,
	attempt               INT NOT NULL,
	source_status         TEXT NOT NULL,
	classification        TEXT NOT NULL,
	raw_confidence        DOUBLE PRECISION NOT NULL,
	calibrated_confidence DOUBLE PRECISION NOT NULL,
	pattern_ids           TEXT[] NOT NULL DEFAULT '{}',
	action                TEXT NOT NULL,
	reasoning             TEXT NOT NULL DEFAULT '',
	spot_check            BOOLEAN NOT NULL DEFAULT FALSE,
	mandatory_confirm     BOOLEAN NOT NULL DEFAULT FALSE,
	outcome               TEXT NOT NULL DEFAULT 'pending',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, finding_id, attempt)
);

CREATE INDEX IF NOT EXISTS idx_decisions_pending
	ON decisions (created_at) WHERE outcome = 'pending';

CREATE TABLE IF NOT EXISTS feedback_events (
	id           UUID PRIMARY KEY,
	decision_id  UUID NOT NULL REFERENCES decisions(id),
	tenant_id    TEXT NOT NULL,
	finding_id   TEXT NOT NULL,
	final_status TEXT NOT NULL,
	resolution   TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL,
	pattern_ids  TEXT[] NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks store health
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		log.Printf("Disconnected from Postgres")
	}
}
