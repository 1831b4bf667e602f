package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotSink persists a point-in-time Stats snapshot for external
// observability. It is explicitly NOT a write-ahead log: losing a sink
// write never affects engine correctness (spec.md §1 Non-goals: no
// persistence/WAL). Engines operate identically with a nil sink.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, engineID string, at time.Time, s Stats) error
	Close()
}

// PostgresSnapshotSink is a best-effort pgx-backed SnapshotSink, modeled on
// the teacher's connection-pool-by-config persistence layer: a failed
// connection degrades to "continue without persisting", never a fatal
// error for the engine.
type PostgresSnapshotSink struct {
	pool *pgxpool.Pool
}

// ConnectSnapshotSink opens a pgx pool against connStr. Callers should log
// and continue without a sink on error, exactly as cmd/engine does for its
// database connection.
func ConnectSnapshotSink(connStr string) (*PostgresSnapshotSink, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to snapshot database: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("snapshot database ping failed: %w", err)
	}
	log.Println("Successfully connected to PostgreSQL for engine stats snapshots")
	return &PostgresSnapshotSink{pool: pool}, nil
}

// InitSchema creates the engine_stats_snapshot table if it does not exist.
func (s *PostgresSnapshotSink) InitSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS engine_stats_snapshot (
			engine_id     TEXT NOT NULL,
			taken_at      TIMESTAMPTZ NOT NULL,
			fact_count    BIGINT NOT NULL,
			cache_hits    BIGINT NOT NULL,
			cache_misses  BIGINT NOT NULL,
			inserts       BIGINT NOT NULL,
			removes       BIGINT NOT NULL,
			PRIMARY KEY (engine_id, taken_at)
		);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// SaveSnapshot inserts one row per call; callers are expected to call this
// periodically (e.g. from a monitor tick), not per-batch.
func (s *PostgresSnapshotSink) SaveSnapshot(ctx context.Context, engineID string, at time.Time, snap Stats) error {
	const sql = `
		INSERT INTO engine_stats_snapshot
			(engine_id, taken_at, fact_count, cache_hits, cache_misses, inserts, removes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (engine_id, taken_at) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, sql, engineID, at, snap.FactCount, snap.CacheHits, snap.CacheMisses, snap.Inserts, snap.Removes)
	return err
}

func (s *PostgresSnapshotSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
