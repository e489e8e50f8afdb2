package events

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/defuse-protocol/intents-settle/log"
)

// PgSink durably appends every emitted event to a Postgres table, for
// operators who want queryable event history beyond the host chain's own
// log retention. It is optional: a daemon with no events_postgres_dsn
// configured never constructs one, and the engine works identically
// without it since the authoritative event stream is always the batch's
// Recorder.
type PgSink struct {
	pool *pgxpool.Pool
}

// NewPgSink opens a pool against dsn and ensures the events table exists.
func NewPgSink(ctx context.Context, dsn string) (*PgSink, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS defuse_events (
			id BIGSERIAL PRIMARY KEY,
			tag TEXT NOT NULL,
			payload JSONB NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PgSink{pool: pool}, nil
}

// Close releases the pool.
func (s *PgSink) Close() {
	s.pool.Close()
}

// Emit inserts e synchronously, after the batch that produced it has
// committed; failures are logged, not propagated, per §7: resolver/sink outcomes
// never revert already-committed engine state.
func (s *PgSink) Emit(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Errorf("events: marshal %s: %v", e.Tag(), err)
		return
	}

	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO defuse_events (tag, payload) VALUES ($1, $2)`,
		e.Tag(), payload)
	if err != nil {
		log.Errorf("events: insert %s: %v", e.Tag(), err)
	}
}
