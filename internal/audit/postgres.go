package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createAttemptsTable = `
	CREATE TABLE IF NOT EXISTS provisioning_attempts (
		attempt_id     TEXT PRIMARY KEY,
		provider_index INTEGER     NOT NULL,
		provider_name  TEXT        NOT NULL,
		outcome        TEXT        NOT NULL,
		status         INTEGER     NOT NULL,
		newsletter     BOOLEAN     NOT NULL,
		ocsapi         BOOLEAN     NOT NULL,
		occurred_at    TIMESTAMPTZ NOT NULL
	)
`

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed attempt store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the attempts table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, createAttemptsTable)

	return err
}

// SaveAttempt inserts an attempt. Redelivered events are ignored.
func (p *PostgresStore) SaveAttempt(ctx context.Context, event *AttemptEvent) error {
	query := `
		INSERT INTO provisioning_attempts
			(attempt_id, provider_index, provider_name, outcome, status, newsletter, ocsapi, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (attempt_id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query,
		event.AttemptID,
		event.ProviderIndex,
		event.ProviderName,
		string(event.Outcome),
		event.Status,
		event.Newsletter,
		event.OCSAPI,
		event.OccurredAt,
	)

	return err
}

// Shutdown closes the connection pool.
func (p *PostgresStore) Shutdown() error {
	p.pool.Close()

	return nil
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)
