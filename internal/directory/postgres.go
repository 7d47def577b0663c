package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

// PostgresConfig configures the Postgres-backed directory.
type PostgresConfig struct {
	// TTL is the lifetime of a connection record. Records past their
	// expiry are invisible to Find and reaped by the janitor. Zero
	// disables expiry.
	TTL time.Duration
}

// PostgresStore is a Directory backed by a Postgres table, shared by all
// relay instances.
type PostgresStore struct {
	cfg    PostgresConfig
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres-backed directory.
func NewPostgresStore(cfg PostgresConfig, pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		cfg:    cfg,
		pool:   pool,
		logger: logger,
	}
}

// Setup creates the connections table and its attribute index if they do
// not exist.
func (s *PostgresStore) Setup(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS connections (
    connection_id text PRIMARY KEY,
    attributes    jsonb NOT NULL DEFAULT '{}'::jsonb,
    created_at    timestamptz NOT NULL DEFAULT now(),
    expires_at    timestamptz
);
CREATE INDEX IF NOT EXISTS connections_attributes_idx
    ON connections USING gin (attributes);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("setup connections table: %w", err)
	}
	return nil
}

// Create inserts a new connection record. The primary key rejects
// duplicates, which surface as ErrDuplicateConnection.
func (s *PostgresStore) Create(ctx context.Context, connectionID string, attrs map[string]string) error {
	if attrs == nil {
		attrs = map[string]string{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	var expiresAt *time.Time
	if s.cfg.TTL > 0 {
		t := time.Now().Add(s.cfg.TTL)
		expiresAt = &t
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO connections (connection_id, attributes, expires_at) VALUES ($1, $2, $3)`,
		connectionID, data, expiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("connection %s: %w", connectionID, ErrDuplicateConnection)
		}
		return fmt.Errorf("create connection %s: %w", connectionID, err)
	}

	s.logger.Debug("connection registered", "connection_id", connectionID)
	return nil
}

// Delete removes a connection record. Deleting an absent id is a no-op.
func (s *PostgresStore) Delete(ctx context.Context, connectionID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM connections WHERE connection_id = $1`,
		connectionID,
	)
	if err != nil {
		return fmt.Errorf("delete connection %s: %w", connectionID, err)
	}

	if tag.RowsAffected() == 0 {
		s.logger.Debug("delete of unknown connection", "connection_id", connectionID)
	}
	return nil
}

// Find returns the ids of live records whose attributes contain every
// filter key with an equal value. Expired records are never returned.
func (s *PostgresStore) Find(ctx context.Context, filter Filter) ([]string, error) {
	if filter == nil {
		filter = Filter{}
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT connection_id FROM connections
		 WHERE attributes @> $1::jsonb
		   AND (expires_at IS NULL OR expires_at > now())`,
		data,
	)
	if err != nil {
		return nil, fmt.Errorf("find connections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan connection id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}

	return ids, nil
}

// PurgeExpired deletes records whose expiry has passed and returns the
// number removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM connections WHERE expires_at IS NOT NULL AND expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired connections: %w", err)
	}
	return tag.RowsAffected(), nil
}
