package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPlayerStore implements PlayerStore over a pgx connection pool,
// grounded on the teacher's PostgresAccountRepository
// (internal/db/repository.go): a thin struct wrapping *pgxpool.Pool, one
// method per operation, errors wrapped with the operation and key that
// failed.
type PostgresPlayerStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPlayerStore connects to dsn and returns a ready PlayerStore.
func NewPostgresPlayerStore(ctx context.Context, dsn string) (*PostgresPlayerStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persist: pinging database: %w", err)
	}
	return &PostgresPlayerStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresPlayerStore) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool. RunMigrations does not use it; it
// opens its own database/sql connection from the DSN.
func (s *PostgresPlayerStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresPlayerStore) LoadPlayerState(ctx context.Context, playerID string) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state_blob FROM player_state WHERE player_id = $1`, playerID,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("persist: loading state for %q: %w", playerID, err)
	}
	return blob, nil
}

func (s *PostgresPlayerStore) SavePlayerState(ctx context.Context, playerID string, blob []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO player_state (player_id, state_blob, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (player_id) DO UPDATE SET state_blob = $2, updated_at = now()`,
		playerID, blob,
	)
	if err != nil {
		return fmt.Errorf("persist: saving state for %q: %w", playerID, err)
	}
	return nil
}
