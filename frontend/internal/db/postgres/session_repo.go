package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS client_sessions (
	profile    TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (profile, key)
)`

type sessionRow struct {
	Profile   string    `db:"profile"`
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SessionRepository shares a profile's session between bridge replicas.
type SessionRepository struct {
	db      *sqlx.DB
	profile string
}

var _ domain.KeyValueBackend = (*SessionRepository)(nil)

// Open connects through the pgx stdlib driver and verifies the link.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func NewSessionRepository(db *sqlx.DB, profile string) *SessionRepository {
	if profile == "" {
		profile = "default"
	}
	return &SessionRepository{db: db, profile: profile}
}

// EnsureSchema creates the backing table if it does not exist yet.
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

func (r *SessionRepository) Load(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM client_sessions WHERE profile = $1 AND key = $2`, r.profile, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres: load %s: %w", key, err)
	}
	return value, true, nil
}

// Store upserts every key inside one transaction so token and user never
// diverge.
func (r *SessionRepository) Store(ctx context.Context, values map[string]string) error {
	query := `
		INSERT INTO client_sessions (profile, key, value, updated_at)
		VALUES (:profile, :key, :value, :updated_at)
		ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for k, v := range values {
		row := sessionRow{Profile: r.profile, Key: k, Value: v, UpdatedAt: now}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("postgres: upsert %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Delete removes the keys; absent rows are not an error.
func (r *SessionRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM client_sessions WHERE profile = ? AND key IN (?)`, r.profile, keys)
	if err != nil {
		return fmt.Errorf("postgres: build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	return nil
}
