package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a record store backed by PostgreSQL, for deployments
// that already run one. Same contract as SQLiteStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, storageErr("connect postgres", err)
	}

	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_user_created ON turns (user_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return storageErr(fmt.Sprintf("init schema on %q", stmt), err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, userID, text string, metadata map[string]any) (string, error) {
	var meta []byte
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("encode metadata: %w", err)
		}
		meta = raw
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO turns (user_id, text, metadata, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, text, meta, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return "", storageErr("save turn", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *PostgresStore) Search(ctx context.Context, userID string, k int, query string) ([]Turn, error) {
	if k <= 0 {
		return nil, nil
	}

	stmt := `SELECT id, user_id, text, metadata, created_at FROM turns WHERE user_id = $1`
	args := []any{userID}
	if query != "" {
		// position() is case-sensitive; LIKE would need escaping of the
		// pattern metacharacters.
		stmt += ` AND position($2 in text) > 0`
		args = append(args, query)
	}
	stmt += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, k)

	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, storageErr("search turns", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0, k)
	for rows.Next() {
		var (
			id   int64
			t    Turn
			meta []byte
		)
		if err := rows.Scan(&id, &t.UserID, &t.Text, &meta, &t.CreatedAt); err != nil {
			return nil, storageErr("scan turn row", err)
		}
		t.ID = strconv.FormatInt(id, 10)
		t.CreatedAt = t.CreatedAt.UTC()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &t.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for turn %s: %w", t.ID, err)
			}
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate turn rows", err)
	}
	return turns, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
