package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default durable record store. It keeps the whole
// conversation history in a local SQLite file with no network dependency.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and initializes
// the schema. Initialization is idempotent and safe to run repeatedly.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open sqlite", err)
	}
	// The modernc driver serializes writes; one connection avoids
	// SQLITE_BUSY churn under concurrent turns.
	db.SetMaxOpenConns(1)

	if err := initSQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSQLiteSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			metadata TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_user_created ON turns (user_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return storageErr("init sqlite schema", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, userID, text string, metadata map[string]any) (string, error) {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (user_id, text, metadata, created_at) VALUES (?, ?, ?, ?)`,
		userID, text, meta, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return "", storageErr("save turn", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", storageErr("save turn id", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLiteStore) Search(ctx context.Context, userID string, k int, query string) ([]Turn, error) {
	if k <= 0 {
		return nil, nil
	}

	// instr is a case-sensitive substring match, unlike LIKE which folds
	// ASCII case.
	stmt := `SELECT id, user_id, text, metadata, created_at FROM turns WHERE user_id = ?`
	args := []any{userID}
	if query != "" {
		stmt += ` AND instr(text, ?) > 0`
		args = append(args, query)
	}
	stmt += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, storageErr("search turns", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0, k)
	for rows.Next() {
		var (
			id      int64
			t       Turn
			meta    sql.NullString
			created int64
		)
		if err := rows.Scan(&id, &t.UserID, &t.Text, &meta, &created); err != nil {
			return nil, storageErr("scan turn row", err)
		}
		t.ID = strconv.FormatInt(id, 10)
		t.CreatedAt = time.Unix(0, created).UTC()
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &t.Metadata); err != nil {
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeMetadata(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}
