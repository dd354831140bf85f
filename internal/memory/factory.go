package memory

import (
	"context"
	"strings"
	"time"

	"github.com/chatmindhq/chatmind/internal/observability"
)

// Options selects which backends serve conversational memory.
type Options struct {
	// DatabaseURL switches the local record store to postgres when set;
	// otherwise turns live in a SQLite file at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// RemoteBaseURL plus RemoteAPIKey enable the remote memory service,
	// with the local store kept as transparent fallback.
	RemoteBaseURL string
	RemoteAPIKey  string
	RemoteTimeout time.Duration
}

// NewStore is the single construction point for conversational memory.
// The backend is chosen once, from configuration; nothing downstream ever
// branches on which one is active.
func NewStore(ctx context.Context, opts Options, metrics *observability.Metrics) (Store, error) {
	local, err := newLocalStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	if RemoteConfigured(opts.RemoteBaseURL, opts.RemoteAPIKey) {
		return NewRemoteStore(opts.RemoteBaseURL, opts.RemoteAPIKey, opts.RemoteTimeout, local, metrics), nil
	}
	return local, nil
}

func newLocalStore(ctx context.Context, opts Options) (Store, error) {
	if strings.TrimSpace(opts.DatabaseURL) != "" {
		return NewPostgresStore(ctx, opts.DatabaseURL)
	}
	path := strings.TrimSpace(opts.SQLitePath)
	if path == "" {
		path = "memory.db"
	}
	return NewSQLiteStore(ctx, path)
}

// BackendName describes the active backend for status reporting.
func BackendName(opts Options) string {
	if RemoteConfigured(opts.RemoteBaseURL, opts.RemoteAPIKey) {
		return "remote"
	}
	if strings.TrimSpace(opts.DatabaseURL) != "" {
		return "postgres"
	}
	return "sqlite"
}
