package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chatmindhq/chatmind/internal/observability"
)

func TestNewStoreLocalWhenRemoteUnconfigured(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"no remote at all", Options{}},
		{"endpoint without credential", Options{RemoteBaseURL: "http://mem.example"}},
		{"credential without endpoint", Options{RemoteAPIKey: "key-1"}},
	}
	metrics := observability.NewMetrics("test_factory_local")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.SQLitePath = filepath.Join(t.TempDir(), "memory.db")
			store, err := NewStore(context.Background(), tc.opts, metrics)
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			defer store.Close()
			if _, ok := store.(*SQLiteStore); !ok {
				t.Fatalf("NewStore() = %T, want *SQLiteStore with no network path", store)
			}
		})
	}
}

func TestNewStoreRemoteWhenConfigured(t *testing.T) {
	metrics := observability.NewMetrics("test_factory_remote")
	store, err := NewStore(context.Background(), Options{
		SQLitePath:    filepath.Join(t.TempDir(), "memory.db"),
		RemoteBaseURL: "http://mem.example",
		RemoteAPIKey:  "key-1",
	}, metrics)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	remote, ok := store.(*RemoteStore)
	if !ok {
		t.Fatalf("NewStore() = %T, want *RemoteStore", store)
	}
	if _, ok := remote.fallback.(*SQLiteStore); !ok {
		t.Fatalf("remote fallback = %T, want local record store", remote.fallback)
	}
}

func TestBackendName(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want string
	}{
		{"default", Options{}, "sqlite"},
		{"postgres", Options{DatabaseURL: "postgres://localhost/chat"}, "postgres"},
		{"remote", Options{RemoteBaseURL: "http://mem.example", RemoteAPIKey: "key-1"}, "remote"},
		{"remote beats postgres", Options{DatabaseURL: "postgres://localhost/chat", RemoteBaseURL: "http://mem.example", RemoteAPIKey: "key-1"}, "remote"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BackendName(tc.opts); got != tc.want {
				t.Fatalf("BackendName() = %q, want %q", got, tc.want)
			}
		})
	}
}
