package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Metadata role values written by the reply orchestrator.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// MetaRoleKey is the metadata key carrying the turn role. Other keys
	// are passed through opaquely.
	MetaRoleKey = "role"
)

// Turn is one stored conversational message. Turns are immutable once
// written; there is no update or delete.
type Turn struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Role returns the role tag from the metadata map, or "" when absent.
func (t Turn) Role() string {
	if t.Metadata == nil {
		return ""
	}
	role, _ := t.Metadata[MetaRoleKey].(string)
	return role
}

// Store persists and retrieves conversational turns for a user.
//
// Save appends a turn and returns the backend-assigned id. Search returns
// up to k turns for the user, newest first; when query is non-empty only
// turns whose text contains it as a case-sensitive substring are eligible.
// k <= 0 and unknown users both yield an empty result, never an error.
type Store interface {
	Save(ctx context.Context, userID, text string, metadata map[string]any) (string, error)
	Search(ctx context.Context, userID string, k int, query string) ([]Turn, error)
	Close() error
}

// StorageUnavailableError reports that the store's backing medium could
// not serve the call. It is fatal to the operation that raised it and is
// not retried inside this package.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// IsStorageUnavailable reports whether err is (or wraps) a storage
// availability failure.
func IsStorageUnavailable(err error) bool {
	var se *StorageUnavailableError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageUnavailableError{Op: op, Err: err}
}
