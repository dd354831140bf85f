package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/chatmindhq/chatmind/internal/brain"
	"github.com/chatmindhq/chatmind/internal/memory"
	"github.com/chatmindhq/chatmind/internal/observability"
)

type captureGenerator struct {
	reply       string
	degraded    bool
	lastText    string
	lastContext []string
}

func (g *captureGenerator) Generate(_ context.Context, userText string, contextTexts []string) brain.Result {
	g.lastText = userText
	g.lastContext = append([]string(nil), contextTexts...)
	return brain.Result{Text: g.reply, Degraded: g.degraded}
}

// saveFailStore fails the nth Save call (1-based) and delegates the rest.
type saveFailStore struct {
	memory.Store
	failOn int
	calls  int
}

func (s *saveFailStore) Save(ctx context.Context, userID, text string, metadata map[string]any) (string, error) {
	s.calls++
	if s.calls == s.failOn {
		return "", &memory.StorageUnavailableError{Op: "save turn", Err: errors.New("medium offline")}
	}
	return s.Store.Save(ctx, userID, text, metadata)
}

func newTestStore(t *testing.T) memory.Store {
	t.Helper()
	store, err := memory.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHandleUserMessageRoundTrip(t *testing.T) {
	store := newTestStore(t)
	gen := &captureGenerator{reply: "hi, nice to meet you"}
	metrics := observability.NewMetrics("test_agent_roundtrip")
	orch := New(store, gen, metrics, 5)

	reply, err := orch.HandleUserMessage(context.Background(), "u1", "Hello")
	if err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}
	if reply == "" {
		t.Fatalf("HandleUserMessage() returned empty reply")
	}
	if reply != gen.reply {
		t.Fatalf("reply = %q, want %q", reply, gen.reply)
	}

	turns, err := store.Search(context.Background(), "u1", 5, "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Search() returned %d turns, want 2", len(turns))
	}
	// Assistant turn is the most recent.
	if turns[0].Text != reply || turns[0].Role() != memory.RoleAssistant {
		t.Fatalf("newest turn = %q (%s), want assistant reply", turns[0].Text, turns[0].Role())
	}
	if turns[1].Text != "Hello" || turns[1].Role() != memory.RoleUser {
		t.Fatalf("older turn = %q (%s), want user message", turns[1].Text, turns[1].Role())
	}
}

func TestHandleUserMessageContextChronological(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		if _, err := store.Save(ctx, "u1", text, nil); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	gen := &captureGenerator{reply: "ok"}
	metrics := observability.NewMetrics("test_agent_context_order")
	orch := New(store, gen, metrics, 5)

	if _, err := orch.HandleUserMessage(ctx, "u1", "four"); err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}

	if gen.lastText != "four" {
		t.Fatalf("generator text = %q", gen.lastText)
	}
	want := []string{"one", "two", "three"}
	if len(gen.lastContext) != len(want) {
		t.Fatalf("context length = %d, want %d", len(gen.lastContext), len(want))
	}
	for i := range want {
		if gen.lastContext[i] != want[i] {
			t.Fatalf("context[%d] = %q, want %q (oldest first, most recent last)", i, gen.lastContext[i], want[i])
		}
	}
}

func TestHandleUserMessageContextWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		if _, err := store.Save(ctx, "u1", "msg "+strconv.Itoa(i), nil); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	gen := &captureGenerator{reply: "ok"}
	metrics := observability.NewMetrics("test_agent_window")
	orch := New(store, gen, metrics, 5)

	if _, err := orch.HandleUserMessage(ctx, "u1", "next"); err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}
	if len(gen.lastContext) != 5 {
		t.Fatalf("context length = %d, want the fixed window of 5", len(gen.lastContext))
	}
	if gen.lastContext[4] != "msg 7" {
		t.Fatalf("most recent context entry = %q, want %q", gen.lastContext[4], "msg 7")
	}
}

func TestHandleUserMessageUserSaveFailureIsFatal(t *testing.T) {
	store := &saveFailStore{Store: newTestStore(t), failOn: 1}
	gen := &captureGenerator{reply: "ok"}
	metrics := observability.NewMetrics("test_agent_user_save_fail")
	orch := New(store, gen, metrics, 5)

	reply, err := orch.HandleUserMessage(context.Background(), "u1", "Hello")
	if err == nil {
		t.Fatalf("HandleUserMessage() error = nil, want storage failure")
	}
	if !memory.IsStorageUnavailable(err) {
		t.Fatalf("error = %v, want StorageUnavailableError", err)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want empty on fatal turn", reply)
	}
}

func TestHandleUserMessageAssistantSaveIsBestEffort(t *testing.T) {
	inner := newTestStore(t)
	store := &saveFailStore{Store: inner, failOn: 2}
	gen := &captureGenerator{reply: "still delivered"}
	metrics := observability.NewMetrics("test_agent_assistant_save_fail")
	orch := New(store, gen, metrics, 5)

	reply, err := orch.HandleUserMessage(context.Background(), "u1", "Hello")
	if err != nil {
		t.Fatalf("HandleUserMessage() error = %v, assistant save must not fail the turn", err)
	}
	if reply != "still delivered" {
		t.Fatalf("reply = %q", reply)
	}

	turns, err := inner.Search(context.Background(), "u1", 5, "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(turns) != 1 || turns[0].Role() != memory.RoleUser {
		t.Fatalf("persisted turns = %+v, want only the user turn", turns)
	}
}

func TestHandleUserMessageDegradedReplyStillReturned(t *testing.T) {
	store := newTestStore(t)
	gen := &captureGenerator{reply: "(stub) You said: Hello", degraded: true}
	metrics := observability.NewMetrics("test_agent_degraded")
	orch := New(store, gen, metrics, 5)

	reply, err := orch.HandleUserMessage(context.Background(), "u1", "Hello")
	if err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}
	if reply != gen.reply {
		t.Fatalf("reply = %q, want the degraded text", reply)
	}
}
