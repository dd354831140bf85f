// Package agent runs one conversational turn end-to-end: retrieve
// context, generate a reply, persist both sides of the exchange.
package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chatmindhq/chatmind/internal/brain"
	"github.com/chatmindhq/chatmind/internal/memory"
	"github.com/chatmindhq/chatmind/internal/observability"
)

// DefaultContextWindow is the number of recent turns handed to the
// generator when no explicit window is configured.
const DefaultContextWindow = 5

type Orchestrator struct {
	memory    memory.Store
	generator brain.Generator
	metrics   *observability.Metrics
	window    int
}

func New(store memory.Store, generator brain.Generator, metrics *observability.Metrics, contextWindow int) *Orchestrator {
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	return &Orchestrator{
		memory:    store,
		generator: generator,
		metrics:   metrics,
		window:    contextWindow,
	}
}

// HandleUserMessage executes one turn. The user turn must persist for the
// turn to succeed; the assistant turn is saved best-effort so a storage
// hiccup after the reply exists never throws that reply away.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, userID, text string) (string, error) {
	turnStart := time.Now()

	stageStart := time.Now()
	recent, err := o.memory.Search(ctx, userID, o.window, "")
	if err != nil {
		o.noteOutcome("error", turnStart)
		o.metrics.StorageErrors.WithLabelValues("search").Inc()
		return "", fmt.Errorf("load context: %w", err)
	}
	o.metrics.ObserveTurnStage("retrieve_context", time.Since(stageStart))

	// Search returns newest first; the generator reads context
	// chronologically, most recent last.
	contextTexts := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		contextTexts = append(contextTexts, recent[i].Text)
	}

	stageStart = time.Now()
	result := o.generator.Generate(ctx, text, contextTexts)
	o.metrics.ObserveTurnStage("generate_reply", time.Since(stageStart))
	if result.Degraded {
		o.metrics.DegradedReplies.Inc()
		o.metrics.ObserveIndicator("generation_degraded")
	}

	stageStart = time.Now()
	if _, err := o.memory.Save(ctx, userID, text, map[string]any{memory.MetaRoleKey: memory.RoleUser}); err != nil {
		o.noteOutcome("error", turnStart)
		o.metrics.StorageErrors.WithLabelValues("save_user").Inc()
		return "", fmt.Errorf("persist user turn: %w", err)
	}
	if _, err := o.memory.Save(ctx, userID, result.Text, map[string]any{memory.MetaRoleKey: memory.RoleAssistant}); err != nil {
		// Recoverable: the next turn's context fetch just misses one
		// assistant message.
		log.Printf("assistant turn not persisted for user %s: %v", userID, err)
		o.metrics.StorageErrors.WithLabelValues("save_assistant").Inc()
		o.metrics.AssistantSaveDrops.Inc()
		o.metrics.ObserveIndicator("assistant_save_dropped")
	}
	o.metrics.ObserveTurnStage("persist_turns", time.Since(stageStart))

	o.noteOutcome("ok", turnStart)
	return result.Text, nil
}

func (o *Orchestrator) noteOutcome(outcome string, turnStart time.Time) {
	d := time.Since(turnStart)
	o.metrics.Turns.WithLabelValues(outcome).Inc()
	o.metrics.ObserveTurnLatency(d)
	o.metrics.ObserveTurnStage("turn_total", d)
}
