// Package brain produces assistant replies from the inbound message and
// the retrieved conversation context.
package brain

import (
	"context"
	"strings"
)

// Result is a produced reply. Degraded marks replies that came from the
// stub path because no upstream model was configured or reachable. That
// is an observability signal, never an error.
type Result struct {
	Text     string
	Degraded bool
}

// Generator turns the user's message plus chronological context texts
// into a reply. Implementations always return some reply.
type Generator interface {
	Generate(ctx context.Context, userText string, contextTexts []string) Result
}

// Config controls generator construction.
type Config struct {
	AnthropicAPIKey string
	Model           string
}

// New picks the upstream-backed generator when a credential is present,
// otherwise the stub echo.
func New(cfg Config) Generator {
	if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
		return NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.Model)
	}
	return NewStubGenerator()
}
