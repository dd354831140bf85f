package brain

import "context"

// StubGenerator echoes the user's message with a clearly-marked prefix.
// It stands in whenever no upstream model is configured.
type StubGenerator struct{}

func NewStubGenerator() *StubGenerator { return &StubGenerator{} }

func (g *StubGenerator) Generate(_ context.Context, userText string, _ []string) Result {
	return Result{Text: stubReply(userText), Degraded: true}
}

func stubReply(userText string) string {
	return "(stub) You said: " + userText
}
