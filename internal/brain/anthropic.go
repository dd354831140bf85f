package brain

import (
	"context"
	"log"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel        = "claude-sonnet-4-20250514"
	defaultMaxTokens    = 1024
	defaultSystemPrompt = "You are a helpful assistant."
)

// AnthropicGenerator calls the Anthropic Messages API. Upstream failures
// degrade to the stub reply instead of surfacing an error; a turn never
// fails because the model was unreachable.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &AnthropicGenerator{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, userText string, contextTexts []string) Result {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: defaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: defaultSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(userText, contextTexts))),
		},
	})
	if err != nil {
		log.Printf("upstream generation failed, degrading to stub: %v", err)
		return Result{Text: stubReply(userText), Degraded: true}
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return Result{Text: stubReply(userText), Degraded: true}
	}
	return Result{Text: text}
}

// buildPrompt folds the chronological context into the user message, one
// line per prior turn, oldest first.
func buildPrompt(userText string, contextTexts []string) string {
	if len(contextTexts) == 0 {
		return userText
	}
	var b strings.Builder
	for _, c := range contextTexts {
		b.WriteString("Context: ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString(userText)
	return b.String()
}
