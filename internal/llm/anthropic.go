package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/alexkh/inforno/internal/chat"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"

	// The Messages API requires an explicit output cap.
	anthropicMaxTokens = 8192
	// Thinking budget when reasoning is requested; must stay below the
	// output cap.
	anthropicThinkingBudget = 2048
)

// AnthropicClient streams chat completions from the Anthropic Messages
// API.
type AnthropicClient struct {
	client anthropic.Client
}

func NewAnthropicClient(baseURL, apiKey string) *AnthropicClient {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithBaseURL(resolvedAnthropicBaseURL(baseURL)),
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

func resolvedAnthropicBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		base = defaultAnthropicBaseURL
	}

	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/v1")
	base = strings.TrimRight(base, "/")
	return base + "/"
}

// params splits the canonical history the way the Messages API wants it:
// leading system and developer turns are joined into the system prompt,
// the rest become messages. Tool results and late system turns degrade to
// user turns, since the API has no system role inside messages.
func (c *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	var (
		systemTexts []string
		cursor      int
	)
	for cursor < len(req.Messages) {
		m := req.Messages[cursor]
		if m.Role != chat.RoleSystem && m.Role != chat.RoleDeveloper {
			break
		}
		if strings.TrimSpace(m.Content) != "" {
			systemTexts = append(systemTexts, m.Content)
		}
		cursor++
	}
	var system []anthropic.TextBlockParam
	if len(systemTexts) > 0 {
		system = []anthropic.TextBlockParam{{Text: strings.Join(systemTexts, "\n\n")}}
	}

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages)-cursor)
	for ; cursor < len(req.Messages); cursor++ {
		m := req.Messages[cursor]
		if m.Role == chat.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: anthropicMaxTokens,
		Messages:  msgs,
		System:    system,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.Reasoning != nil && *req.Reasoning {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(anthropicThinkingBudget)
	}
	// the API has no seed parameter; req.Seed is dropped
	return params
}

// Complete runs the request in one shot over the unary Messages call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Reply, error) {
	resp, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return Reply{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	var r Reply
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.ThinkingBlock:
			r.Reasoning += b.Thinking
		case anthropic.TextBlock:
			r.Content += b.Text
		}
	}
	return r, nil
}

func (c *AnthropicClient) Stream(ctx context.Context, req Request) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		stream := c.client.Messages.NewStreaming(ctx, c.params(req))
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			switch d := ev.Delta.AsAny().(type) {
			case anthropic.ThinkingDelta:
				if d.Thinking != "" {
					if !emit(ctx, out, StreamEvent{Reasoning: d.Thinking}) {
						return
					}
				}
			case anthropic.TextDelta:
				if d.Text != "" {
					if !emit(ctx, out, StreamEvent{Content: d.Text}) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			emit(ctx, out, StreamEvent{Err: &StreamError{
				Message: fmt.Sprintf("anthropic stream error: %v", err),
			}})
		}
	}()
	return out
}
