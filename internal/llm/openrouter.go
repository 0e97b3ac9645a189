package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/alexkh/inforno/internal/chat"
)

// DefaultOpenRouterURL is the OpenAI-compatible OpenRouter endpoint.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterClient streams chat completions from OpenRouter through the
// OpenAI-compatible API.
type OpenRouterClient struct {
	client openai.Client
}

func NewOpenRouterClient(baseURL, apiKey string) *OpenRouterClient {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	return &OpenRouterClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
	}
}

// openRouterMessage maps a canonical turn onto the union message type.
// Tool results carry no call id in the canonical history, so they degrade
// to user turns.
func openRouterMessage(m chat.HistoryEntry) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case chat.RoleSystem:
		return openai.SystemMessage(m.Content)
	case chat.RoleDeveloper:
		return openai.DeveloperMessage(m.Content)
	case chat.RoleAssistant:
		return openai.AssistantMessage(m.Content)
	default:
		return openai.UserMessage(m.Content)
	}
}

func (c *OpenRouterClient) params(req Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openRouterMessage(m))
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.Seed != nil {
		params.Seed = openai.Int(int64(*req.Seed))
	}
	if req.Reasoning != nil && *req.Reasoning {
		params.ReasoningEffort = shared.ReasoningEffortHigh
	}
	return params
}

func (c *OpenRouterClient) Stream(ctx context.Context, req Request) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if r := reasoningDelta(delta.JSON.ExtraFields["reasoning"].Raw()); r != "" {
				if !emit(ctx, out, StreamEvent{Reasoning: r}) {
					return
				}
			}
			if delta.Content != "" {
				if !emit(ctx, out, StreamEvent{Content: delta.Content}) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			emit(ctx, out, StreamEvent{Err: &StreamError{
				Message: fmt.Sprintf("openrouter stream error: %v", err),
			}})
		}
	}()
	return out
}

// Complete runs the request in one shot over the unary completions call.
func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (Reply, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return Reply{}, fmt.Errorf("openrouter request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("openrouter returned no choices")
	}
	msg := resp.Choices[0].Message
	return Reply{
		Content:   msg.Content,
		Reasoning: reasoningDelta(msg.JSON.ExtraFields["reasoning"].Raw()),
	}, nil
}

// reasoningDelta extracts the OpenRouter reasoning field, which is not
// part of the OpenAI schema and arrives as an extra raw JSON string.
func reasoningDelta(raw string) string {
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return ""
	}
	return s
}
