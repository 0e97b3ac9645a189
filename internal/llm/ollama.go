package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alexkh/inforno/internal/chat"
)

// DefaultOllamaURL is the stock local daemon address.
const DefaultOllamaURL = "http://127.0.0.1:11434"

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Seed        *int32   `json:"seed,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Think    *bool           `json:"think,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatChunk struct {
	Message struct {
		Role     string `json:"role"`
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// OllamaClient streams chat completions from a local Ollama daemon. The
// wire format is NDJSON: one JSON chunk per line, the last one flagged
// done.
type OllamaClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewOllamaClient(baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
	}
}

// ollamaRole maps canonical roles onto the daemon's vocabulary. The
// daemon knows no developer or tool turns, so they degrade to the nearest
// role the model will still condition on.
func ollamaRole(r chat.Role) string {
	switch r {
	case chat.RoleSystem, chat.RoleDeveloper:
		return "system"
	case chat.RoleAssistant:
		return "assistant"
	default:
		return "user"
	}
}

func (c *OllamaClient) Stream(ctx context.Context, req Request) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		if err := c.run(ctx, req, out); err != nil {
			emit(ctx, out, StreamEvent{Err: &StreamError{Message: err.Error()}})
		}
	}()
	return out
}

// Complete runs the same chat request without streaming: the daemon
// answers with a single JSON object holding the full reply.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (Reply, error) {
	resp, err := c.post(ctx, ollamaBody(req, false))
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	var chunk ollamaChatChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return Reply{}, fmt.Errorf("decode response: %w", err)
	}
	if chunk.Error != "" {
		return Reply{}, fmt.Errorf("ollama error: %s", chunk.Error)
	}
	return Reply{Content: chunk.Message.Content, Reasoning: chunk.Message.Thinking}, nil
}

func ollamaBody(req Request, stream bool) ollamaChatRequest {
	msgs := make([]ollamaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMessage{Role: ollamaRole(m.Role), Content: m.Content})
	}
	body := ollamaChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   stream,
		Think:    req.Reasoning,
	}
	if req.Seed != nil || req.Temperature != nil {
		body.Options = &ollamaOptions{Seed: req.Seed, Temperature: req.Temperature}
	}
	return body
}

func (c *OllamaClient) post(ctx context.Context, body ollamaChatRequest) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama api error: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return resp, nil
}

func (c *OllamaClient) run(ctx context.Context, req Request, out chan<- StreamEvent) error {
	resp, err := c.post(ctx, ollamaBody(req, true))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// a mangled frame is not fatal; report and keep reading
			if !emit(ctx, out, StreamEvent{Err: &StreamError{
				Message:   fmt.Sprintf("undecodable chunk: %v", err),
				Transient: true,
			}}) {
				return nil
			}
			continue
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama stream error: %s", chunk.Error)
		}
		if chunk.Message.Thinking != "" {
			if !emit(ctx, out, StreamEvent{Reasoning: chunk.Message.Thinking}) {
				return nil
			}
		}
		if chunk.Message.Content != "" {
			if !emit(ctx, out, StreamEvent{Content: chunk.Message.Content}) {
				return nil
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
