// Package llm adapts the canonical conversation model to the wire formats
// of the supported chat backends and streams deltas back over a channel.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexkh/inforno/internal/chat"
)

// Request is a fully validated chat completion request, independent of the
// backend that will serve it.
type Request struct {
	Model    string
	Messages []chat.HistoryEntry

	// Tri-state generation options. Nil means the backend default.
	Seed        *int32
	Temperature *float64
	Reasoning   *bool
}

// StreamError is a terminal or transient failure observed mid-stream.
// Transient errors (an undecodable frame, a malformed delta) do not end
// the stream; the consumer logs them and keeps reading.
type StreamError struct {
	Message   string
	Transient bool
}

func (e *StreamError) Error() string { return e.Message }

// StreamEvent is one delta from a running stream. Exactly one of the
// fields is meaningful per event. Channel close signals normal end of
// stream, including cancellation.
type StreamEvent struct {
	Content   string
	Reasoning string
	Err       *StreamError
}

// Reply is one complete, non-streaming chat completion.
type Reply struct {
	Content   string
	Reasoning string
}

// Streamer runs chat completions against one backend, streaming or in one
// shot. Stream implementations close the returned channel when the stream
// ends for any reason; a fatal error is sent as the last event before
// close.
type Streamer interface {
	Stream(ctx context.Context, req Request) <-chan StreamEvent
	Complete(ctx context.Context, req Request) (Reply, error)
}

var (
	// ErrTemperatureRange is returned for temperatures outside [0, 2].
	ErrTemperatureRange = errors.New("temperature must be between 0 and 2")
	// ErrNegativeSeed is returned for seeds below zero.
	ErrNegativeSeed = errors.New("seed must not be negative")
	// ErrNoModel is returned when the preset names no model.
	ErrNoModel = errors.New("preset has no model")
)

// BuildRequest projects a preset plus an agent history into a Request,
// validating the options before any network state exists.
func BuildRequest(p *chat.Preset, history []chat.HistoryEntry) (Request, error) {
	if p.Model == "" {
		return Request{}, fmt.Errorf("%q: %w", p.Title, ErrNoModel)
	}
	if t := p.Options.Temperature; t != nil && (*t < 0 || *t > 2) {
		return Request{}, fmt.Errorf("%q: %w (got %g)", p.Title, ErrTemperatureRange, *t)
	}
	if s := p.Options.Seed; s != nil && *s < 0 {
		return Request{}, fmt.Errorf("%q: %w (got %d)", p.Title, ErrNegativeSeed, *s)
	}
	return Request{
		Model:       p.Model,
		Messages:    history,
		Seed:        p.Options.Seed,
		Temperature: p.Options.Temperature,
		Reasoning:   p.Options.IncludeReasoning,
	}, nil
}

// Endpoints carries the per-backend base URLs from the app config.
type Endpoints struct {
	Ollama     string
	OpenRouter string
	Anthropic  string
}

// httpClient is shared by the hand-rolled adapters. Streams can run for
// minutes, so there is no overall timeout; cancellation comes from the
// request context.
var httpClient = &http.Client{Timeout: 0}

// emit delivers an event unless the context is cancelled first, so an
// adapter goroutine never outlives an abandoned stream.
func emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewStreamer returns the adapter serving the preset's backend. The API
// key, when required, is read from the preset.
func NewStreamer(p *chat.Preset, ep Endpoints) (Streamer, error) {
	switch p.Backend {
	case chat.BackendOllama:
		return NewOllamaClient(ep.Ollama), nil
	case chat.BackendOpenRouter:
		return NewOpenRouterClient(ep.OpenRouter, p.APIKey), nil
	case chat.BackendAnthropic:
		return NewAnthropicClient(ep.Anthropic, p.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", p.Backend)
	}
}
