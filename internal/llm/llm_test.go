package llm

import (
	"errors"
	"testing"

	"github.com/alexkh/inforno/internal/chat"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int32) *int32     { return &v }
func ptrB(v bool) *bool       { return &v }

func TestBuildRequestValidation(t *testing.T) {
	base := chat.Preset{Title: "p", Model: "qwen3:8b", Backend: chat.BackendOllama}

	cases := []struct {
		name    string
		mutate  func(*chat.Preset)
		wantErr error
	}{
		{"defaults_pass", func(p *chat.Preset) {}, nil},
		{"temperature_zero_ok", func(p *chat.Preset) { p.Options.Temperature = ptrF(0) }, nil},
		{"temperature_two_ok", func(p *chat.Preset) { p.Options.Temperature = ptrF(2) }, nil},
		{"temperature_above_two_rejected", func(p *chat.Preset) { p.Options.Temperature = ptrF(2.5) }, ErrTemperatureRange},
		{"temperature_negative_rejected", func(p *chat.Preset) { p.Options.Temperature = ptrF(-0.1) }, ErrTemperatureRange},
		{"seed_zero_ok", func(p *chat.Preset) { p.Options.Seed = ptrI(0) }, nil},
		{"seed_negative_rejected", func(p *chat.Preset) { p.Options.Seed = ptrI(-1) }, ErrNegativeSeed},
		{"missing_model_rejected", func(p *chat.Preset) { p.Model = "" }, ErrNoModel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			_, err := BuildRequest(&p, nil)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("BuildRequest: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("BuildRequest err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestBuildRequestCarriesOptions(t *testing.T) {
	p := chat.Preset{
		Title:   "p",
		Model:   "m",
		Options: chat.ModelOptions{Seed: ptrI(7), Temperature: ptrF(1.5), IncludeReasoning: ptrB(true)},
	}
	history := []chat.HistoryEntry{{Role: chat.RoleUser, Content: "hi"}}
	req, err := BuildRequest(&p, history)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.Model != "m" || len(req.Messages) != 1 {
		t.Fatalf("request = %+v", req)
	}
	if req.Seed == nil || *req.Seed != 7 || req.Temperature == nil || *req.Temperature != 1.5 {
		t.Fatalf("options not carried: %+v", req)
	}
	if req.Reasoning == nil || !*req.Reasoning {
		t.Fatalf("reasoning not carried")
	}
}

func TestNewStreamerPicksBackend(t *testing.T) {
	cases := []struct {
		name    string
		backend chat.Backend
		wantErr bool
	}{
		{"ollama", chat.BackendOllama, false},
		{"openrouter", chat.BackendOpenRouter, false},
		{"anthropic", chat.BackendAnthropic, false},
		{"unknown", chat.Backend("Mystery"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewStreamer(&chat.Preset{Backend: tc.backend}, Endpoints{})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NewStreamer succeeded, want error")
				}
				return
			}
			if err != nil || s == nil {
				t.Fatalf("NewStreamer: %v", err)
			}
		})
	}
}
