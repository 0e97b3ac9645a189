package secrets

import (
	"testing"

	"github.com/alexkh/inforno/internal/chat"
)

func TestKeyedBackend(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    chat.Backend
		wantErr bool
	}{
		{"openrouter", "openrouter", chat.BackendOpenRouter, false},
		{"openrouter_short", "openr", chat.BackendOpenRouter, false},
		{"anthropic", "anthropic", chat.BackendAnthropic, false},
		{"mixed_case_and_spaces", "  Anthropic ", chat.BackendAnthropic, false},
		{"ollama_takes_no_key", "ollama", "", true},
		{"unknown", "mystery", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := KeyedBackend(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("KeyedBackend(%q) = %q, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("KeyedBackend(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("KeyedBackend(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAPIKeyEnvOverride(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "from-env")
	if got := APIKey(chat.BackendOpenRouter); got != "from-env" {
		t.Fatalf("APIKey = %q, want env value", got)
	}
	if got := APIKey(chat.BackendOllama); got != "" {
		t.Fatalf("APIKey for keyless backend = %q, want empty", got)
	}
}

func TestSetAPIKeyRejectsKeylessBackend(t *testing.T) {
	if err := SetAPIKey(chat.BackendOllama, "x"); err == nil {
		t.Fatalf("SetAPIKey accepted a keyless backend")
	}
	if err := DeleteAPIKey(chat.BackendOllama); err == nil {
		t.Fatalf("DeleteAPIKey accepted a keyless backend")
	}
}
