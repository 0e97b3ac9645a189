// Package secrets stores API keys in the OS keyring. Keys never touch the
// sandbox file or the config file.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/alexkh/inforno/internal/chat"
)

// Service is the keyring service name, kept stable so keys stored by
// earlier versions keep resolving.
const Service = "com.wizstaff.inforno"

const (
	openRouterUser = "openr"
	anthropicUser  = "anthropic"
)

func keyringUser(b chat.Backend) (string, bool) {
	switch b {
	case chat.BackendOpenRouter:
		return openRouterUser, true
	case chat.BackendAnthropic:
		return anthropicUser, true
	default:
		return "", false
	}
}

func envVar(b chat.Backend) string {
	switch b {
	case chat.BackendOpenRouter:
		return "OPENROUTER_API_KEY"
	case chat.BackendAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// KeyedBackend parses a backend name given on the command line into one
// of the backends that takes an API key.
func KeyedBackend(name string) (chat.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openrouter", "openr":
		return chat.BackendOpenRouter, nil
	case "anthropic":
		return chat.BackendAnthropic, nil
	default:
		return "", fmt.Errorf("backend %q takes no api key (use openrouter or anthropic)", name)
	}
}

// APIKey resolves the key for a backend. The environment variable wins
// over the keyring; a backend that needs no key, or has none stored,
// yields the empty string.
func APIKey(b chat.Backend) string {
	if name := envVar(b); name != "" {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	user, ok := keyringUser(b)
	if !ok {
		return ""
	}
	v, err := keyring.Get(Service, user)
	if err != nil {
		return ""
	}
	return v
}

// SetAPIKey stores the key in the keyring.
func SetAPIKey(b chat.Backend, value string) error {
	user, ok := keyringUser(b)
	if !ok {
		return fmt.Errorf("backend %q takes no api key", b)
	}
	if err := keyring.Set(Service, user, value); err != nil {
		return fmt.Errorf("store key for %q: %w", b, err)
	}
	return nil
}

// DeleteAPIKey removes the stored key. A key that was never stored is not
// an error.
func DeleteAPIKey(b chat.Backend) error {
	user, ok := keyringUser(b)
	if !ok {
		return fmt.Errorf("backend %q takes no api key", b)
	}
	err := keyring.Delete(Service, user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete key for %q: %w", b, err)
	}
	return nil
}
