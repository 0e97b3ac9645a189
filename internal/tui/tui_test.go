package tui

import (
	"testing"

	"github.com/alexkh/inforno/internal/chat"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Weather talk", "Weather talk"},
		{"path_separators_replaced", `a/b\c`, "a_b_c"},
		{"shell_specials_replaced", `what? "why" <now>`, "what_ _why_ _now_"},
		{"empty_falls_back", "   ", "chat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeFileName(tc.in); got != tc.want {
				t.Fatalf("sanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "short", 10, "short"},
		{"cut_with_ellipsis", "a very long title", 8, "a very …"},
		{"zero_width", "anything", 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := truncate(tc.in, tc.width); got != tc.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
			}
		})
	}
}

func TestCycleAgentSkipsDeleted(t *testing.T) {
	m := model{chat: chat.NewChat(), agentCursor: 1}
	m.chat.Agents = append(m.chat.Agents,
		&chat.Agent{Name: "Agent2", Ordinal: 2, Deleted: true},
		&chat.Agent{Name: "Agent3", Ordinal: 3},
	)

	m.cycleAgent(1)
	if m.agentCursor != 3 {
		t.Fatalf("cursor = %d, want 3 (skipping deleted ordinal 2)", m.agentCursor)
	}
	m.cycleAgent(1)
	if m.agentCursor != 1 {
		t.Fatalf("cursor = %d, want wrap to 1", m.agentCursor)
	}
	m.cycleAgent(-1)
	if m.agentCursor != 3 {
		t.Fatalf("cursor = %d, want 3 going backwards", m.agentCursor)
	}
}
