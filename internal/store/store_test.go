package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/alexkh/inforno/internal/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.rno"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsFallbackPreset(t *testing.T) {
	s := openTestStore(t)
	presets, err := s.LoadPresets()
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if len(presets) != 1 {
		t.Fatalf("fresh sandbox has %d presets, want 1", len(presets))
	}
	p := presets[0]
	if p.Title != fallbackPresetTitle || p.Model != fallbackPresetModel || p.Backend != chat.BackendOpenRouter {
		t.Fatalf("seeded preset = %+v", p)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.rno")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.db.Model(&schemaVersionRow{}).Where("id = ?", 0).
		Update("version", CurrentSchemaVersion+1).Error; err != nil {
		t.Fatalf("tamper version: %v", err)
	}
	s.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaVersionMismatch) {
		t.Fatalf("Open err = %v, want %v", err, ErrSchemaVersionMismatch)
	}
}

func TestChatLifecycle(t *testing.T) {
	s := openTestStore(t)

	first := chat.NewChat()
	first.Title = "first"
	if err := s.CreateChat(first); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	second := chat.NewChat()
	second.Title = "second"
	if err := s.CreateChat(second); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if first.ID == 0 || second.ID == 0 {
		t.Fatalf("chat ids not assigned")
	}
	for _, a := range first.Agents {
		if a.ID == 0 {
			t.Fatalf("agent %q id not assigned", a.Name)
		}
	}

	titles, err := s.ChatTitles()
	if err != nil {
		t.Fatalf("ChatTitles: %v", err)
	}
	if len(titles) != 2 || titles[0].Title != "second" || titles[1].Title != "first" {
		t.Fatalf("titles = %+v, want newest first", titles)
	}

	if err := s.RenameChat(first.ID, "renamed"); err != nil {
		t.Fatalf("RenameChat: %v", err)
	}
	loaded, err := s.LoadChat(first.ID)
	if err != nil {
		t.Fatalf("LoadChat: %v", err)
	}
	if loaded.Title != "renamed" {
		t.Fatalf("title = %q, want renamed", loaded.Title)
	}

	if err := s.DeleteChat(first.ID); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if _, err := s.LoadChat(first.ID); err == nil {
		t.Fatalf("deleted chat still loads")
	}
	titles, err = s.ChatTitles()
	if err != nil {
		t.Fatalf("ChatTitles: %v", err)
	}
	if len(titles) != 1 || titles[0].ID != second.ID {
		t.Fatalf("titles after delete = %+v", titles)
	}
}

func TestMessageAndHistoryRoundTrip(t *testing.T) {
	s := openTestStore(t)

	c := chat.NewChat()
	c.Title = "roundtrip"
	c.Agent(1).Preset = &chat.Preset{Title: "override", Model: "m", Backend: chat.BackendOllama}
	if err := s.CreateChat(c); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	user := &chat.ChatMsg{Role: chat.RoleUser, Content: "  ```go\ncode\n  ```"}
	if err := c.AppendShared(s, user); err != nil {
		t.Fatalf("AppendShared: %v", err)
	}
	reply := &chat.ChatMsg{
		Role: chat.RoleAssistant, Name: "Agent1", PresetID: 4,
		Preset: &chat.Preset{Title: "snap", Model: "m"},
	}
	if err := s.CreateMessage(c.ID, reply); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := s.UpdateMessageContentReasoning(reply.ID, "done", "thought"); err != nil {
		t.Fatalf("UpdateMessageContentReasoning: %v", err)
	}
	a := c.Agent(1)
	a.MsgIDs = append(a.MsgIDs, reply.ID)
	if err := s.SaveAgentHistory(a.ID, a.MsgIDs); err != nil {
		t.Fatalf("SaveAgentHistory: %v", err)
	}
	if err := s.UpdateAgentSnapshot(a.ID, `{"title":"snap"}`); err != nil {
		t.Fatalf("UpdateAgentSnapshot: %v", err)
	}

	loaded, err := s.LoadChat(c.ID)
	if err != nil {
		t.Fatalf("LoadChat: %v", err)
	}
	la := loaded.Agent(1)
	if la == nil {
		t.Fatalf("agent 1 missing after load")
	}
	if len(la.MsgIDs) != 2 {
		t.Fatalf("history = %v, want 2 entries", la.MsgIDs)
	}
	if la.Preset == nil || la.Preset.Title != "override" {
		t.Fatalf("override lost: %+v", la.Preset)
	}

	lu := loaded.Pool[user.ID]
	if lu == nil {
		t.Fatalf("user message missing from pool")
	}
	// loaded for display: fences moved to column zero
	if lu.Content != "\n```go\ncode\n\n```" {
		t.Fatalf("normalized content = %q", lu.Content)
	}

	lr := loaded.Pool[reply.ID]
	if lr == nil || lr.Content != "done" || lr.Reasoning != "thought" {
		t.Fatalf("reply = %+v", lr)
	}
	if lr.Name != "Agent1" || lr.PresetID != 4 || lr.Preset == nil || lr.Preset.Title != "snap" {
		t.Fatalf("reply provenance lost: %+v", lr)
	}
}

func TestUpdateAgentFlags(t *testing.T) {
	s := openTestStore(t)
	c := chat.NewChat()
	if err := s.CreateChat(c); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	a := c.Agent(1)
	a.Name = "Critic"
	a.Muted = true
	a.PresetSel = chat.PresetSelection{ID: 8}
	if err := s.UpdateAgent(a); err != nil {
		t.Fatalf("UpdateAgent: %v", err)
	}

	loaded, err := s.LoadChat(c.ID)
	if err != nil {
		t.Fatalf("LoadChat: %v", err)
	}
	la := loaded.Agent(1)
	if la.Name != "Critic" || !la.Muted || la.PresetSel.ID != 8 {
		t.Fatalf("agent after update = %+v", la)
	}
}

func TestPresetUpsertAndNeverEmpty(t *testing.T) {
	s := openTestStore(t)

	p := chat.NewPreset()
	p.Title = "local"
	p.Model = "qwen3:8b"
	if err := s.SavePreset(&p); err != nil {
		t.Fatalf("SavePreset insert: %v", err)
	}
	if p.ID == 0 {
		t.Fatalf("preset id not assigned")
	}

	p.Model = "qwen3:32b"
	if err := s.SavePreset(&p); err != nil {
		t.Fatalf("SavePreset update: %v", err)
	}
	presets, err := s.LoadPresets()
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if len(presets) != 2 {
		t.Fatalf("preset count = %d, want seeded plus one", len(presets))
	}

	// delete everything; the trigger must leave the fallback behind
	for _, q := range presets {
		if err := s.DeletePreset(q.ID); err != nil {
			t.Fatalf("DeletePreset: %v", err)
		}
	}
	presets, err = s.LoadPresets()
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if len(presets) != 1 || presets[0].Title != fallbackPresetTitle {
		t.Fatalf("presets after wipe = %+v, want fallback only", presets)
	}
}

func TestResetAllData(t *testing.T) {
	s := openTestStore(t)
	c := chat.NewChat()
	c.Title = "doomed"
	if err := s.CreateChat(c); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	if err := s.ResetAllData(); err != nil {
		t.Fatalf("ResetAllData: %v", err)
	}
	titles, err := s.ChatTitles()
	if err != nil {
		t.Fatalf("ChatTitles: %v", err)
	}
	if len(titles) != 0 {
		t.Fatalf("chats survived reset: %+v", titles)
	}
	presets, err := s.LoadPresets()
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if len(presets) != 1 {
		t.Fatalf("reset did not reseed the registry: %+v", presets)
	}
}
