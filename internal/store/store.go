// Package store persists chats, agents, messages and presets to a local
// SQLite sandbox file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alexkh/inforno/internal/chat"
	"github.com/alexkh/inforno/internal/export"
)

// CurrentSchemaVersion is the only sandbox layout this build reads or
// writes. A mismatch is fatal; there is no automatic migration.
const CurrentSchemaVersion = 2

// ErrSchemaVersionMismatch is returned by Open when the sandbox was
// written by an incompatible version.
var ErrSchemaVersionMismatch = errors.New("sandbox schema version mismatch")

// The registry must never be empty: deleting the last preset re-inserts
// this one, enforced in SQL so it holds no matter who deletes.
const (
	fallbackPresetTitle = "DeepSeek: R1 0528 (free)"
	fallbackPresetModel = "deepseek/deepseek-r1-0528:free"
)

const ensurePresetTrigger = `
CREATE TRIGGER IF NOT EXISTS ensure_preset_not_empty_trigger
AFTER DELETE ON preset
WHEN (SELECT COUNT(*) FROM preset) = 0
BEGIN
	INSERT INTO preset (title, tooltip, chat_router, model, options, hidden, deleted)
	VALUES ('` + fallbackPresetTitle + `', '', 'Openrouter', '` + fallbackPresetModel + `', '', 0, 0);
END;`

// Store is the persistence bridge over one sandbox file.
type Store struct {
	db   *gorm.DB
	path string
}

// Open connects to the sandbox, creating it when absent, and verifies the
// schema version before anything else touches it.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sandbox %q: %w", path, err)
	}
	s := &Store{db: db, path: path}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.AutoMigrate(&chatRow{}, &agentRow{}, &msgRow{}, &presetRow{}, &schemaVersionRow{}); err != nil {
		return fmt.Errorf("migrate sandbox schema: %w", err)
	}

	var ver schemaVersionRow
	err := s.db.First(&ver, "id = ?", 0).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		ver = schemaVersionRow{ID: 0, Version: CurrentSchemaVersion}
		if err := s.db.Create(&ver).Error; err != nil {
			return fmt.Errorf("stamp schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case ver.Version != CurrentSchemaVersion:
		return fmt.Errorf("%w: sandbox has %d, this build needs %d",
			ErrSchemaVersionMismatch, ver.Version, CurrentSchemaVersion)
	}

	if err := s.db.Exec(ensurePresetTrigger).Error; err != nil {
		return fmt.Errorf("install preset trigger: %w", err)
	}

	var count int64
	if err := s.db.Model(&presetRow{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count presets: %w", err)
	}
	if count == 0 {
		row := presetRow{Title: fallbackPresetTitle, ChatRouter: string(chat.BackendOpenRouter), Model: fallbackPresetModel}
		if err := s.db.Create(&row).Error; err != nil {
			return fmt.Errorf("seed preset: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Path returns the sandbox file path.
func (s *Store) Path() string { return s.path }

func marshalIDs(ids []int64) string {
	raw, _ := json.Marshal(ids)
	return string(raw)
}

func unmarshalIDs(raw string) []int64 {
	if raw == "" {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func marshalOptions(o chat.ModelOptions) string {
	raw, _ := json.Marshal(o)
	return string(raw)
}

func unmarshalOptions(raw string) chat.ModelOptions {
	var o chat.ModelOptions
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &o)
	}
	return o
}

// CreateChat persists the chat row and every agent in one transaction, so
// a half-created chat never survives a crash.
func (s *Store) CreateChat(c *chat.Chat) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		row := chatRow{Title: c.Title}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
		c.ID = row.ID
		for _, a := range c.Agents {
			if err := createAgent(tx, c.ID, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func createAgent(tx *gorm.DB, chatID int64, a *chat.Agent) error {
	row := agentRow{
		ChatID:   chatID,
		AgentInd: a.Ordinal,
		Name:     a.Name,
		MsgIDs:   marshalIDs(a.MsgIDs),
		PresetID: a.PresetSel.ID,
		Muted:    a.Muted,
		Hidden:   a.Hidden,
		Deleted:  a.Deleted,
	}
	if a.Preset != nil {
		raw, err := a.Preset.MarshalJSONString()
		if err != nil {
			return err
		}
		row.Preset = raw
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("create agent %q: %w", a.Name, err)
	}
	a.ID = row.ID
	return nil
}

func (s *Store) CreateAgent(chatID int64, a *chat.Agent) error {
	return createAgent(s.db, chatID, a)
}

// SaveAgentHistory overwrites the agent's full ordered id list.
func (s *Store) SaveAgentHistory(agentID int64, msgIDs []int64) error {
	err := s.db.Model(&agentRow{}).Where("id = ?", agentID).
		Update("msg_ids", marshalIDs(msgIDs)).Error
	if err != nil {
		return fmt.Errorf("save agent %d history: %w", agentID, err)
	}
	return nil
}

// UpdateAgent persists the agent's mutable fields: name, preset binding
// and flags. History has its own path.
func (s *Store) UpdateAgent(a *chat.Agent) error {
	override := ""
	if a.Preset != nil {
		raw, err := a.Preset.MarshalJSONString()
		if err != nil {
			return err
		}
		override = raw
	}
	err := s.db.Model(&agentRow{}).Where("id = ?", a.ID).Updates(map[string]any{
		"name":      a.Name,
		"preset_id": a.PresetSel.ID,
		"preset":    override,
		"muted":     a.Muted,
		"hidden":    a.Hidden,
		"deleted":   a.Deleted,
	}).Error
	if err != nil {
		return fmt.Errorf("update agent %q: %w", a.Name, err)
	}
	return nil
}

// UpdateAgentSnapshot records the effective preset the agent last
// streamed with.
func (s *Store) UpdateAgentSnapshot(agentID int64, presetJSON string) error {
	err := s.db.Model(&agentRow{}).Where("id = ?", agentID).
		Update("preset_snapshot", presetJSON).Error
	if err != nil {
		return fmt.Errorf("update agent %d snapshot: %w", agentID, err)
	}
	return nil
}

func (s *Store) CreateMessage(chatID int64, m *chat.ChatMsg) error {
	row := msgRow{
		ChatID:    chatID,
		MsgRole:   m.Role.String(),
		Content:   m.Content,
		Reasoning: m.Reasoning,
		Details:   m.Details,
		Name:      m.Name,
		PresetID:  m.PresetID,
	}
	if m.Preset != nil {
		raw, err := m.Preset.MarshalJSONString()
		if err != nil {
			return err
		}
		row.Preset = raw
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	m.ID = row.ID
	return nil
}

// UpdateMessageContentReasoning persists a completed stream's buffers to
// the placeholder row.
func (s *Store) UpdateMessageContentReasoning(msgID int64, content, reasoning string) error {
	err := s.db.Model(&msgRow{}).Where("id = ?", msgID).Updates(map[string]any{
		"content":   content,
		"reasoning": reasoning,
	}).Error
	if err != nil {
		return fmt.Errorf("update message %d: %w", msgID, err)
	}
	return nil
}

// ChatTitle is one sidebar entry.
type ChatTitle struct {
	ID    int64
	Title string
}

// ChatTitles lists all chats, newest first.
func (s *Store) ChatTitles() ([]ChatTitle, error) {
	var rows []chatRow
	if err := s.db.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	out := make([]ChatTitle, 0, len(rows))
	for _, r := range rows {
		out = append(out, ChatTitle{ID: r.ID, Title: r.Title})
	}
	return out, nil
}

// LoadChat rebuilds a full conversation from the sandbox. Message content
// gets its code fences normalized for display; the stored text stays as
// written. Broken message references are dropped silently.
func (s *Store) LoadChat(id int64) (*chat.Chat, error) {
	var crow chatRow
	if err := s.db.First(&crow, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("load chat %d: %w", id, err)
	}

	var arows []agentRow
	if err := s.db.Where("chat_id = ?", id).Order("agent_ind ASC").Find(&arows).Error; err != nil {
		return nil, fmt.Errorf("load agents of chat %d: %w", id, err)
	}

	c := &chat.Chat{
		ID:    crow.ID,
		Title: crow.Title,
		Pool:  make(map[int64]*chat.ChatMsg),
	}
	for _, ar := range arows {
		a := &chat.Agent{
			ID:        ar.ID,
			Name:      ar.Name,
			Ordinal:   ar.AgentInd,
			MsgIDs:    unmarshalIDs(ar.MsgIDs),
			PresetSel: chat.PresetSelection{Ind: chat.NoSelection, ID: ar.PresetID},
			Muted:     ar.Muted,
			Hidden:    ar.Hidden,
			Deleted:   ar.Deleted,
		}
		if p, err := chat.PresetFromJSON(ar.Preset); err == nil {
			a.Preset = p
		}
		c.Agents = append(c.Agents, a)
	}

	var mrows []msgRow
	if err := s.db.Where("chat_id = ?", id).Find(&mrows).Error; err != nil {
		return nil, fmt.Errorf("load messages of chat %d: %w", id, err)
	}
	for _, mr := range mrows {
		m := &chat.ChatMsg{
			ID:        mr.ID,
			Role:      chat.ParseRole(mr.MsgRole),
			Content:   export.NormalizeCodeBlocks(mr.Content),
			Reasoning: mr.Reasoning,
			Details:   mr.Details,
			Name:      mr.Name,
			PresetID:  mr.PresetID,
		}
		if p, err := chat.PresetFromJSON(mr.Preset); err == nil {
			m.Preset = p
		}
		c.Pool[m.ID] = m
	}
	return c, nil
}

func (s *Store) RenameChat(id int64, title string) error {
	err := s.db.Model(&chatRow{}).Where("id = ?", id).Update("title", title).Error
	if err != nil {
		return fmt.Errorf("rename chat %d: %w", id, err)
	}
	return nil
}

// DeleteChat removes the chat with its agents and messages in one
// transaction.
func (s *Store) DeleteChat(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&msgRow{}).Error; err != nil {
			return fmt.Errorf("delete messages of chat %d: %w", id, err)
		}
		if err := tx.Where("chat_id = ?", id).Delete(&agentRow{}).Error; err != nil {
			return fmt.Errorf("delete agents of chat %d: %w", id, err)
		}
		if err := tx.Delete(&chatRow{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete chat %d: %w", id, err)
		}
		return nil
	})
}

// SavePreset inserts when the id is zero, updates otherwise.
func (s *Store) SavePreset(p *chat.Preset) error {
	row := presetRow{
		ID:         p.ID,
		Title:      p.Title,
		Tooltip:    p.Tooltip,
		ChatRouter: string(p.Backend),
		Model:      p.Model,
		Options:    marshalOptions(p.Options),
		Hidden:     p.Hidden,
		Deleted:    p.Deleted,
	}
	if p.ID == 0 {
		if err := s.db.Create(&row).Error; err != nil {
			return fmt.Errorf("create preset %q: %w", p.Title, err)
		}
		p.ID = row.ID
		return nil
	}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("update preset %q: %w", p.Title, err)
	}
	return nil
}

// DeletePreset removes a preset. When the last one goes, the SQL trigger
// re-inserts the fallback, so the registry is never empty.
func (s *Store) DeletePreset(id int64) error {
	if err := s.db.Delete(&presetRow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete preset %d: %w", id, err)
	}
	return nil
}

// LoadPresets returns every preset row, deleted ones included so message
// provenance still resolves.
func (s *Store) LoadPresets() ([]chat.Preset, error) {
	var rows []presetRow
	if err := s.db.Order("title ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	out := make([]chat.Preset, 0, len(rows))
	for _, r := range rows {
		out = append(out, chat.Preset{
			ID:      r.ID,
			Title:   r.Title,
			Tooltip: r.Tooltip,
			Backend: chat.ParseBackend(r.ChatRouter),
			Model:   r.Model,
			Options: unmarshalOptions(r.Options),
			Hidden:  r.Hidden,
			Deleted: r.Deleted,
		})
	}
	return out, nil
}

// ResetAllData drops every table and recreates the schema. Meant for the
// explicit "wipe the sandbox" action, nothing else.
func (s *Store) ResetAllData() error {
	tables := []any{&msgRow{}, &agentRow{}, &chatRow{}, &presetRow{}, &schemaVersionRow{}}
	if err := s.db.Migrator().DropTable(tables...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return s.init()
}
