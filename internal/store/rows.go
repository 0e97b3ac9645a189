package store

// Row types mirror the on-disk schema. Table names are singular to stay
// compatible with sandbox files written by earlier versions.

type chatRow struct {
	ID    int64 `gorm:"primaryKey"`
	Title string
}

func (chatRow) TableName() string { return "chat" }

type agentRow struct {
	ID       int64 `gorm:"primaryKey"`
	ChatID   int64 `gorm:"uniqueIndex:idx_chat_agent"`
	AgentInd int   `gorm:"uniqueIndex:idx_chat_agent"`
	Name     string

	// MsgIDs is the agent's ordered history as a JSON array of message
	// ids, overwritten wholesale on every append.
	MsgIDs string

	PresetID int64
	// Preset is the per-agent override snapshot, empty when the agent
	// follows the registry.
	Preset string
	// PresetSnapshot records the effective preset of the last stream.
	PresetSnapshot string

	Muted   bool
	Hidden  bool
	Deleted bool
}

func (agentRow) TableName() string { return "agent" }

type msgRow struct {
	ID        int64 `gorm:"primaryKey"`
	ChatID    int64 `gorm:"index"`
	MsgRole   string
	Content   string
	Reasoning string
	Details   string
	Name      string
	PresetID  int64
	Preset    string
}

func (msgRow) TableName() string { return "msg" }

type presetRow struct {
	ID         int64  `gorm:"primaryKey"`
	Title      string `gorm:"uniqueIndex"`
	Tooltip    string
	ChatRouter string
	Model      string
	Options    string
	Hidden     bool
	Deleted    bool
}

func (presetRow) TableName() string { return "preset" }

type schemaVersionRow struct {
	ID      int64 `gorm:"primaryKey"`
	Version int
}

func (schemaVersionRow) TableName() string { return "schema_version" }
