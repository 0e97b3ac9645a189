package chat

// ChatMsg is one entry in a chat's message pool. Assistant messages record
// the display name of the agent that produced them and the preset that was
// in effect, so old conversations render and replay faithfully even after
// the registry changes.
type ChatMsg struct {
	ID        int64
	Role      Role
	Content   string
	Reasoning string
	Details   string

	// Name is the producing agent's display name, empty for user and
	// system messages.
	Name string

	// PresetID references the registry preset used, 0 when none. Preset is
	// the frozen snapshot taken at request time, nil when none.
	PresetID int64
	Preset   *Preset
}

// Clone returns a deep copy of the message.
func (m *ChatMsg) Clone() *ChatMsg {
	out := *m
	if m.Preset != nil {
		p := *m.Preset
		out.Preset = &p
	}
	return &out
}
