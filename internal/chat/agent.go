package chat

// Agent is one participant in a chat. Ordinal 0 is always the hidden
// aggregator that sees every message from every agent; user-visible agents
// start at ordinal 1.
type Agent struct {
	ID      int64
	Name    string
	Ordinal int

	// MsgIDs is this agent's ordered view into the chat's message pool.
	MsgIDs []int64

	// PresetSel references a registry preset; Preset, when non-nil, is a
	// per-agent override that wins over the selection.
	PresetSel PresetSelection
	Preset    *Preset

	Muted   bool
	Hidden  bool
	Deleted bool
}

// Active reports whether this agent should receive a placeholder and a
// stream on submission. The aggregator and muted or deleted agents do not.
func (a *Agent) Active() bool {
	return a.Ordinal >= 1 && !a.Muted && !a.Deleted
}

// EffectivePreset resolves the preset to use for a request: the override
// if present, otherwise the registry preset the selection points at. Nil
// when neither resolves.
func (a *Agent) EffectivePreset(ps *Presets) *Preset {
	if a.Preset != nil {
		return a.Preset
	}
	return ps.Get(a.PresetSel.ID)
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	out := *a
	out.MsgIDs = append([]int64(nil), a.MsgIDs...)
	if a.Preset != nil {
		p := *a.Preset
		out.Preset = &p
	}
	return &out
}
