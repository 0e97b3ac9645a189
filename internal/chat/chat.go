package chat

import "fmt"

// MaxAgents is the highest usable agent ordinal. The completion mask is a
// 128-bit set indexed by ordinal, with ordinal 0 reserved for the
// aggregator, which leaves 127 streaming agents.
const MaxAgents = 127

// AggregatorName is the display name of the hidden ordinal-0 agent whose
// history interleaves every message in submission order.
const AggregatorName = "Omnis"

// DefaultTitle is the title of a chat that has not been named yet.
const DefaultTitle = "Unnamed Chat"

// Store is the slice of persistence the conversation model needs while a
// chat is being mutated. The full store implements it.
type Store interface {
	// CreateMessage inserts the message and fills in its ID.
	CreateMessage(chatID int64, m *ChatMsg) error
	// SaveAgentHistory overwrites the agent's ordered message-id list.
	SaveAgentHistory(agentID int64, msgIDs []int64) error
	// CreateAgent inserts the agent and fills in its ID.
	CreateAgent(chatID int64, a *Agent) error
}

// HistoryEntry is one turn of an agent's history projected for request
// construction.
type HistoryEntry struct {
	Role    Role
	Content string
}

// Chat is a conversation: a pool of messages plus per-agent ordered views
// into it. ID 0 means the chat has not been persisted yet.
type Chat struct {
	ID    int64
	Title string

	Pool   map[int64]*ChatMsg
	Agents []*Agent
}

// NewChat returns an unsaved chat with the default participants: the
// hidden aggregator at ordinal 0 and one visible agent at ordinal 1.
func NewChat() *Chat {
	return &Chat{
		Title: DefaultTitle,
		Pool:  make(map[int64]*ChatMsg),
		Agents: []*Agent{
			{Name: AggregatorName, Ordinal: 0, Hidden: true},
			{Name: "Agent1", Ordinal: 1},
		},
	}
}

// TitleFromPrompt derives a chat title from the first characters of a
// prompt.
func TitleFromPrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	return string(runes)
}

// Agent returns the agent at the given ordinal, or nil.
func (c *Chat) Agent(ordinal int) *Agent {
	for _, a := range c.Agents {
		if a.Ordinal == ordinal {
			return a
		}
	}
	return nil
}

// NextOrdinal returns the ordinal the next added agent would get.
func (c *Chat) NextOrdinal() int {
	next := 1
	for _, a := range c.Agents {
		if a.Ordinal >= next {
			next = a.Ordinal + 1
		}
	}
	return next
}

// AddAgent appends a new agent at the next free ordinal, copying the
// preset selection of the last agent. When the ordinal space is exhausted
// it silently does nothing and returns nil, nil. The agent is persisted
// only if the chat itself already is.
func (c *Chat) AddAgent(store Store) (*Agent, error) {
	ord := c.NextOrdinal()
	if ord > MaxAgents {
		return nil, nil
	}
	a := &Agent{
		Name:    fmt.Sprintf("Agent%d", ord),
		Ordinal: ord,
	}
	if last := c.Agents[len(c.Agents)-1]; last != nil {
		a.PresetSel = last.PresetSel
	}
	if c.ID != 0 {
		if err := store.CreateAgent(c.ID, a); err != nil {
			return nil, fmt.Errorf("add agent %q: %w", a.Name, err)
		}
	}
	c.Agents = append(c.Agents, a)
	return a, nil
}

// AppendShared persists a message and appends it to every agent's history,
// persisting each updated history. Used for system and user messages,
// which all agents see regardless of muting. On a persistence failure the
// in-memory chat is left untouched.
func (c *Chat) AppendShared(store Store, m *ChatMsg) error {
	if err := store.CreateMessage(c.ID, m); err != nil {
		return fmt.Errorf("append %s message: %w", m.Role, err)
	}
	for _, a := range c.Agents {
		a.MsgIDs = append(a.MsgIDs, m.ID)
		if err := store.SaveAgentHistory(a.ID, a.MsgIDs); err != nil {
			return fmt.Errorf("save history of %q: %w", a.Name, err)
		}
	}
	c.Pool[m.ID] = m
	return nil
}

// History projects the given agent's view of the conversation for request
// construction. Pool references with no backing message are skipped rather
// than aborting the projection.
func (c *Chat) History(ordinal int) []HistoryEntry {
	a := c.Agent(ordinal)
	if a == nil {
		return nil
	}
	out := make([]HistoryEntry, 0, len(a.MsgIDs))
	for _, id := range a.MsgIDs {
		m, ok := c.Pool[id]
		if !ok {
			continue
		}
		out = append(out, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

// Snapshot deep-copies the chat. Producer goroutines read only snapshots,
// never the live chat.
func (c *Chat) Snapshot() *Chat {
	out := &Chat{
		ID:     c.ID,
		Title:  c.Title,
		Pool:   make(map[int64]*ChatMsg, len(c.Pool)),
		Agents: make([]*Agent, len(c.Agents)),
	}
	for id, m := range c.Pool {
		out.Pool[id] = m.Clone()
	}
	for i, a := range c.Agents {
		out.Agents[i] = a.Clone()
	}
	return out
}
