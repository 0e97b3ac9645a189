// Package orchestrator runs a submission: it fans the prompt out to every
// active agent, one producer goroutine per agent, and funnels their deltas
// through a single channel that the UI drains once per tick. Producers
// never touch shared state; every mutation of the live chat happens on the
// consumer side in Drain.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexkh/inforno/internal/chat"
	"github.com/alexkh/inforno/internal/llm"
)

var (
	// ErrEmptyPrompt rejects a submission with nothing to send.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrNoActivePreset rejects a submission when no unmuted agent has a
	// resolvable preset.
	ErrNoActivePreset = errors.New("no active agent has a preset")
	// ErrBusy rejects a submission while a session is still streaming.
	ErrBusy = errors.New("a session is already running")
)

// errAnnotation is appended to an agent's visible content when its stream
// fails, matching what users of earlier versions learned to look for.
const errAnnotation = "**Error! Is the Server Running? Details: %s**\n"

type eventKind int

const (
	eventContent eventKind = iota
	eventReasoning
	eventFailed
	eventFinished
)

// event is one immutable delta from a producer, tagged with the ordinal
// of the agent it belongs to.
type event struct {
	ordinal   int
	kind      eventKind
	text      string
	transient bool
}

// Store is the persistence the orchestrator needs beyond the conversation
// model's own.
type Store interface {
	chat.Store
	// CreateChat persists the chat and all its agents in one transaction,
	// filling in their ids.
	CreateChat(c *chat.Chat) error
	// UpdateAgentSnapshot records the preset snapshot the agent last
	// streamed with.
	UpdateAgentSnapshot(agentID int64, presetJSON string) error
	// UpdateMessageContentReasoning persists a completed stream's buffers.
	UpdateMessageContentReasoning(msgID int64, content, reasoning string) error
}

// KeyFunc resolves the API key for a backend, empty when none is needed
// or configured.
type KeyFunc func(chat.Backend) string

// StreamerFunc builds the streaming client for a preset. Tests substitute
// their own.
type StreamerFunc func(*chat.Preset, llm.Endpoints) (llm.Streamer, error)

// Orchestrator owns at most one streaming session at a time.
type Orchestrator struct {
	store     Store
	presets   *chat.Presets
	endpoints llm.Endpoints
	apiKey    KeyFunc
	streamer  StreamerFunc
	log       *slog.Logger

	events chan event
	mask   AgentMask
	msgIDs [128]int64
	cancel context.CancelFunc
}

func New(store Store, presets *chat.Presets, ep llm.Endpoints, apiKey KeyFunc, log *slog.Logger) *Orchestrator {
	if apiKey == nil {
		apiKey = func(chat.Backend) string { return "" }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:     store,
		presets:   presets,
		endpoints: ep,
		apiKey:    apiKey,
		streamer:  llm.NewStreamer,
		log:       log,
		events:    make(chan event, 512),
	}
}

// Busy reports whether any agent of the current session is still
// streaming.
func (o *Orchestrator) Busy() bool {
	return o.mask.Any()
}

// Abort cancels the running session. Producers wind down and still report
// finished, so buffered partial replies are persisted as usual.
func (o *Orchestrator) Abort() {
	if o.cancel != nil {
		o.cancel()
	}
}

// Submit validates and runs one prompt against the chat. On a validation
// error nothing has been mutated or persisted. The chat itself is created
// on first submission.
func (o *Orchestrator) Submit(c *chat.Chat, prompt, systemPrompt string) error {
	if o.Busy() {
		return ErrBusy
	}
	if prompt == "" {
		return ErrEmptyPrompt
	}

	// Resolve and validate every active agent's preset before touching
	// anything, so a bad temperature on agent 3 doesn't leave agents 1
	// and 2 half-submitted.
	type launch struct {
		agent  *chat.Agent
		preset *chat.Preset
	}
	var launches []launch
	for _, a := range c.Agents {
		if !a.Active() {
			continue
		}
		p := a.EffectivePreset(o.presets)
		if p == nil {
			continue
		}
		if _, err := llm.BuildRequest(p, nil); err != nil {
			return fmt.Errorf("agent %q: %w", a.Name, err)
		}
		launches = append(launches, launch{agent: a, preset: p})
	}
	if len(launches) == 0 {
		return ErrNoActivePreset
	}

	if c.ID == 0 {
		c.Title = chat.TitleFromPrompt(prompt)
		if err := o.store.CreateChat(c); err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
	}

	if systemPrompt != "" {
		if err := c.AppendShared(o.store, &chat.ChatMsg{Role: chat.RoleSystem, Content: systemPrompt}); err != nil {
			return err
		}
	}
	if err := c.AppendShared(o.store, &chat.ChatMsg{Role: chat.RoleUser, Content: prompt}); err != nil {
		return err
	}

	// Requests are built from a snapshot taken now, so the placeholders
	// created below never leak into any agent's request history.
	snap := c.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	aggregator := c.Agent(0)
	started := false
	for _, l := range launches {
		a, p := l.agent, l.preset

		effective := *p
		effective.APIKey = o.apiKey(effective.Backend)

		if a.Preset == nil {
			if raw, err := effective.MarshalJSONString(); err == nil {
				if err := o.store.UpdateAgentSnapshot(a.ID, raw); err != nil {
					o.log.Warn("persist agent snapshot", "agent", a.Name, "err", err)
				}
			}
		}

		req, err := llm.BuildRequest(&effective, snap.History(a.Ordinal))
		if err != nil {
			o.log.Warn("build request", "agent", a.Name, "err", err)
			continue
		}
		streamer, err := o.streamer(&effective, o.endpoints)
		if err != nil {
			o.log.Warn("create streamer", "agent", a.Name, "err", err)
			continue
		}

		frozen := effective
		frozen.APIKey = ""
		placeholder := &chat.ChatMsg{
			Role:     chat.RoleAssistant,
			Name:     a.Name,
			PresetID: p.ID,
			Preset:   &frozen,
		}
		if err := o.store.CreateMessage(c.ID, placeholder); err != nil {
			o.log.Error("create placeholder", "agent", a.Name, "err", err)
			continue
		}
		c.Pool[placeholder.ID] = placeholder
		for _, holder := range []*chat.Agent{aggregator, a} {
			holder.MsgIDs = append(holder.MsgIDs, placeholder.ID)
			if err := o.store.SaveAgentHistory(holder.ID, holder.MsgIDs); err != nil {
				o.log.Error("save history", "agent", holder.Name, "err", err)
			}
		}

		o.msgIDs[a.Ordinal] = placeholder.ID
		o.mask.Set(a.Ordinal)
		started = true
		go o.produce(ctx, a.Ordinal, streamer, req)
	}

	if !started {
		cancel()
		o.cancel = nil
		return ErrNoActivePreset
	}
	return nil
}

// produce forwards one agent's stream into the shared channel. It always
// ends with a finished event, error or not, so the completion bit is
// guaranteed to clear.
func (o *Orchestrator) produce(ctx context.Context, ordinal int, s llm.Streamer, req llm.Request) {
	for ev := range s.Stream(ctx, req) {
		switch {
		case ev.Err != nil:
			o.events <- event{ordinal: ordinal, kind: eventFailed, text: ev.Err.Message, transient: ev.Err.Transient}
		case ev.Reasoning != "":
			o.events <- event{ordinal: ordinal, kind: eventReasoning, text: ev.Reasoning}
		case ev.Content != "":
			o.events <- event{ordinal: ordinal, kind: eventContent, text: ev.Content}
		}
	}
	o.events <- event{ordinal: ordinal, kind: eventFinished}
}

// Drain applies every pending event to the live chat and reports whether
// anything changed. The UI calls this once per tick; between calls the
// channel buffers.
func (o *Orchestrator) Drain(c *chat.Chat) bool {
	changed := false
	for {
		select {
		case ev := <-o.events:
			o.apply(c, ev)
			changed = true
		default:
			if changed && !o.mask.Any() && o.cancel != nil {
				o.cancel()
				o.cancel = nil
			}
			return changed
		}
	}
}

func (o *Orchestrator) apply(c *chat.Chat, ev event) {
	msg := c.Pool[o.msgIDs[ev.ordinal]]
	if msg == nil {
		return
	}
	switch ev.kind {
	case eventContent:
		msg.Content += ev.text
	case eventReasoning:
		msg.Reasoning += ev.text
	case eventFailed:
		if ev.transient {
			o.log.Warn("transient stream error", "agent", msg.Name, "err", ev.text)
			return
		}
		o.log.Error("stream failed", "agent", msg.Name,
			"class", llm.Classify(ev.text), "err", ev.text)
		msg.Content += fmt.Sprintf(errAnnotation, ev.text)
		// the bit stays set: only the producer's single finished event,
		// sent after its channel closes, may clear it. Clearing here would
		// let a new session start while that finished event is still in
		// flight, and the stale event would then hit the new session's
		// message id.
	case eventFinished:
		if err := o.store.UpdateMessageContentReasoning(msg.ID, msg.Content, msg.Reasoning); err != nil {
			o.log.Error("persist reply", "agent", msg.Name, "err", err)
		}
		o.mask.Clear(ev.ordinal)
	}
}
