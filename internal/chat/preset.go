package chat

import (
	"encoding/json"
	"fmt"
)

// Backend selects which provider adapter serves a preset.
type Backend string

const (
	// BackendOllama talks to a local Ollama daemon over HTTP.
	BackendOllama Backend = "Ollama"
	// BackendOpenRouter talks to the OpenRouter HTTP API.
	BackendOpenRouter Backend = "Openrouter"
	// BackendAnthropic talks to the Anthropic API directly.
	BackendAnthropic Backend = "Anthropic"
)

// ParseBackend maps a stored backend string to a Backend. Unknown values
// fall back to the local daemon.
func ParseBackend(s string) Backend {
	switch Backend(s) {
	case BackendOpenRouter:
		return BackendOpenRouter
	case BackendAnthropic:
		return BackendAnthropic
	default:
		return BackendOllama
	}
}

// ModelOptions are the generation options a preset carries. All fields are
// tri-state: nil means "unset, let the backend default apply".
type ModelOptions struct {
	IncludeReasoning *bool    `json:"include_reasoning,omitempty"`
	Seed             *int32   `json:"seed,omitempty"` // never negative
	Temperature      *float64 `json:"temperature,omitempty"`
}

// PresetFormatVersion is embedded in exported preset JSON so future
// versions can detect and migrate older exports.
const PresetFormatVersion = 2

// Preset bundles a backend choice, a model id and generation options under
// a short title, so the whole thing can be stored in the database and
// attached to agents either by id or by value (frozen snapshot).
type Preset struct {
	ID      int64        `json:"id"`
	Title   string       `json:"title"`
	Tooltip string       `json:"tooltip"`
	Backend Backend      `json:"chat_router"`
	Model   string       `json:"model"`
	Options ModelOptions `json:"options"`
	Hidden  bool         `json:"hidden"` // true when used as an override
	Deleted bool         `json:"deleted"`

	// APIKey is resolved from the secret service at request time and must
	// never be persisted.
	APIKey string `json:"-"`

	FormatVersion int `json:"inforno_preset"`
}

// NewPreset returns an unsaved preset with the defaults a fresh editor
// session starts from.
func NewPreset() Preset {
	return Preset{
		Title:         "Unnamed Preset",
		Backend:       BackendOllama,
		FormatVersion: PresetFormatVersion,
	}
}

// MarshalJSONString serializes the preset for storage or export, stamping
// the current format version.
func (p Preset) MarshalJSONString() (string, error) {
	out := p
	out.FormatVersion = PresetFormatVersion
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal preset %q: %w", p.Title, err)
	}
	return string(raw), nil
}

// PresetFromJSON deserializes a preset snapshot from storage or a file.
// Legacy JSON without a format version unmarshals with zero-value defaults.
func PresetFromJSON(raw string) (*Preset, error) {
	if raw == "" {
		return nil, nil
	}
	var p Preset
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("parse preset snapshot: %w", err)
	}
	return &p, nil
}

// PresetRef is a cached (id, title) pair for selector widgets.
type PresetRef struct {
	ID    int64
	Title string
}

// Presets is the in-memory preset registry loaded from the database. The
// generation counter invalidates cached title/index lookups held by
// PresetSelection values whenever the registry is replaced wholesale.
type Presets struct {
	byID  map[int64]Preset
	cache []PresetRef

	generation uint64
}

func NewPresets() *Presets {
	return &Presets{byID: make(map[int64]Preset)}
}

// Get returns the preset with the given id, or nil.
func (ps *Presets) Get(id int64) *Preset {
	if ps == nil {
		return nil
	}
	p, ok := ps.byID[id]
	if !ok {
		return nil
	}
	return &p
}

// Refs returns the cached (id, title) pairs of all non-deleted presets in
// title order.
func (ps *Presets) Refs() []PresetRef {
	return ps.cache
}

// Generation reports the current registry generation.
func (ps *Presets) Generation() uint64 {
	return ps.generation
}

// ReplaceAll swaps in a freshly loaded preset list and bumps the
// generation so stale selections resync.
func (ps *Presets) ReplaceAll(loaded []Preset) {
	ps.byID = make(map[int64]Preset, len(loaded))
	ps.cache = ps.cache[:0]
	for _, p := range loaded {
		if !p.Deleted {
			ps.cache = append(ps.cache, PresetRef{ID: p.ID, Title: p.Title})
		}
		ps.byID[p.ID] = p
	}
	ps.generation++
}

// PresetSelection stores both the index into the registry cache and the
// preset id, so selector widgets render without a map lookup per frame.
type PresetSelection struct {
	Ind   int   `json:"ind"`
	ID    int64 `json:"id"`
	Title string

	lastSyncGen uint64
}

// NoSelection marks a selection whose id has no match in the registry.
const NoSelection = -1

// SelectionFromID builds a selection for the given preset id, resolving
// index and title against the registry.
func SelectionFromID(id int64, ps *Presets) PresetSelection {
	sel := PresetSelection{Ind: NoSelection, ID: id}
	sel.Sync(ps)
	return sel
}

// Sync refreshes the cached index and title after the registry changed.
// Cheap when the generation is unchanged.
func (sel *PresetSelection) Sync(ps *Presets) {
	if ps == nil {
		return
	}
	if sel.Ind == NoSelection {
		for i, ref := range ps.cache {
			if ref.ID == sel.ID {
				sel.Ind = i
				sel.Title = ref.Title
				break
			}
		}
		sel.lastSyncGen = ps.generation
		return
	}

	if sel.lastSyncGen == ps.generation {
		return
	}
	sel.lastSyncGen = ps.generation

	if sel.Ind >= 0 && sel.Ind < len(ps.cache) && ps.cache[sel.Ind].ID == sel.ID {
		sel.Title = ps.cache[sel.Ind].Title
		return
	}
	// index no longer matches; fall back to a full scan
	sel.Ind = NoSelection
	sel.Sync(ps)
}
