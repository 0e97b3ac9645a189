// Package tui is the terminal frontend: one bubbletea program showing the
// aggregator transcript, an agent strip, a chat sidebar and the prompt
// editor. All streaming state is drained from the orchestrator once per
// tick; nothing here blocks on the network.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/alexkh/inforno/internal/chat"
	"github.com/alexkh/inforno/internal/config"
	"github.com/alexkh/inforno/internal/export"
	"github.com/alexkh/inforno/internal/orchestrator"
	"github.com/alexkh/inforno/internal/store"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Options wires the TUI to the rest of the app.
type Options struct {
	Store   *store.Store
	Orch    *orchestrator.Orchestrator
	Presets *chat.Presets
	Theme   config.Theme
	Log     *slog.Logger
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, in io.Reader, out io.Writer, opts Options) error {
	if f, ok := out.(*os.File); ok {
		if !term.IsTerminal(int(f.Fd())) {
			return fmt.Errorf("stdout is not a TTY")
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newModel(ctx, opts)
	prog := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	_, err := prog.Run()
	return err
}

type inputMode int

const (
	modePrompt inputMode = iota
	modeSystem
	modeRename
)

type model struct {
	ctx  context.Context
	opts Options

	chat    *chat.Chat
	titles  []store.ChatTitle
	current int // index into titles, -1 for an unsaved chat

	agentCursor int // ordinal of the selected agent

	systemPrompt string
	mode         inputMode

	input    textinput.Model
	viewport viewport.Model

	width  int
	height int

	stickToBottom bool
	spinnerFrame  int

	notice string

	styles styles
}

type initMsg struct{}

type tickMsg struct{}

func newModel(ctx context.Context, opts Options) model {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	inp := textinput.New()
	inp.Placeholder = "Type a prompt…"
	inp.Prompt = "› "
	inp.CharLimit = 0
	inp.Focus()

	vp := viewport.New(0, 0)
	vp.SetContent("")

	return model{
		ctx:           ctx,
		opts:          opts,
		chat:          chat.NewChat(),
		current:       -1,
		agentCursor:   1,
		input:         inp,
		viewport:      vp,
		stickToBottom: true,
		styles:        newStyles(opts.Theme),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return initMsg{} },
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.rerender()
		return m, nil
	case initMsg:
		m.reloadTitles()
		m.syncSelections()
		m.rerender()
		return m, nil
	case tickMsg:
		if m.opts.Orch.Drain(m.chat) {
			m.rerender()
		}
		if m.opts.Orch.Busy() {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		}
		return m, tickCmd()
	case tea.KeyMsg:
		handled, cmd := m.handleKey(msg)
		if handled {
			return m, cmd
		}
		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		return m, inputCmd
	default:
		return m, nil
	}
}

func (m *model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.opts.Orch.Abort()
		return true, tea.Quit
	case "esc":
		if m.mode != modePrompt {
			m.mode = modePrompt
			m.input.SetValue("")
			m.input.Placeholder = "Type a prompt…"
			m.rerender()
			return true, nil
		}
		if m.opts.Orch.Busy() {
			m.opts.Orch.Abort()
			m.notice = "stopping…"
			m.rerender()
			return true, nil
		}
		m.notice = ""
		m.rerender()
		return true, nil
	case "enter":
		m.submitInput()
		m.rerender()
		return true, nil
	case "tab":
		m.cycleAgent(1)
		m.rerender()
		return true, nil
	case "shift+tab":
		m.cycleAgent(-1)
		m.rerender()
		return true, nil
	case "ctrl+n":
		m.newChat()
		m.rerender()
		return true, nil
	case "ctrl+a":
		m.addAgent()
		m.rerender()
		return true, nil
	case "ctrl+x":
		m.toggleMute()
		m.rerender()
		return true, nil
	case "ctrl+t":
		m.cyclePreset()
		m.rerender()
		return true, nil
	case "ctrl+s":
		m.mode = modeSystem
		m.input.SetValue(m.systemPrompt)
		m.input.Placeholder = "System prompt for the next submission…"
		m.rerender()
		return true, nil
	case "ctrl+r":
		m.mode = modeRename
		m.input.SetValue(m.chat.Title)
		m.input.Placeholder = "New chat title…"
		m.rerender()
		return true, nil
	case "ctrl+e":
		m.exportTranscript()
		m.rerender()
		return true, nil
	case "ctrl+p":
		m.switchChat(-1)
		m.rerender()
		return true, nil
	case "ctrl+o":
		m.switchChat(1)
		m.rerender()
		return true, nil
	case "ctrl+d":
		m.deleteChat()
		m.rerender()
		return true, nil
	case "up", "down", "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.stickToBottom = m.viewport.AtBottom()
		return true, cmd
	default:
		return false, nil
	}
}

func (m *model) submitInput() {
	value := m.input.Value()
	switch m.mode {
	case modeSystem:
		m.systemPrompt = strings.TrimSpace(value)
		m.mode = modePrompt
		m.input.SetValue("")
		m.input.Placeholder = "Type a prompt…"
		if m.systemPrompt != "" {
			m.notice = "system prompt armed for next submission"
		} else {
			m.notice = "system prompt cleared"
		}
		return
	case modeRename:
		title := strings.TrimSpace(value)
		m.mode = modePrompt
		m.input.SetValue("")
		m.input.Placeholder = "Type a prompt…"
		if title == "" {
			return
		}
		m.chat.Title = title
		if m.chat.ID != 0 {
			if err := m.opts.Store.RenameChat(m.chat.ID, title); err != nil {
				m.notice = err.Error()
				return
			}
			m.reloadTitles()
		}
		m.notice = ""
		return
	}

	prompt := strings.TrimSpace(value)
	wasUnsaved := m.chat.ID == 0
	if err := m.opts.Orch.Submit(m.chat, prompt, m.systemPrompt); err != nil {
		m.notice = err.Error()
		return
	}
	m.systemPrompt = ""
	m.input.SetValue("")
	m.notice = ""
	m.stickToBottom = true
	if wasUnsaved {
		m.reloadTitles()
	}
}

func (m *model) cycleAgent(dir int) {
	ords := m.visibleOrdinals()
	if len(ords) == 0 {
		return
	}
	cur := 0
	for i, o := range ords {
		if o == m.agentCursor {
			cur = i
			break
		}
	}
	cur = (cur + dir + len(ords)) % len(ords)
	m.agentCursor = ords[cur]
}

func (m *model) visibleOrdinals() []int {
	var out []int
	for _, a := range m.chat.Agents {
		if a.Ordinal >= 1 && !a.Deleted {
			out = append(out, a.Ordinal)
		}
	}
	return out
}

func (m *model) newChat() {
	if m.opts.Orch.Busy() {
		m.notice = "still streaming; stop first"
		return
	}
	m.chat = chat.NewChat()
	m.current = -1
	m.agentCursor = 1
	m.systemPrompt = ""
	m.syncSelections()
	m.notice = ""
}

func (m *model) addAgent() {
	a, err := m.chat.AddAgent(m.opts.Store)
	if err != nil {
		m.notice = err.Error()
		return
	}
	if a == nil {
		// ordinal space exhausted; quietly keep the current roster
		return
	}
	m.agentCursor = a.Ordinal
	m.notice = ""
}

func (m *model) toggleMute() {
	a := m.chat.Agent(m.agentCursor)
	if a == nil {
		return
	}
	a.Muted = !a.Muted
	if m.chat.ID != 0 {
		if err := m.opts.Store.UpdateAgent(a); err != nil {
			m.notice = err.Error()
			return
		}
	}
	m.notice = ""
}

// cyclePreset moves the selected agent to the next registry preset. An
// agent with a frozen override keeps it; clear the override first.
func (m *model) cyclePreset() {
	a := m.chat.Agent(m.agentCursor)
	if a == nil {
		return
	}
	if a.Preset != nil {
		m.notice = "agent uses a frozen preset override"
		return
	}
	refs := m.opts.Presets.Refs()
	if len(refs) == 0 {
		return
	}
	next := 0
	for i, ref := range refs {
		if ref.ID == a.PresetSel.ID {
			next = (i + 1) % len(refs)
			break
		}
	}
	a.PresetSel = chat.SelectionFromID(refs[next].ID, m.opts.Presets)
	if m.chat.ID != 0 {
		if err := m.opts.Store.UpdateAgent(a); err != nil {
			m.notice = err.Error()
			return
		}
	}
	m.notice = ""
}

func (m *model) exportTranscript() {
	html, err := export.Transcript(m.chat)
	if err != nil {
		m.notice = err.Error()
		return
	}
	name := sanitizeFileName(m.chat.Title) + ".html"
	if err := os.WriteFile(name, []byte(html), 0o644); err != nil {
		m.opts.Log.Error("export transcript", "err", err)
		m.notice = err.Error()
		return
	}
	m.notice = "exported " + name
}

func sanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "chat"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

func (m *model) reloadTitles() {
	titles, err := m.opts.Store.ChatTitles()
	if err != nil {
		m.opts.Log.Error("list chats", "err", err)
		m.notice = err.Error()
		return
	}
	m.titles = titles
	m.current = -1
	for i, t := range titles {
		if t.ID == m.chat.ID {
			m.current = i
			break
		}
	}
}

func (m *model) switchChat(dir int) {
	if m.opts.Orch.Busy() {
		m.notice = "still streaming; stop first"
		return
	}
	if len(m.titles) == 0 {
		return
	}
	next := m.current + dir
	if next < 0 {
		next = 0
	}
	if next >= len(m.titles) {
		next = len(m.titles) - 1
	}
	if next == m.current {
		return
	}
	c, err := m.opts.Store.LoadChat(m.titles[next].ID)
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.chat = c
	m.current = next
	m.agentCursor = 1
	m.systemPrompt = ""
	m.syncSelections()
	m.stickToBottom = true
	m.notice = ""
}

func (m *model) deleteChat() {
	if m.opts.Orch.Busy() {
		m.notice = "still streaming; stop first"
		return
	}
	if m.chat.ID == 0 {
		m.newChat()
		return
	}
	if err := m.opts.Store.DeleteChat(m.chat.ID); err != nil {
		m.notice = err.Error()
		return
	}
	m.newChat()
	m.reloadTitles()
	m.notice = "chat deleted"
}

func (m *model) syncSelections() {
	for _, a := range m.chat.Agents {
		a.PresetSel.Sync(m.opts.Presets)
	}
}
