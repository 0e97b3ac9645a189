package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/alexkh/inforno/internal/appinfo"
	"github.com/alexkh/inforno/internal/config"
	"github.com/alexkh/inforno/internal/export"
)

const sidebarWidth = 24

type styles struct {
	header    lipgloss.Style
	sidebar   lipgloss.Style
	selected  lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	reasoning lipgloss.Style
	muted     lipgloss.Style
	errText   lipgloss.Style
	agentCard lipgloss.Style
	agentCur  lipgloss.Style
	status    lipgloss.Style
}

func newStyles(t config.Theme) styles {
	accent := lipgloss.Color(t.Accent)
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		sidebar:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		selected:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.User)),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Assistant)),
		system:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(t.Muted)),
		reasoning: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(t.Reasoning)),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		errText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Error)),
		agentCard: lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(t.Muted)),
		agentCur:  lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(accent),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
	}
}

func (m *model) resize() {
	mainWidth := m.width - sidebarWidth - 1
	if mainWidth < 20 {
		mainWidth = m.width
	}
	// header + agent strip (3) + input + status
	bodyHeight := m.height - 6
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	m.viewport.Width = mainWidth
	m.viewport.Height = bodyHeight
	m.input.Width = m.width - 4
}

func (m *model) rerender() {
	m.viewport.SetContent(m.renderTranscript(m.viewport.Width))
	if m.stickToBottom {
		m.viewport.GotoBottom()
	}
}

func (m *model) renderTranscript(width int) string {
	if width <= 0 {
		width = 80
	}
	aggregator := m.chat.Agent(0)
	if aggregator == nil {
		return ""
	}
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for _, id := range aggregator.MsgIDs {
		msg, ok := m.chat.Pool[id]
		if !ok {
			continue
		}
		b.WriteString(m.speakerLine(msg.Role.String(), msg.Name))
		b.WriteString("\n")
		if msg.Reasoning != "" {
			b.WriteString(m.styles.reasoning.Render(wrap.Render(msg.Reasoning)))
			b.WriteString("\n")
		}
		content := export.NormalizeCodeBlocks(msg.Content)
		if content == "" && m.opts.Orch.Busy() {
			content = spinnerFrames[m.spinnerFrame]
		}
		b.WriteString(wrap.Render(content))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m *model) speakerLine(role, name string) string {
	switch role {
	case "assistant":
		if name == "" {
			name = "assistant"
		}
		return m.styles.assistant.Render(name)
	case "system":
		return m.styles.system.Render("system")
	default:
		return m.styles.user.Render("you")
	}
}

func (m *model) renderSidebar(height int) string {
	lines := make([]string, 0, height)
	if m.chat.ID == 0 {
		lines = append(lines, m.styles.selected.Render("+ "+truncate(m.chat.Title, sidebarWidth-2)))
	}
	for i, t := range m.titles {
		if len(lines) >= height {
			break
		}
		label := truncate(t.Title, sidebarWidth-2)
		if i == m.current {
			lines = append(lines, m.styles.selected.Render("> "+label))
			continue
		}
		lines = append(lines, m.styles.sidebar.Render("  "+label))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(sidebarWidth).Render(strings.Join(lines, "\n"))
}

func (m *model) renderAgentStrip() string {
	var cards []string
	for _, a := range m.chat.Agents {
		if a.Ordinal < 1 || a.Deleted {
			continue
		}
		label := a.Name
		if title := a.PresetSel.Title; a.Preset != nil {
			label += " · " + truncate(a.Preset.Title, 18)
		} else if title != "" {
			label += " · " + truncate(title, 18)
		}
		if a.Muted {
			label = m.styles.muted.Render(label + " (muted)")
		}
		style := m.styles.agentCard
		if a.Ordinal == m.agentCursor {
			style = m.styles.agentCur
		}
		cards = append(cards, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m *model) renderStatus() string {
	if m.notice != "" {
		return m.styles.errText.Render(m.notice)
	}
	hints := "enter send · tab agent · ^a add · ^x mute · ^t preset · ^n new · ^s system · ^r rename · ^e export · ^p/^o chats · ^c quit"
	if m.systemPrompt != "" {
		hints = "[system prompt armed] " + hints
	}
	return m.styles.status.Render(truncate(hints, m.width))
}

func (m model) View() string {
	if m.width == 0 {
		return "starting…"
	}

	title := m.chat.Title
	busy := ""
	if m.opts.Orch.Busy() {
		busy = " " + spinnerFrames[m.spinnerFrame] + " streaming"
	}
	header := m.styles.header.Render(appinfo.Display()) + "  " + title + m.styles.muted.Render(busy)

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderSidebar(m.viewport.Height),
		" ",
		m.viewport.View(),
	)

	prompt := m.input.View()
	switch m.mode {
	case modeSystem:
		prompt = m.styles.system.Render("[system] ") + prompt
	case modeRename:
		prompt = m.styles.system.Render("[rename] ") + prompt
	}

	return strings.Join([]string{
		header,
		body,
		m.renderAgentStrip(),
		prompt,
		m.renderStatus(),
	}, "\n")
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
