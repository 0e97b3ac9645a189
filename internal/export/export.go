// Package export renders conversations for human consumption: markdown
// cleanup for the terminal view and a standalone HTML transcript.
package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/alexkh/inforno/internal/appinfo"
	"github.com/alexkh/inforno/internal/chat"
)

// Models love to indent code fences inside list items, which breaks fence
// detection in most renderers. De-indent them onto their own line.
var indentedFenceRe = regexp.MustCompile("(?m)^[ \t]+(```)")

// NormalizeCodeBlocks rewrites indented triple-backtick fences so they
// start at column zero. Display-only; stored text is never rewritten.
func NormalizeCodeBlocks(s string) string {
	return indentedFenceRe.ReplaceAllString(s, "\n$1")
}

//go:embed transcript_template.html
var transcriptTemplateFS embed.FS

var (
	transcriptTemplateOnce sync.Once
	transcriptTemplate     *template.Template
	transcriptTemplateErr  error
)

func getTranscriptTemplate() (*template.Template, error) {
	transcriptTemplateOnce.Do(func() {
		b, err := transcriptTemplateFS.ReadFile("transcript_template.html")
		if err != nil {
			transcriptTemplateErr = err
			return
		}
		transcriptTemplate, transcriptTemplateErr = template.New("transcript_template.html").Parse(string(b))
	})
	return transcriptTemplate, transcriptTemplateErr
}

var transcriptMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
)

var transcriptMarkdownMu sync.Mutex

func renderMarkdown(body string) template.HTML {
	var content bytes.Buffer
	transcriptMarkdownMu.Lock()
	err := transcriptMarkdown.Convert([]byte(NormalizeCodeBlocks(body)), &content)
	transcriptMarkdownMu.Unlock()
	if err != nil {
		escaped := template.HTMLEscapeString(body)
		content.Reset()
		content.WriteString("<pre>")
		content.WriteString(escaped)
		content.WriteString("</pre>")
	}
	return template.HTML(content.String())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type transcriptEntry struct {
	Speaker   string
	Role      string
	Body      template.HTML
	Reasoning template.HTML
}

type transcriptData struct {
	AppDisplay string
	Title      string
	Entries    []transcriptEntry
	Footer     string
}

// Transcript renders the aggregator's view of the chat as a standalone
// HTML document.
func Transcript(c *chat.Chat) (string, error) {
	aggregator := c.Agent(0)
	if aggregator == nil {
		return "", fmt.Errorf("chat %q has no aggregator", c.Title)
	}

	var entries []transcriptEntry
	for _, id := range aggregator.MsgIDs {
		m, ok := c.Pool[id]
		if !ok {
			continue
		}
		e := transcriptEntry{
			Speaker: m.Name,
			Role:    m.Role.String(),
			Body:    renderMarkdown(m.Content),
		}
		if e.Speaker == "" {
			e.Speaker = capitalize(m.Role.String())
		}
		if m.Reasoning != "" {
			e.Reasoning = renderMarkdown(m.Reasoning)
		}
		entries = append(entries, e)
	}

	data := transcriptData{
		AppDisplay: appinfo.Display(),
		Title:      c.Title,
		Entries:    entries,
		Footer:     fmt.Sprintf("%s • exported %s", appinfo.Name, time.Now().UTC().Format(time.RFC3339)),
	}

	tmpl, err := getTranscriptTemplate()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
