// Package ui renders the transcript for the terminal.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"StudyBuddy/internal/session"
)

const (
	EmptyText    = "No messages yet. Start the conversation!"
	ThinkingText = "AI is thinking..."
	Title        = "AI Study Buddy"
)

type palette struct {
	title     lipgloss.Style
	userLabel lipgloss.Style
	aiLabel   lipgloss.Style
	text      lipgloss.Style
	muted     lipgloss.Style
}

func paletteFor(theme session.Theme) palette {
	if theme == session.ThemeDark {
		return palette{
			title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9FAFB")),
			userLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#60A5FA")),
			aiLabel:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ADE80")),
			text:      lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB")),
			muted:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6B7280")),
		}
	}
	return palette{
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#111827")),
		userLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563EB")),
		aiLabel:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#16A34A")),
		text:      lipgloss.NewStyle().Foreground(lipgloss.Color("#111827")),
		muted:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#9CA3AF")),
	}
}

// Render draws the whole transcript, plus the thinking indicator when a
// reply is pending.
func Render(t session.Transcript, theme session.Theme, awaiting bool) string {
	p := paletteFor(theme)

	var b strings.Builder
	if t.Len() == 0 {
		b.WriteString(p.muted.Render(EmptyText))
		b.WriteString("\n")
	}
	for _, m := range t.Messages() {
		b.WriteString(RenderMessage(m, theme))
		b.WriteString("\n")
	}
	if awaiting {
		b.WriteString(Thinking(theme))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMessage draws a single labelled message.
func RenderMessage(m session.Message, theme session.Theme) string {
	p := paletteFor(theme)
	label := p.aiLabel.Render("AI:")
	if m.Sender == session.SenderUser {
		label = p.userLabel.Render("You:")
	}
	return label + " " + p.text.Render(m.Text)
}

// Thinking draws the awaiting-reply indicator.
func Thinking(theme session.Theme) string {
	return paletteFor(theme).muted.Render(ThinkingText)
}

// Header draws the title line with the theme toggle caption.
func Header(theme session.Theme) string {
	p := paletteFor(theme)
	return p.title.Render(Title) + "  " + p.muted.Render("/theme: "+ThemeLabel(theme))
}

// ThemeLabel names the theme the toggle would switch to.
func ThemeLabel(theme session.Theme) string {
	if theme == session.ThemeDark {
		return "Light Mode"
	}
	return "Dark Mode"
}
