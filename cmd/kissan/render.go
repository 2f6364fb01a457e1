package main

import (
	"fmt"
	"strings"

	"github.com/kissan-ai/kissan/pkg/conversation"
	"github.com/kissan-ai/kissan/pkg/state"
)

const ansiReset = "\033[0m"

// palette holds the ANSI colours of one display mode.
type palette struct {
	name    string
	heading string
	body    string
	muted   string
	failure string
	accent  string
}

var (
	darkPalette = palette{
		name:    "dark",
		heading: "\033[1;92m",
		body:    "\033[97m",
		muted:   "\033[90m",
		failure: "\033[91m",
		accent:  "\033[96m",
	}
	lightPalette = palette{
		name:    "light",
		heading: "\033[1;32m",
		body:    "\033[30m",
		muted:   "\033[37m",
		failure: "\033[31m",
		accent:  "\033[34m",
	}
)

func paletteFor(mode state.DisplayMode) palette {
	if mode == state.DisplayDark {
		return darkPalette
	}
	return lightPalette
}

func (p palette) paint(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + ansiReset
}

// renderMessage formats one transcript entry for the terminal.
func renderMessage(m conversation.Message, p palette) string {
	var b strings.Builder

	if m.Role == conversation.RoleUser {
		b.WriteString(p.paint(p.accent, "You › "))
		b.WriteString(m.Content.Text)
		if m.Image != "" {
			if m.Content.Text != "" {
				b.WriteString(" ")
			}
			b.WriteString(p.paint(p.muted, "[photo attached]"))
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(p.paint(p.accent, "Kissan › "))
	switch {
	case m.Pending:
		b.WriteString(p.paint(p.muted, "thinking..."))
		b.WriteString("\n")
	case m.Content.IsAdvisory():
		renderAdvisory(&b, m, p)
	default:
		b.WriteString(p.paint(p.failure, m.Content.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func renderAdvisory(b *strings.Builder, m conversation.Message, p palette) {
	a := m.Content.Advisory

	heading := a.Heading
	if heading == "" {
		heading = "Advice"
	}
	b.WriteString(p.paint(p.heading, heading))
	b.WriteString("\n")
	if a.Finding != "" {
		fmt.Fprintf(b, "  %s\n", p.paint(p.body, a.Finding))
	}

	if len(a.Steps) > 0 {
		fmt.Fprintf(b, "  %s\n", p.paint(p.heading, "Steps:"))
		for i, step := range a.Steps {
			fmt.Fprintf(b, "    %d. %s\n", i+1, step)
		}
	}

	if a.Strategy != "" {
		fmt.Fprintf(b, "  %s %s\n", p.paint(p.heading, "Long term:"), a.Strategy)
	}

	if len(m.Citations) > 0 {
		fmt.Fprintf(b, "  %s\n", p.paint(p.muted, "Sources:"))
		for _, c := range m.Citations {
			fmt.Fprintf(b, "    - %s %s\n", c.Title, p.paint(p.muted, "<"+c.URL+">"))
		}
	}
}

// renderDraft shows what the next submission will carry.
func renderDraft(text, imagePath string, p palette) string {
	parts := []string{}
	if strings.TrimSpace(text) != "" {
		parts = append(parts, text)
	}
	if imagePath != "" {
		parts = append(parts, p.paint(p.muted, "[photo: "+imagePath+"]"))
	}
	if len(parts) == 0 {
		return p.paint(p.muted, "draft: (empty)") + "\n"
	}
	return p.paint(p.muted, "draft: ") + strings.Join(parts, " ") + "\n"
}
