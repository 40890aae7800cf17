// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// ConsoleTransport writes one line per entry:
//
//	2026-02-28T14:00:00.000Z ERROR payment declined user=u-17 env=prod
//
// The level badge is colored when the writer is a terminal, and lines
// are truncated to the terminal width.
type ConsoleTransport struct {
	mu     sync.Mutex
	out    io.Writer
	width  int
	badges map[logs.Level]lipgloss.Style
	faint  lipgloss.Style
	plain  lipgloss.Style
}

// NewConsoleTransport returns a transport writing to out.
func NewConsoleTransport(out io.Writer) *ConsoleTransport {
	renderer := lipgloss.NewRenderer(out)
	width := 0
	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		if columns, _, err := term.GetSize(int(file.Fd())); err == nil {
			width = columns
		}
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}

	badge := func(color string) lipgloss.Style {
		return renderer.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	return &ConsoleTransport{
		out:   out,
		width: width,
		badges: map[logs.Level]lipgloss.Style{
			logs.LevelDebug: badge("244"),
			logs.LevelInfo:  badge("39"),
			logs.LevelWarn:  badge("214"),
			logs.LevelError: badge("196"),
		},
		faint: renderer.NewStyle().Faint(true),
		plain: renderer.NewStyle().Bold(true),
	}
}

// SetWidth sets the column limit for rendered lines. Zero disables
// truncation.
func (c *ConsoleTransport) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
}

// Send writes entry.
func (c *ConsoleTransport) Send(_ context.Context, entry logs.NewLog) error {
	line := c.format(entry)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.width > 0 && ansi.StringWidth(line) > c.width {
		line = ansi.Truncate(line, c.width, "…")
	}
	_, err := io.WriteString(c.out, line+"\n")
	return err
}

func (c *ConsoleTransport) format(entry logs.NewLog) string {
	style, ok := c.badges[entry.Level]
	if !ok {
		style = c.plain
	}

	var builder strings.Builder
	if entry.Timestamp != "" {
		builder.WriteString(c.faint.Render(entry.Timestamp))
		builder.WriteByte(' ')
	}
	builder.WriteString(style.Render(fmt.Sprintf("%-5s", strings.ToUpper(string(entry.Level)))))
	builder.WriteByte(' ')
	builder.WriteString(entry.Message)
	for _, field := range entry.Metadata {
		builder.WriteByte(' ')
		builder.WriteString(c.faint.Render(field.Key + "="))
		builder.WriteString(field.Value)
	}
	return builder.String()
}
