// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders CLI output for the koholi command.
//
// Output is styled with lipgloss when writing to a terminal and falls back
// to plain "KEY: value" lines otherwise, so scripts can parse it.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	// Brand palette
	ColorSaffron = lipgloss.Color("#F59E0B") // Primary brand color
	ColorClay    = lipgloss.Color("#B45309") // Borders, accents
	ColorSlate   = lipgloss.Color("#64748B") // Muted text

	// Semantic colors
	ColorSuccess = lipgloss.Color("#10B981")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the shared lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
	Label   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorSaffron),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorClay).
		Padding(0, 1),
	Label: lipgloss.NewStyle().Foreground(ColorSlate).Width(18),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon in its semantic color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes styled or plain output.
type Printer struct {
	Out   io.Writer
	Plain bool
}

// NewPrinter writes to out, choosing plain mode when out is not a terminal
// or when plain is forced.
func NewPrinter(out io.Writer, plain bool) *Printer {
	if !plain {
		if f, ok := out.(*os.File); ok {
			plain = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
		} else {
			plain = true
		}
	}
	return &Printer{Out: out, Plain: plain}
}

// Title prints a heading. Omitted in plain mode.
func (p *Printer) Title(text string) {
	if p.Plain {
		return
	}
	fmt.Fprintln(p.Out, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.Plain {
		fmt.Fprintf(p.Out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.Plain {
		fmt.Fprintf(p.Out, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.Plain {
		fmt.Fprintf(p.Out, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.Plain {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Field is one row of a KeyValues box.
type Field struct {
	Label string
	Value string
}

// KeyValues prints fields inside a titled box, or as "label: value" lines
// in plain mode.
func (p *Printer) KeyValues(title string, fields []Field) {
	if p.Plain {
		for _, f := range fields {
			fmt.Fprintf(p.Out, "%s: %s\n", plainKey(f.Label), f.Value)
		}
		return
	}
	var b strings.Builder
	b.WriteString(Styles.Title.Render(title))
	for _, f := range fields {
		b.WriteString("\n")
		b.WriteString(Styles.Label.Render(f.Label))
		b.WriteString(Styles.Bold.Render(f.Value))
	}
	fmt.Fprintln(p.Out, Styles.Box.Render(b.String()))
}

// Bar renders value as a share of total across width cells. Plain mode returns the
// bare count.
func (p *Printer) Bar(value, total int64, width int) string {
	if p.Plain || total <= 0 || width <= 0 {
		return fmt.Sprintf("%d", value)
	}
	filled := int(float64(value) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	return Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %d", value)
}

// plainKey turns "Total orders" into "total_orders".
func plainKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}
