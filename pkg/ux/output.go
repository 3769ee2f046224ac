// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the reader CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Mode controls how rich the output is.
type Mode string

const (
	// ModeRich uses colors, icons and boxes.
	ModeRich Mode = "rich"
	// ModePlain uses icons but no colors or boxes.
	ModePlain Mode = "plain"
	// ModeMachine writes one JSON object per line for scripts.
	ModeMachine Mode = "machine"
)

// ParseMode converts a flag or environment value to a Mode. Unknown
// values yield "" so the caller can fall back to DetectMode.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "rich", "full":
		return ModeRich
	case "plain", "minimal":
		return ModePlain
	case "machine", "json", "quiet":
		return ModeMachine
	default:
		return ""
	}
}

// DetectMode picks ModeRich for a terminal and ModePlain otherwise.
// READER_OUTPUT overrides the detection.
func DetectMode(f *os.File) Mode {
	if m := ParseMode(os.Getenv("READER_OUTPUT")); m != "" {
		return m
	}
	if IsTerminal(f) {
		return ModeRich
	}
	return ModePlain
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Output writes styled lines to a writer.
type Output struct {
	w    io.Writer
	mode Mode
}

// NewOutput creates an Output. An empty mode means ModePlain.
func NewOutput(w io.Writer, mode Mode) *Output {
	if mode == "" {
		mode = ModePlain
	}
	return &Output{w: w, mode: mode}
}

// Mode returns the output mode.
func (o *Output) Mode() Mode { return o.mode }

// Writer returns the underlying writer.
func (o *Output) Writer() io.Writer { return o.w }

func (o *Output) rich() bool { return o.mode == ModeRich }

// Line prints an icon and text.
func (o *Output) Line(icon Icon, text string) {
	if o.rich() {
		fmt.Fprintf(o.w, "%s %s\n", icon.Render(), text)
		return
	}
	fmt.Fprintf(o.w, "%s %s\n", icon, text)
}

// Info prints an informational line under a gutter.
func (o *Output) Info(text string) {
	if o.rich() {
		fmt.Fprintf(o.w, "%s %s\n", Styles.Muted.Render("│"), text)
		return
	}
	fmt.Fprintf(o.w, "| %s\n", text)
}

// Muted prints secondary text.
func (o *Output) Muted(text string) {
	if o.rich() {
		fmt.Fprintln(o.w, Styles.Muted.Render(text))
		return
	}
	fmt.Fprintln(o.w, text)
}

// Title prints a heading.
func (o *Output) Title(text string) {
	if o.rich() {
		fmt.Fprintln(o.w, Styles.Title.Render(text))
		return
	}
	fmt.Fprintln(o.w, text)
}

// Box prints text in a rounded box.
func (o *Output) Box(title, content string) {
	if !o.rich() {
		fmt.Fprintf(o.w, "%s:\n%s\n", title, content)
		return
	}
	fmt.Fprintln(o.w, Styles.Box.Width(boxWidth).Render(Styles.Title.Render(title)+"\n"+content))
}

// ErrorBox prints an error in a red box.
func (o *Output) ErrorBox(title, content string) {
	if !o.rich() {
		fmt.Fprintf(o.w, "ERROR %s: %s\n", title, content)
		return
	}
	fmt.Fprintln(o.w, Styles.ErrorBox.Width(boxWidth).Render(Styles.Error.Bold(true).Render(title)+"\n"+content))
}

const boxWidth = 72

// Truncate shortens s to at most n runes, appending "…" when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// ProgressBar renders a simple progress bar
func ProgressBar(current, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if current > total {
		current = total
	}
	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))
	return fmt.Sprintf("%s%s %3.0f%%",
		strings.Repeat("█", filled), strings.Repeat("░", width-filled), pct*100)
}
