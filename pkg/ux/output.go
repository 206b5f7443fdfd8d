// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux styles terminal output for the reviewer CLI.
//
// A Printer renders with lipgloss when writing to a terminal and falls back
// to plain text otherwise, so piped output stays grep-friendly.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Mode selects how a Printer renders.
type Mode int

const (
	// ModePlain writes unstyled text.
	ModePlain Mode = iota
	// ModeStyled writes lipgloss-styled text.
	ModeStyled
	// ModeJSON writes JSON documents only.
	ModeJSON
)

// DetectMode picks ModeJSON when asked for, ModeStyled when f is a
// terminal and ModePlain otherwise.
func DetectMode(f *os.File, jsonOutput bool) Mode {
	if jsonOutput {
		return ModeJSON
	}
	if f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return ModeStyled
	}
	return ModePlain
}

// Tone colors a line of output.
type Tone int

const (
	ToneNone Tone = iota
	ToneSuccess
	ToneWarning
	ToneError
	ToneMuted
)

// Printer writes CLI output in one Mode.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode { return p.mode }

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Title writes a heading. It is a no-op in ModeJSON.
func (p *Printer) Title(text string) {
	switch p.mode {
	case ModeJSON:
		return
	case ModeStyled:
		fmt.Fprintln(p.w, Styles.Title.Render(text))
	default:
		fmt.Fprintln(p.w, text)
		fmt.Fprintln(p.w, strings.Repeat("-", len(text)))
	}
}

// Field writes an aligned "key: value" line.
func (p *Printer) Field(key string, value any) {
	p.FieldTone(key, value, ToneNone)
}

// FieldTone writes a "key: value" line with the value colored by tone.
func (p *Printer) FieldTone(key string, value any, tone Tone) {
	if p.mode == ModeJSON {
		return
	}
	label := fmt.Sprintf("%-16s", key+":")
	if p.mode == ModeStyled {
		label = Styles.Muted.Render(label)
	}
	fmt.Fprintf(p.w, "%s %s\n", label, p.paint(fmt.Sprint(value), tone))
}

// Line writes text colored by tone.
func (p *Printer) Line(text string, tone Tone) {
	if p.mode == ModeJSON {
		return
	}
	fmt.Fprintln(p.w, p.paint(text, tone))
}

// Box writes text inside a rounded border in ModeStyled and as is
// otherwise.
func (p *Printer) Box(text string) {
	switch p.mode {
	case ModeJSON:
		return
	case ModeStyled:
		fmt.Fprintln(p.w, Styles.Box.Render(text))
	default:
		fmt.Fprintln(p.w, text)
	}
}

func (p *Printer) paint(text string, tone Tone) string {
	if p.mode != ModeStyled {
		return text
	}
	switch tone {
	case ToneSuccess:
		return Styles.Success.Render(text)
	case ToneWarning:
		return Styles.Warning.Render(text)
	case ToneError:
		return Styles.Error.Render(text)
	case ToneMuted:
		return Styles.Muted.Render(text)
	default:
		return text
	}
}
