package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a structured CLI message with optional suggestions and follow-up
// commands
//
//	✗ MIGRATION FAILED: catalog.0009 is not declared
//
//	   Did you mean: catalog.0005_book_language?
//
//	   → Show migrations: locallibrary migrate status
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Consequence string
	Suggestions []string
	Commands    []string
	NoColor     bool
}

// String formats the message
func (m Message) String() string {
	var b strings.Builder

	var head *color.Color
	symbol := ""
	switch m.Level {
	case LevelWarning:
		head, symbol = color.New(color.FgYellow, color.Bold), "!"
	case LevelInfo:
		head, symbol = color.New(color.FgCyan, color.Bold), "i"
	default:
		head, symbol = color.New(color.FgRed, color.Bold), "✗"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if m.NoColor {
		head.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if m.Consequence != "" {
		fmt.Fprintf(&b, "\n   %s\n", m.Consequence)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Commands) > 0 {
		b.WriteString("\n")
		for _, c := range m.Commands {
			cyan.Fprintf(&b, "   → %s\n", c)
		}
	}
	return b.String()
}

// Write prints the message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.String())
}

// Success writes a green check line
func Success(w io.Writer, noColor bool, format string, args ...any) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ "+format+"\n", args...)
}

// Note writes a cyan informational line
func Note(w io.Writer, noColor bool, format string, args ...any) {
	cyan := color.New(color.FgCyan)
	if noColor {
		cyan.DisableColor()
	}
	cyan.Fprintf(w, format+"\n", args...)
}

// MigrationError describes a failed migrate command
func MigrationError(problem, consequence string, suggestions []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "migration failed",
		Problem:     problem,
		Consequence: consequence,
		Suggestions: suggestions,
		Commands: []string{
			"Show migrations: locallibrary migrate status",
			"Show the apply order: locallibrary migrate plan",
		},
		NoColor: noColor,
	}
}

// ConfigError describes an invalid configuration
func ConfigError(problem string, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "configuration error",
		Problem: problem,
		Commands: []string{
			"Settings are read from locallibrary.yml and LOCALLIBRARY_* variables",
		},
		NoColor: noColor,
	}
}
