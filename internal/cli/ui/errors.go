package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel is the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions describe a formatted message
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a message as
//
//	❌ CLASS NOT FOUND: Cannot find resource class 'Bok'.
//
//	   Did you mean: library.Book?
//
//	   → See all resources: apimeta resources
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var attrs []color.Attribute
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		attrs, symbol = []color.Attribute{color.FgYellow}, "⚠️"
	case ErrorLevelInfo:
		attrs, symbol = []color.Attribute{color.FgCyan}, "ℹ️"
	default:
		attrs, symbol = []color.Attribute{color.FgRed}, "❌"
	}
	header := newColor(opts.NoColor, append(attrs, color.Bold)...)

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		newColor(opts.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := newColor(opts.NoColor, color.FgCyan)
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted message
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// WriteSuccess writes a green check line
func WriteSuccess(w io.Writer, message string, noColor bool) {
	newColor(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", message)
}

// ClassNotFound formats an unknown resource class with suggestions
func ClassNotFound(class string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "class not found",
		Problem:     fmt.Sprintf("Cannot find resource class '%s'.", class),
		Suggestions: suggestions,
		HelpCommands: []string{
			"See all resources: apimeta resources",
		},
		NoColor: noColor,
	})
}

// RouteNotFound formats a request matching no operation
func RouteNotFound(method, path string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "route not found",
		Problem: fmt.Sprintf("No operation matches %s %s.", strings.ToUpper(method), path),
		HelpCommands: []string{
			"See the operations of a class: apimeta inspect <class>",
		},
		NoColor: noColor,
	})
}

// ConfigError formats a configuration problem
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"Create a configuration: apimeta init",
			"Get help: apimeta --help",
		},
		NoColor: noColor,
	})
}
