package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Color definitions for consistent UI
var (
	// Brown color for startup info
	brownColor = color.New(color.FgYellow, color.Faint)

	// Gray color for progress detail
	grayColor = color.New(color.FgWhite, color.Faint)

	// Red for errors
	errorColor = color.New(color.FgRed)

	// Yellow for warnings
	warnColor = color.New(color.FgYellow)

	// Colors for diff rendering and result lines
	addColor     = color.New(color.FgGreen)
	delColor     = color.New(color.FgRed)
	hunkColor    = color.New(color.FgCyan)
	appliedColor = color.New(color.FgGreen)
	failedColor  = color.New(color.FgRed)
	skippedColor = color.New(color.FgYellow)
)

// Writer provides formatted output with consistent prefixes and optional colors.
type Writer struct {
	quiet    bool
	jsonMode bool // Output a structured JSON report instead of formatted text
	stdout   io.Writer
}

// NewWriter creates a new Writer writing to stdout.
func NewWriter() *Writer {
	return &Writer{stdout: os.Stdout}
}

// SetQuiet enables or disables quiet mode (suppresses everything except the
// final summary and the JSON report).
func (w *Writer) SetQuiet(quiet bool) {
	w.quiet = quiet
}

// SetJSONMode enables or disables JSON output mode.
func (w *Writer) SetJSONMode(jsonMode bool) {
	w.jsonMode = jsonMode
}

// IsJSONMode returns true if JSON mode is enabled.
func (w *Writer) IsJSONMode() bool {
	return w.jsonMode
}

// StartupInfo prints startup information in brown.
func (w *Writer) StartupInfo(msg string) {
	if w.quiet || w.jsonMode {
		return
	}
	brownColor.Println(msg)
}

// Info prints an info message with [info] prefix in gray.
func (w *Writer) Info(msg string) {
	if w.quiet || w.jsonMode {
		return
	}
	grayColor.Printf("[info] %s\n", msg)
}

// Warn prints a warning message with [warn] prefix in yellow.
func (w *Writer) Warn(msg string) {
	if w.quiet || w.jsonMode {
		return
	}
	warnColor.Printf("[warn] %s\n", msg)
}

// Error prints an error message with [error] prefix in red.
func (w *Writer) Error(msg string) {
	if w.quiet || w.jsonMode {
		return
	}
	errorColor.Printf("[error] %s\n", msg)
}

// Diff prints a unified diff with +/- coloring.
func (w *Writer) Diff(diff string) {
	if w.quiet || w.jsonMode {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			grayColor.Println(line)
		case strings.HasPrefix(line, "@@"):
			hunkColor.Println(line)
		case strings.HasPrefix(line, "+"):
			addColor.Println(line)
		case strings.HasPrefix(line, "-"):
			delColor.Println(line)
		default:
			fmt.Fprintln(w.stdout, line)
		}
	}
}

// FileResult prints one per-file outcome line, e.g. "applied  src/app.py (2 blocks)".
func (w *Writer) FileResult(status, path, detail string) {
	if w.quiet || w.jsonMode {
		return
	}
	line := fmt.Sprintf("%-9s %s", status, path)
	if detail != "" {
		line = fmt.Sprintf("%s (%s)", line, detail)
	}
	switch status {
	case "applied":
		appliedColor.Println(line)
	case "failed":
		failedColor.Println(line)
	case "skipped":
		skippedColor.Println(line)
	default:
		grayColor.Println(line)
	}
}

// Summary prints the final run summary. It prints even in quiet mode; the
// JSON report replaces it in JSON mode.
func (w *Writer) Summary(text string) {
	if w.jsonMode {
		return
	}
	fmt.Fprintln(w.stdout, text)
}

// WriteJSON marshals v to indented JSON on stdout. Only used in JSON mode.
func (w *Writer) WriteJSON(v any) {
	if !w.jsonMode {
		return
	}
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w.stdout, string(data))
}
