package ui

import (
	"fmt"
	"strings"
	"time"
)

// MakePrompt creates a colored prompt with white text on gray background
func MakePrompt(text string) string {
	// ANSI codes for white on gray background
	colorStart := "\033[97;100m"
	colorEnd := "\033[0m"
	return colorStart + text + colorEnd
}

// FormatDuration formats a duration in a human-readable way, omitting zero values
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

// FormatChars formats character count in a human-readable way (e.g., "1.5k")
func FormatChars(chars int) string {
	if chars < 1000 {
		return fmt.Sprintf("%d", chars)
	}
	k := float64(chars) / 1000.0
	if k < 10 {
		return fmt.Sprintf("%.1fk", k)
	}
	return fmt.Sprintf("%.0fk", k)
}

// Pluralize returns "1 block" or "n blocks" style strings.
func Pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
