// Package source retrieves raw diff text from a file, piped stdin, or the
// system clipboard.
package source

import (
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
)

// Origin identifies where the diff text was read from.
type Origin string

const (
	OriginFile      Origin = "file"
	OriginStdin     Origin = "stdin"
	OriginClipboard Origin = "clipboard"
)

// Read returns the raw text that should be scanned for patch blocks.
// An explicit input file wins; otherwise piped stdin; otherwise the clipboard.
func Read(inputPath string) (string, Origin, error) {
	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return "", OriginFile, fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), OriginFile, nil
	}

	stat, _ := os.Stdin.Stat()
	isPiped := (stat.Mode() & os.ModeCharDevice) == 0

	if isPiped {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", OriginStdin, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), OriginStdin, nil
	}

	content, err := clipboard.ReadAll()
	if err != nil {
		return "", OriginClipboard, fmt.Errorf("failed to read from clipboard: %w", err)
	}
	return content, OriginClipboard, nil
}
