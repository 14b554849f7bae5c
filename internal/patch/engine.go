package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlockNotFoundError reports the first block whose search text could not be
// located in the document under any matching tier. Index is 1-based and
// SearchText is the verbatim search text, so callers can show the user (or
// re-prompt an LLM with) the exact context that failed. Blocks after the
// failing one are never attempted.
type BlockNotFoundError struct {
	Index      int
	SearchText string
}

func (e *BlockNotFoundError) Error() string {
	return fmt.Sprintf("block %d not found in file: search text does not match any location:\n%s", e.Index, e.SearchText)
}

// NoChangeError reports that every block matched yet the result is
// byte-identical to the original, so the file was not written. Distinct from
// a diff with zero blocks, which is a silent no-op: a no-effect patch
// usually means the caller should retry with a different prompt.
type NoChangeError struct {
	Path string
}

func (e *NoChangeError) Error() string {
	return fmt.Sprintf("patch had no effect on %s: result is identical to the original", e.Path)
}

// ApplyDiff applies every SEARCH/REPLACE block in diffText to originalText
// and returns the modified text. Blocks are matched against the evolving
// document, so each block sees the edits made by the ones before it. The
// first block that cannot be located aborts the application with a
// *BlockNotFoundError and no partial result is returned. A diff containing
// no blocks returns originalText unchanged.
//
// The trailing-newline convention of originalText is preserved bit for bit.
func ApplyDiff(originalText, diffText string) (string, error) {
	return applyBlocks(originalText, Parse(diffText))
}

func applyBlocks(originalText string, blocks []Block) (string, error) {
	if len(blocks) == 0 {
		return originalText, nil
	}

	trailingNewline := strings.HasSuffix(originalText, "\n")
	body := originalText
	if trailingNewline {
		body = strings.TrimSuffix(body, "\n")
	}
	lines := strings.Split(body, "\n")

	for i, b := range blocks {
		res := applyBlock(lines, b.Search, b.Replace)
		if !res.found {
			return "", &BlockNotFoundError{Index: i + 1, SearchText: b.Search}
		}
		lines = res.lines
	}

	out := strings.Join(lines, "\n")
	if trailingNewline {
		out += "\n"
	}
	return out, nil
}

// ApplyDiffToFile reads path, applies diffText, and writes the result back
// atomically. Nothing is written when the diff parses to zero blocks (silent
// no-op), when a block fails to match (*BlockNotFoundError), or when the
// result equals the original (*NoChangeError). File-system errors are
// wrapped and propagated distinctly from patch failures.
func ApplyDiffToFile(path, diffText string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	original := string(data)

	blocks := Parse(diffText)
	if len(blocks) == 0 {
		return nil
	}

	modified, err := applyBlocks(original, blocks)
	if err != nil {
		return err
	}
	if modified == original {
		return &NoChangeError{Path: path}
	}

	if err := writeFileAtomic(path, modified); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeFileAtomic writes content via a temp file in the same directory and
// an atomic rename, preserving the original file's permissions.
func writeFileAtomic(path, content string) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".patch-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up temp file in case of error

	if _, err := tempFile.WriteString(content); err != nil {
		tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tempPath, info.Mode())
	} else {
		_ = os.Chmod(tempPath, 0644)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
