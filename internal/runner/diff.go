package runner

import (
	"github.com/pmezard/go-difflib/difflib"
)

// unifiedDiff renders a unified diff between two versions of a file for the
// preview shown before confirmation.
func unifiedDiff(oldContent, newContent, filename string, contextLines int) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: filename,
		ToFile:   filename,
		Context:  contextLines,
	}
	return difflib.GetUnifiedDiffString(diff)
}
