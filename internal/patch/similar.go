package patch

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// SimilarLine is a near-match diagnostic for a failed block: the document
// line most similar to the search text's first non-blank line.
type SimilarLine struct {
	LineNumber int // 1-based
	Text       string
	Ratio      float64
}

// MostSimilarLine scans text for the line closest to the first non-blank
// line of searchText, for use in failure messages ("did you mean line N").
// It is diagnostic only and never influences matching. Returns false when no
// line reaches minRatio.
func MostSimilarLine(text, searchText string, minRatio float64) (SimilarLine, bool) {
	target := ""
	for _, line := range strings.Split(searchText, "\n") {
		if !isBlank(line) {
			target = strings.TrimSpace(line)
			break
		}
	}
	if target == "" {
		return SimilarLine{}, false
	}

	dmp := diffmatchpatch.New()
	best := SimilarLine{Ratio: minRatio}
	found := false
	for i, line := range strings.Split(text, "\n") {
		candidate := strings.TrimSpace(line)
		if candidate == "" {
			continue
		}
		ratio := similarityRatio(dmp, target, candidate)
		if ratio > best.Ratio {
			best = SimilarLine{LineNumber: i + 1, Text: line, Ratio: ratio}
			found = true
		}
	}
	return best, found
}

// similarityRatio computes 1 - levenshtein/maxLen over the diff between a
// and b, giving 1.0 for identical strings and 0.0 for fully distinct ones.
func similarityRatio(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	return 1.0 - float64(distance)/float64(longest)
}
