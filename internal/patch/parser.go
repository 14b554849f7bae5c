// Package patch implements the SEARCH/REPLACE block engine: it extracts
// (search, replace) pairs from raw diff text, locates each search block in a
// document under whitespace-tolerant matching, and splices in the replacement
// re-indented to fit the surrounding code.
package patch

import "strings"

// Block delimiters. Each marker must occupy its own line.
const (
	SearchMarker    = "<<<<<<< SEARCH"
	SeparatorMarker = "======="
	ReplaceMarker   = ">>>>>>> REPLACE"
)

// Block is one (search, replace) pair extracted from diff text. Blocks apply
// in the order they appear in the diff, each against the document state left
// behind by the previous one.
type Block struct {
	Search  string
	Replace string
}

// Parse extracts SEARCH/REPLACE blocks from diffText in source order.
// Scanning is non-overlapping and left-to-right; any text outside a block
// (prose, markdown fences, commentary) is ignored. An unterminated block at
// the end of the text is dropped. Zero blocks is not an error: callers treat
// it as an empty change set.
func Parse(diffText string) []Block {
	const (
		stateOutside = iota
		stateSearch
		stateReplace
	)

	var (
		blocks  []Block
		state   = stateOutside
		search  []string
		replace []string
	)

	for _, line := range strings.Split(diffText, "\n") {
		switch state {
		case stateOutside:
			if isMarker(line, SearchMarker) {
				state = stateSearch
				search = nil
			}
		case stateSearch:
			if isMarker(line, SeparatorMarker) {
				state = stateReplace
				replace = nil
				continue
			}
			search = append(search, line)
		case stateReplace:
			if isMarker(line, ReplaceMarker) {
				blocks = append(blocks, Block{
					Search:  strings.Join(search, "\n"),
					Replace: strings.Join(replace, "\n"),
				})
				state = stateOutside
				continue
			}
			replace = append(replace, line)
		}
	}

	return blocks
}

// isMarker reports whether line contains exactly the given marker. Trimming
// tolerates trailing whitespace, a stray CR from CRLF input, and indentation
// picked up from surrounding markdown.
func isMarker(line, marker string) bool {
	return strings.TrimSpace(line) == marker
}
