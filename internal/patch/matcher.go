package patch

import "strings"

// matchResult is the outcome of attempting one block against the document.
// lines is the full document after substitution; index is the first line of
// the matched span.
type matchResult struct {
	found bool
	index int
	lines []string
}

// applyBlock locates search in doc and splices in the re-indented
// replacement. Tiers are tried in order and the first hit wins:
//
//  1. all-blank search: replace an equal-length run of blank lines, or
//     insert at the top of the document when no such run exists
//  2. single-line search: full-line match on trimmed content, then substring
//     match when the replacement is a single line
//  3. multi-line search: strict pass comparing indentation-stripped content,
//     then relaxed pass comparing left-trimmed lines
//
// Later tiers are never consulted once a tier matches, and within a tier the
// first (topmost) match wins.
func applyBlock(doc []string, search, replace string) matchResult {
	searchLines := strings.Split(search, "\n")
	replaceLines := splitReplacement(replace)

	if allBlank(searchLines) {
		return matchBlankRun(doc, searchLines, replaceLines)
	}
	if len(searchLines) == 1 {
		return matchSingleLine(doc, searchLines[0], replace, replaceLines)
	}
	if res := matchStrict(doc, searchLines, replaceLines); res.found {
		return res
	}
	return matchRelaxed(doc, searchLines, replaceLines)
}

// splitReplacement splits replacement text into lines. Empty replacement
// text yields zero lines, so the matched span is deleted rather than
// replaced with a single blank line.
func splitReplacement(replace string) []string {
	if replace == "" {
		return nil
	}
	return strings.Split(replace, "\n")
}

// matchBlankRun handles searches made up entirely of blank lines. It looks
// for a contiguous run of blank document lines of exactly the search's
// length. When none exists the replacement is inserted at the very start of
// the document instead, so "insert at top" diffs still succeed.
func matchBlankRun(doc, searchLines, replaceLines []string) matchResult {
	n := len(searchLines)
	for i := 0; i+n <= len(doc); i++ {
		run := true
		for j := 0; j < n; j++ {
			if !isBlank(doc[i+j]) {
				run = false
				break
			}
		}
		if run {
			base := leadingWhitespace(doc[i])
			return matchResult{found: true, index: i, lines: splice(doc, i, n, reindent(replaceLines, base))}
		}
	}
	return matchResult{found: true, index: 0, lines: splice(doc, 0, 0, reindent(replaceLines, ""))}
}

// matchSingleLine handles a one-line search with non-blank content. A full
// scan for a trimmed-equal document line runs first; only when that finds
// nothing, and the replacement is exactly one line, does a second scan look
// for the search text as a substring inside a line. The substring form
// rewrites just the matched fragment and leaves the rest of the line intact.
func matchSingleLine(doc []string, searchLine, replace string, replaceLines []string) matchResult {
	trimmed := strings.TrimSpace(searchLine)

	for i, line := range doc {
		if strings.TrimSpace(line) == trimmed {
			base := leadingWhitespace(line)
			return matchResult{found: true, index: i, lines: splice(doc, i, 1, reindent(replaceLines, base))}
		}
	}

	if len(replaceLines) == 1 {
		for i, line := range doc {
			if idx := strings.Index(line, trimmed); idx >= 0 {
				newLine := line[:idx] + strings.TrimSpace(replace) + line[idx+len(trimmed):]
				return matchResult{found: true, index: i, lines: splice(doc, i, 1, []string{newLine})}
			}
		}
	}

	return matchResult{}
}

// matchStrict slides a window of the search's line count across the document
// and compares indentation-stripped content. Both sides strip their own
// common indentation first, so a uniformly deeper or shallower copy of the
// search still matches as long as the relative structure is identical.
func matchStrict(doc, searchLines, replaceLines []string) matchResult {
	n := len(searchLines)
	key := strippedKey(searchLines, commonIndent(searchLines))

	for i := 0; i+n <= len(doc); i++ {
		window := doc[i : i+n]
		if strippedKey(window, commonIndent(window)) == key {
			base := leadingWhitespace(window[0])
			return matchResult{found: true, index: i, lines: splice(doc, i, n, reindent(replaceLines, base))}
		}
	}
	return matchResult{}
}

// matchRelaxed is the last resort for multi-line searches: blank edges of
// the search are dropped and each remaining line is compared left-trimmed,
// so a search whose indentation was mangled entirely still matches when the
// line contents agree. Line count and blank-versus-nonblank status must
// still line up exactly. The first window found wins; there is no scoring
// between candidate windows.
func matchRelaxed(doc, searchLines, replaceLines []string) matchResult {
	core := trimBlankEdges(searchLines)
	n := len(core)
	if n == 0 {
		return matchResult{}
	}

	for i := 0; i+n <= len(doc); i++ {
		match := true
		for j := 0; j < n; j++ {
			if leftTrim(core[j]) != leftTrim(doc[i+j]) {
				match = false
				break
			}
		}
		if match {
			base := leadingWhitespace(doc[i])
			return matchResult{found: true, index: i, lines: splice(doc, i, n, reindent(replaceLines, base))}
		}
	}
	return matchResult{}
}

// reindent rewrites lines so their leading whitespace anchors at base while
// each line keeps its indentation relative to the rest of the block. A line
// that does not start with the block's common indent (inconsistent mixes of
// tabs and spaces) is left-trimmed entirely and anchored at base. Blank
// lines pass through untouched, as does everything when base is empty.
func reindent(lines []string, base string) []string {
	if base == "" || len(lines) == 0 {
		return lines
	}

	common := commonIndent(lines)
	out := make([]string, len(lines))
	for i, line := range lines {
		switch {
		case isBlank(line):
			out[i] = line
		case strings.HasPrefix(line, common):
			out[i] = base + line[len(common):]
		default:
			out[i] = base + leftTrim(line)
		}
	}
	return out
}

// commonIndent returns the shortest leading-whitespace prefix among the
// non-blank lines. With consistent indentation this is the prefix shared by
// every line; inconsistent lines are handled by reindent's fallback.
func commonIndent(lines []string) string {
	shortest := ""
	first := true
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		ws := leadingWhitespace(line)
		if first || len(ws) < len(shortest) {
			shortest = ws
			first = false
		}
	}
	return shortest
}

// strippedKey joins the non-blank lines with their common indent removed,
// producing the content fingerprint the strict pass compares.
func strippedKey(lines []string, common string) string {
	var sb strings.Builder
	firstLine := true
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		if !firstLine {
			sb.WriteByte('\n')
		}
		firstLine = false
		if strings.HasPrefix(line, common) {
			sb.WriteString(line[len(common):])
		} else {
			sb.WriteString(leftTrim(line))
		}
	}
	return sb.String()
}

// trimBlankEdges drops leading and trailing fully-blank lines.
func trimBlankEdges(lines []string) []string {
	start := 0
	for start < len(lines) && isBlank(lines[start]) {
		start++
	}
	end := len(lines)
	for end > start && isBlank(lines[end-1]) {
		end--
	}
	return lines[start:end]
}

// splice returns a new slice with doc[i:i+n] replaced by repl. The input is
// never mutated; each block application produces a fresh document.
func splice(doc []string, i, n int, repl []string) []string {
	out := make([]string, 0, len(doc)-n+len(repl))
	out = append(out, doc[:i]...)
	out = append(out, repl...)
	out = append(out, doc[i+n:]...)
	return out
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func allBlank(lines []string) bool {
	for _, line := range lines {
		if !isBlank(line) {
			return false
		}
	}
	return true
}

func leftTrim(line string) string {
	return strings.TrimLeft(line, " \t")
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(leftTrim(line))]
}
