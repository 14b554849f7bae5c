// Package collect scans pasted markdown for fenced code blocks that carry
// search/replace markers and groups them by target file.
package collect

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/blockpatch/blockpatch/internal/patch"
)

// FilePatch is the diff text addressed to one file.
// Path is empty when no hint named a target; those patches are bound later
// from CLI arguments or LLM identification.
type FilePatch struct {
	Path     string
	DiffText string
}

// Extract walks the markdown AST and collects every fenced code block whose
// body contains a search marker. The target path comes from an inline-code
// span in the immediately preceding paragraph ("Apply this to `src/main.go`:").
// Multiple blocks for one path are concatenated in document order. Input with
// markers but no fences at all is returned as a single pathless patch.
func Extract(markdown string) ([]FilePatch, error) {
	source := []byte(markdown)
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	var order []string
	grouped := make(map[string]*strings.Builder)
	add := func(path, diffText string) {
		b, ok := grouped[path]
		if !ok {
			b = &strings.Builder{}
			grouped[path] = b
			order = append(order, path)
		}
		b.WriteString(diffText)
		if !strings.HasSuffix(diffText, "\n") {
			b.WriteString("\n")
		}
	}

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			content.Write(seg.Value(source))
		}
		body := content.String()
		if !hasSearchMarker(body) {
			return ast.WalkSkipChildren, nil
		}

		add(pathHint(fenced.PreviousSibling(), source), body)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}

	if len(order) == 0 && hasSearchMarker(markdown) {
		// Bare marker text with no surrounding fence
		return []FilePatch{{DiffText: markdown}}, nil
	}

	patches := make([]FilePatch, 0, len(order))
	for _, path := range order {
		patches = append(patches, FilePatch{Path: path, DiffText: grouped[path].String()})
	}
	return patches, nil
}

// pathHint returns the first space-free inline-code span of a paragraph.
// Spans holding commands like `go run main.go` are skipped.
func pathHint(node ast.Node, source []byte) string {
	if node == nil {
		return ""
	}
	para, ok := node.(*ast.Paragraph)
	if !ok {
		return ""
	}
	for child := para.FirstChild(); child != nil; child = child.NextSibling() {
		span, ok := child.(*ast.CodeSpan)
		if !ok {
			continue
		}
		candidate := strings.TrimSpace(string(span.Text(source)))
		if candidate != "" && !strings.Contains(candidate, " ") {
			return candidate
		}
	}
	return ""
}

func hasSearchMarker(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == patch.SearchMarker {
			return true
		}
	}
	return false
}
