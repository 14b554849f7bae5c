package collect

import (
	"testing"
)

func TestExtractSingleBlock(t *testing.T) {
	md := "Apply this to `src/app.py`:\n\n" +
		"```python\n<<<<<<< SEARCH\nold line\n=======\nnew line\n>>>>>>> REPLACE\n```\n"

	patches, err := Extract(md)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Extract() returned %d patches, want 1", len(patches))
	}
	if patches[0].Path != "src/app.py" {
		t.Errorf("Path = %q, want src/app.py", patches[0].Path)
	}
	want := "<<<<<<< SEARCH\nold line\n=======\nnew line\n>>>>>>> REPLACE\n"
	if patches[0].DiffText != want {
		t.Errorf("DiffText = %q, want %q", patches[0].DiffText, want)
	}
}

func TestExtractGroupsByPath(t *testing.T) {
	md := "First change in `a.py`:\n\n" +
		"```\n<<<<<<< SEARCH\nalpha\n=======\nbeta\n>>>>>>> REPLACE\n```\n\n" +
		"Then `b.py`:\n\n" +
		"```\n<<<<<<< SEARCH\none\n=======\ntwo\n>>>>>>> REPLACE\n```\n\n" +
		"And another change in `a.py`:\n\n" +
		"```\n<<<<<<< SEARCH\ngamma\n=======\ndelta\n>>>>>>> REPLACE\n```\n"

	patches, err := Extract(md)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("Extract() returned %d patches, want 2", len(patches))
	}

	// Paths appear in first-seen order
	if patches[0].Path != "a.py" || patches[1].Path != "b.py" {
		t.Fatalf("paths = [%s, %s], want [a.py, b.py]", patches[0].Path, patches[1].Path)
	}

	// Both a.py blocks are concatenated in document order
	wantA := "<<<<<<< SEARCH\nalpha\n=======\nbeta\n>>>>>>> REPLACE\n" +
		"<<<<<<< SEARCH\ngamma\n=======\ndelta\n>>>>>>> REPLACE\n"
	if patches[0].DiffText != wantA {
		t.Errorf("a.py DiffText = %q, want %q", patches[0].DiffText, wantA)
	}
}

func TestExtractPathlessBlock(t *testing.T) {
	md := "```\n<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n```\n"

	patches, err := Extract(md)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Extract() returned %d patches, want 1", len(patches))
	}
	if patches[0].Path != "" {
		t.Errorf("Path = %q, want empty", patches[0].Path)
	}
}

func TestExtractSkipsNonPatchBlocks(t *testing.T) {
	md := "Here is `main.go` as reference:\n\n" +
		"```go\nfunc main() {}\n```\n\n" +
		"And the fix for `app.go`:\n\n" +
		"```\n<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n```\n"

	patches, err := Extract(md)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Extract() returned %d patches, want 1", len(patches))
	}
	if patches[0].Path != "app.go" {
		t.Errorf("Path = %q, want app.go", patches[0].Path)
	}
}

func TestExtractRawFallback(t *testing.T) {
	raw := "Some explanation.\n<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\nDone.\n"

	patches, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Extract() returned %d patches, want 1", len(patches))
	}
	if patches[0].Path != "" {
		t.Errorf("Path = %q, want empty", patches[0].Path)
	}
	if patches[0].DiffText != raw {
		t.Errorf("DiffText = %q, want full input", patches[0].DiffText)
	}
}

func TestExtractNoPatches(t *testing.T) {
	patches, err := Extract("Just some prose.\n\n```go\nfunc main() {}\n```\n")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 0 {
		t.Errorf("Extract() returned %d patches, want 0", len(patches))
	}
}

func TestExtractHintSkipsCommands(t *testing.T) {
	md := "Run `go test ./...` after editing `pkg/watch.go`:\n\n" +
		"```\n<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n```\n"

	patches, err := Extract(md)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Extract() returned %d patches, want 1", len(patches))
	}
	if patches[0].Path != "pkg/watch.go" {
		t.Errorf("Path = %q, want pkg/watch.go", patches[0].Path)
	}
}

func TestExtractHintMustBePrecedingParagraph(t *testing.T) {
	// A heading between the hint and the block breaks the association
	md := "Fix `a.go`:\n\n## Details\n\n" +
		"```\n<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n```\n"

	patches, err := Extract(md)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Extract() returned %d patches, want 1", len(patches))
	}
	if patches[0].Path != "" {
		t.Errorf("Path = %q, want empty", patches[0].Path)
	}
}

func TestExtractPreservesBlockBodyVerbatim(t *testing.T) {
	// Indentation and trailing whitespace inside the fence survive untouched
	md := "Patch for `x.txt`:\n\n" +
		"```\n<<<<<<< SEARCH\n    indented line\ntrailing spaces   \n=======\nreplaced\n>>>>>>> REPLACE\n```\n"

	patches, err := Extract(md)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Extract() returned %d patches, want 1", len(patches))
	}
	want := "<<<<<<< SEARCH\n    indented line\ntrailing spaces   \n=======\nreplaced\n>>>>>>> REPLACE\n"
	if patches[0].DiffText != want {
		t.Errorf("DiffText = %q, want %q", patches[0].DiffText, want)
	}
}
