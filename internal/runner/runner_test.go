package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/blockpatch/blockpatch/internal/collect"
	"github.com/blockpatch/blockpatch/internal/config"
	"github.com/blockpatch/blockpatch/internal/history"
	"github.com/blockpatch/blockpatch/internal/llm"
	"github.com/blockpatch/blockpatch/internal/logging"
	"github.com/blockpatch/blockpatch/internal/ui"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	return string(data)
}

func newTestRunner(t *testing.T, root string, assist *llm.Assist) *Runner {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Failed to build default config: %v", err)
	}
	cfg.Workspace.Root = root

	writer := ui.NewWriter()
	writer.SetQuiet(true)

	logger, err := logging.New("", false)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	hist := history.NewManager(root, cfg.Workspace.HistoryKeep)
	return New(cfg, writer, logger, hist, assist)
}

func TestRunAutoApply(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "app.py", "def main():\n    print('hello')\n")

	diffText := `<<<<<<< SEARCH
    print('hello')
=======
    print('goodbye')
>>>>>>> REPLACE
`
	patches := []collect.FilePatch{{Path: "app.py", DiffText: diffText}}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{AutoApply: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Applied) != 1 || report.Applied[0] != "app.py" {
		t.Errorf("Applied = %v, want [app.py]", report.Applied)
	}
	if report.BlocksApplied != 1 {
		t.Errorf("BlocksApplied = %d, want 1", report.BlocksApplied)
	}
	if report.RunID == "" {
		t.Error("Expected a run ID after applying")
	}
	if report.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", report.ExitCode())
	}

	got := readFile(t, path)
	want := "def main():\n    print('goodbye')\n"
	if got != want {
		t.Errorf("File content = %q, want %q", got, want)
	}

	runs, err := history.NewManager(root, 10).List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("Expected 1 history run, got %d", len(runs))
	}
}

func TestRunPreviewOnly(t *testing.T) {
	root := t.TempDir()
	original := "x = 1\n"
	path := writeFile(t, root, "vals.py", original)

	diffText := `<<<<<<< SEARCH
x = 1
=======
x = 2
>>>>>>> REPLACE
`
	patches := []collect.FilePatch{{Path: "vals.py", DiffText: diffText}}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{PreviewOnly: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Skipped) != 1 || report.Skipped[0] != "vals.py" {
		t.Errorf("Skipped = %v, want [vals.py]", report.Skipped)
	}
	if report.RunID != "" {
		t.Errorf("RunID = %q, want empty for preview", report.RunID)
	}
	if got := readFile(t, path); got != original {
		t.Errorf("Preview modified the file: %q", got)
	}
}

func TestRunFailedBlock(t *testing.T) {
	root := t.TempDir()
	original := "value = compute()\n"
	path := writeFile(t, root, "calc.py", original)

	diffText := `<<<<<<< SEARCH
vlaue = compute()
=======
value = compute(timeout)
>>>>>>> REPLACE
`
	patches := []collect.FilePatch{{Path: "calc.py", DiffText: diffText}}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{AutoApply: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Failed) != 1 {
		t.Fatalf("Failed = %v, want exactly one failure", report.Failed)
	}
	failure := report.Failed[0]
	if failure.Path != "calc.py" {
		t.Errorf("Failure path = %q, want calc.py", failure.Path)
	}
	if failure.Block != 1 {
		t.Errorf("Failure block = %d, want 1", failure.Block)
	}
	if !strings.Contains(failure.Hint, "line 1") {
		t.Errorf("Hint = %q, want closest match on line 1", failure.Hint)
	}
	if report.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", report.ExitCode())
	}
	if got := readFile(t, path); got != original {
		t.Errorf("Failed run modified the file: %q", got)
	}
}

func TestRunUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "same.py", "keep = true\n")

	diffText := `<<<<<<< SEARCH
keep = true
=======
keep = true
>>>>>>> REPLACE
`
	patches := []collect.FilePatch{{Path: "same.py", DiffText: diffText}}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{AutoApply: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Unchanged) != 1 || report.Unchanged[0] != "same.py" {
		t.Errorf("Unchanged = %v, want [same.py]", report.Unchanged)
	}
	if report.RunID != "" {
		t.Errorf("RunID = %q, want empty when nothing was written", report.RunID)
	}
}

func TestRunMixedResults(t *testing.T) {
	root := t.TempDir()
	goodPath := writeFile(t, root, "good.py", "a = 1\n")
	badOriginal := "b = 2\n"
	badPath := writeFile(t, root, "bad.py", badOriginal)

	patches := []collect.FilePatch{
		{Path: "good.py", DiffText: "<<<<<<< SEARCH\na = 1\n=======\na = 10\n>>>>>>> REPLACE\n"},
		{Path: "bad.py", DiffText: "<<<<<<< SEARCH\nmissing line\n=======\nb = 20\n>>>>>>> REPLACE\n"},
	}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{AutoApply: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Applied) != 1 || report.Applied[0] != "good.py" {
		t.Errorf("Applied = %v, want [good.py]", report.Applied)
	}
	if len(report.Failed) != 1 || report.Failed[0].Path != "bad.py" {
		t.Errorf("Failed = %v, want bad.py", report.Failed)
	}
	if got := readFile(t, goodPath); got != "a = 10\n" {
		t.Errorf("good.py = %q, want applied content", got)
	}
	if got := readFile(t, badPath); got != badOriginal {
		t.Errorf("bad.py = %q, want original content", got)
	}
}

func TestRunSkipsEmptyPatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "plain.py", "nothing here\n")

	patches := []collect.FilePatch{{Path: "plain.py", DiffText: "just some text, no markers\n"}}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{AutoApply: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Skipped) != 1 {
		t.Errorf("Skipped = %v, want the patchless file skipped", report.Skipped)
	}
}

func TestRunMissingFile(t *testing.T) {
	root := t.TempDir()

	patches := []collect.FilePatch{{Path: "ghost.py", DiffText: "<<<<<<< SEARCH\nx\n=======\ny\n>>>>>>> REPLACE\n"}}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{AutoApply: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Failed) != 1 || !strings.Contains(report.Failed[0].Err, "failed to read") {
		t.Errorf("Failed = %v, want a read failure for ghost.py", report.Failed)
	}
}

func TestRunRejectsPathOutsideWorkspace(t *testing.T) {
	root := t.TempDir()

	patches := []collect.FilePatch{{Path: "../escape.py", DiffText: "<<<<<<< SEARCH\nx\n=======\ny\n>>>>>>> REPLACE\n"}}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{AutoApply: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Failed) != 1 || !strings.Contains(report.Failed[0].Err, "outside workspace") {
		t.Errorf("Failed = %v, want a workspace boundary error", report.Failed)
	}
}

func TestRunBindsPathlessToExplicitFile(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "target.py", "color = 'red'\n")

	diffText := `<<<<<<< SEARCH
color = 'red'
=======
color = 'blue'
>>>>>>> REPLACE
`
	patches := []collect.FilePatch{{Path: "", DiffText: diffText}}
	r := newTestRunner(t, root, nil)

	report, err := r.Run(context.Background(), patches, Options{Files: []string{"target.py"}, AutoApply: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Applied) != 1 || report.Applied[0] != "target.py" {
		t.Errorf("Applied = %v, want [target.py]", report.Applied)
	}
	if got := readFile(t, path); got != "color = 'blue'\n" {
		t.Errorf("target.py = %q, want applied content", got)
	}
}

func TestRunPathlessMultipleExplicitFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x\n")
	writeFile(t, root, "b.py", "y\n")

	patches := []collect.FilePatch{{Path: "", DiffText: "<<<<<<< SEARCH\nx\n=======\nz\n>>>>>>> REPLACE\n"}}
	r := newTestRunner(t, root, nil)

	_, err := r.Run(context.Background(), patches, Options{Files: []string{"a.py", "b.py"}, AutoApply: true})
	if err == nil {
		t.Fatal("Expected an error for pathless blocks with multiple target files")
	}
	if !strings.Contains(err.Error(), "cannot split") {
		t.Errorf("Error = %v, want cannot split message", err)
	}
}

func TestRunPathlessWithoutTarget(t *testing.T) {
	root := t.TempDir()

	patches := []collect.FilePatch{{Path: "", DiffText: "<<<<<<< SEARCH\nx\n=======\ny\n>>>>>>> REPLACE\n"}}
	r := newTestRunner(t, root, nil)

	_, err := r.Run(context.Background(), patches, Options{AutoApply: true})
	if err == nil {
		t.Fatal("Expected an error for pathless blocks without a target")
	}
	if !strings.Contains(err.Error(), "no target file") {
		t.Errorf("Error = %v, want no target file message", err)
	}
}

func TestRunRegeneratesFailedPatch(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "conf.py", "retries = 2\n")

	corrected := `<<<<<<< SEARCH
retries = 2
=======
retries = 9
>>>>>>> REPLACE
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": corrected},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{"prompt_tokens": 50, "completion_tokens": 25, "total_tokens": 75},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	logger, err := logging.New("", false)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	client := llm.NewClient(server.URL, "test-key", 5*time.Second)
	assist := llm.NewAssist(client, logger, "test-model", 0, 1024)

	// The pasted block searches for text the file no longer contains.
	diffText := `<<<<<<< SEARCH
retries = 3
=======
retries = 9
>>>>>>> REPLACE
`
	patches := []collect.FilePatch{{Path: "conf.py", DiffText: diffText}}
	r := newTestRunner(t, root, assist)

	report, err := r.Run(context.Background(), patches, Options{AutoApply: true, UseLLM: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Applied) != 1 || report.Applied[0] != "conf.py" {
		t.Errorf("Applied = %v, want [conf.py] after regeneration", report.Applied)
	}
	if len(report.Failed) != 0 {
		t.Errorf("Failed = %v, want none after regeneration", report.Failed)
	}
	if got := readFile(t, path); got != "retries = 9\n" {
		t.Errorf("conf.py = %q, want regenerated content applied", got)
	}
}

func TestAppendPatchMergesSamePath(t *testing.T) {
	patches := []collect.FilePatch{{Path: "a.py", DiffText: "first\n"}}
	patches = appendPatch(patches, "a.py", "second\n")
	patches = appendPatch(patches, "b.py", "third\n")

	if len(patches) != 2 {
		t.Fatalf("Expected 2 patches, got %d", len(patches))
	}
	if patches[0].DiffText != "first\nsecond\n" {
		t.Errorf("Merged diff = %q, want concatenation", patches[0].DiffText)
	}
	if patches[1].Path != "b.py" || patches[1].DiffText != "third\n" {
		t.Errorf("New path entry = %+v", patches[1])
	}
}
