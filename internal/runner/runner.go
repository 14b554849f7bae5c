package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blockpatch/blockpatch/internal/collect"
	"github.com/blockpatch/blockpatch/internal/config"
	"github.com/blockpatch/blockpatch/internal/history"
	"github.com/blockpatch/blockpatch/internal/llm"
	"github.com/blockpatch/blockpatch/internal/logging"
	"github.com/blockpatch/blockpatch/internal/patch"
	"github.com/blockpatch/blockpatch/internal/tui"
	"github.com/blockpatch/blockpatch/internal/ui"
	"github.com/blockpatch/blockpatch/internal/workspace"
)

// Status is the lifecycle state of one file within a run.
type Status int

const (
	StatusPending   Status = iota // previewed, waiting for a decision
	StatusApplied                 // written to disk
	StatusFailed                  // a block did not match or the write failed
	StatusSkipped                 // declined, preview only, or nothing to apply
	StatusUnchanged               // blocks matched but changed nothing
)

// FileOutcome tracks one target file through the preview, confirm and write
// phases of a run.
type FileOutcome struct {
	Path     string // workspace-relative display path
	Abs      string // absolute path on disk
	DiffText string // concatenated SEARCH/REPLACE blocks for this file
	Status   Status
	Blocks   int    // complete blocks parsed out of DiffText
	Diff     string // unified diff of the previewed change
	Err      error
	Hint     string // closest-match line for a failed block
	Note     string // reason shown for skipped files
	Accepted bool
}

// Options control a single run.
type Options struct {
	Files       []string // explicit target files from the command line
	AutoApply   bool     // apply without confirmation
	PreviewOnly bool     // show diffs, write nothing
	Interactive bool     // review diffs in the full-screen TUI
	UseLLM      bool     // regenerate failed patches through the model
}

// Runner drives a patch run end to end: bind each patch to a target file,
// preview every change, collect the user's decision, then snapshot and write
// the accepted files.
type Runner struct {
	cfg     *config.Config
	writer  *ui.Writer
	logger  *logging.Logger
	history *history.Manager
	assist  *llm.Assist // nil when no LLM endpoint is configured
}

// New creates a Runner. assist may be nil, in which case pathless patches
// must be bound by an explicit command line file.
func New(cfg *config.Config, writer *ui.Writer, logger *logging.Logger, hist *history.Manager, assist *llm.Assist) *Runner {
	return &Runner{cfg: cfg, writer: writer, logger: logger, history: hist, assist: assist}
}

// Run executes one patch run and returns its report. An error return means
// the run aborted before producing a report; per-file failures are reported,
// not returned.
func (r *Runner) Run(ctx context.Context, patches []collect.FilePatch, opts Options) (*Report, error) {
	start := time.Now()

	bound, err := r.bind(ctx, patches, opts.Files)
	if err != nil {
		return nil, err
	}

	totalBlocks := 0
	outcomes := make([]*FileOutcome, len(bound))
	for i, p := range bound {
		outcomes[i] = &FileOutcome{Path: p.Path, DiffText: p.DiffText, Blocks: len(patch.Parse(p.DiffText))}
		totalBlocks += outcomes[i].Blocks
	}
	r.logger.RunStarted(len(outcomes), totalBlocks)
	r.writer.StartupInfo(fmt.Sprintf("%s in %s", ui.Pluralize(totalBlocks, "block"), ui.Pluralize(len(outcomes), "file")))

	if err := r.previewAll(ctx, outcomes); err != nil {
		return nil, err
	}

	if opts.UseLLM && r.assist != nil {
		r.regenerateFailed(ctx, outcomes)
	}

	if err := r.decide(outcomes, opts); err != nil {
		return nil, err
	}

	runID, err := r.write(ctx, outcomes)
	if err != nil {
		return nil, err
	}

	report := buildReport(runID, outcomes, time.Since(start))
	r.logger.RunFinished(runID, len(report.Applied), len(report.Failed), len(report.Skipped)+len(report.Unchanged), report.Duration)
	r.writer.Summary(report.Render())
	r.writer.WriteJSON(report.ToJSON())
	return report, nil
}

// bind assigns a target file to every patch. Patches whose code fence named a
// path keep it; pathless patches fall back to the explicit command line file,
// or to the model when assist is configured.
func (r *Runner) bind(ctx context.Context, patches []collect.FilePatch, explicit []string) ([]collect.FilePatch, error) {
	var bound []collect.FilePatch
	var pathless []collect.FilePatch
	for _, p := range patches {
		if p.Path == "" {
			pathless = append(pathless, p)
		} else {
			bound = append(bound, p)
		}
	}
	if len(pathless) == 0 {
		return bound, nil
	}

	var sb strings.Builder
	for _, p := range pathless {
		sb.WriteString(p.DiffText)
		if !strings.HasSuffix(p.DiffText, "\n") {
			sb.WriteString("\n")
		}
	}
	joined := sb.String()

	if len(explicit) > 1 {
		return nil, fmt.Errorf("cannot split pathless blocks across %d files; pass a single target file", len(explicit))
	}
	if len(explicit) == 1 {
		return appendPatch(bound, explicit[0], joined), nil
	}
	if r.assist == nil {
		return nil, fmt.Errorf("patch blocks name no target file; pass the file as an argument or configure llm assist")
	}

	candidates, err := workspace.ListFiles(r.cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace files: %w", err)
	}
	r.writer.Info("asking the model which files these blocks belong to")
	targets, err := r.assist.IdentifyTargetFiles(ctx, joined, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to identify target files: %w", err)
	}
	if len(targets) == 1 {
		return appendPatch(bound, targets[0], joined), nil
	}

	// The blocks span several files; have the model split them into
	// per-file patches it writes against each file's actual content.
	for _, target := range targets {
		abs, err := workspace.ResolvePath(r.cfg.Workspace.Root, target)
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", target, err)
		}
		r.writer.Info(fmt.Sprintf("generating blocks for %s", target))
		diffText, err := r.assist.GenerateDiffForFile(ctx, joined, target, string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to generate blocks for %s: %w", target, err)
		}
		bound = appendPatch(bound, target, diffText)
	}
	return bound, nil
}

// appendPatch adds diffText under path, concatenating onto an existing entry
// so a file never appears twice in one run.
func appendPatch(patches []collect.FilePatch, path, diffText string) []collect.FilePatch {
	for i := range patches {
		if patches[i].Path != path {
			continue
		}
		if !strings.HasSuffix(patches[i].DiffText, "\n") {
			patches[i].DiffText += "\n"
		}
		patches[i].DiffText += diffText
		return patches
	}
	return append(patches, collect.FilePatch{Path: path, DiffText: diffText})
}

// previewAll computes every file's patched content in parallel.
func (r *Runner) previewAll(ctx context.Context, outcomes []*FileOutcome) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Apply.Parallel)
	for _, out := range outcomes {
		out := out
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.preview(out)
			return nil
		})
	}
	return g.Wait()
}

// preview computes the patched content for one file without touching disk.
func (r *Runner) preview(out *FileOutcome) {
	abs, err := workspace.ResolvePath(r.cfg.Workspace.Root, out.Path)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return
	}
	out.Abs = abs
	out.Path = workspace.RelPath(r.cfg.Workspace.Root, abs)

	if out.Blocks == 0 {
		out.Status = StatusSkipped
		out.Note = "no complete blocks"
		return
	}

	original, err := os.ReadFile(abs)
	if err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("failed to read %s: %w", out.Path, err)
		return
	}

	modified, err := patch.ApplyDiff(string(original), out.DiffText)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		out.Hint = r.similarityHint(string(original), err)
		return
	}
	if modified == string(original) {
		out.Status = StatusUnchanged
		out.Note = "already applied"
		return
	}
	out.Diff, _ = unifiedDiff(string(original), modified, out.Path, r.cfg.Apply.ContextLines)
	out.Status = StatusPending
}

// similarityHint names the line closest to a failed block's search text, so
// the user can see how far off the paste was.
func (r *Runner) similarityHint(original string, err error) string {
	var notFound *patch.BlockNotFoundError
	if !errors.As(err, &notFound) {
		return ""
	}
	line, ok := patch.MostSimilarLine(original, notFound.SearchText, r.cfg.Apply.MinHintRatio)
	if !ok {
		return ""
	}
	return fmt.Sprintf("closest match: line %d: %s", line.LineNumber, strings.TrimSpace(line.Text))
}

// regenerateFailed asks the model to rewrite the blocks of every file whose
// patch did not apply, then re-previews the result. Files are handled one at
// a time so each request stays focused on a single file.
func (r *Runner) regenerateFailed(ctx context.Context, outcomes []*FileOutcome) {
	for _, out := range outcomes {
		if out.Status != StatusFailed || out.Abs == "" || out.Blocks == 0 {
			continue
		}
		r.writer.Info(fmt.Sprintf("regenerating blocks for %s", out.Path))
		if err := r.regenerate(ctx, out); err != nil {
			r.writer.Warn(fmt.Sprintf("regeneration failed for %s: %v", out.Path, err))
		}
	}
}

func (r *Runner) regenerate(ctx context.Context, out *FileOutcome) error {
	original, err := os.ReadFile(out.Abs)
	if err != nil {
		return err
	}
	diffText, err := r.assist.GenerateDiffForFile(ctx, out.DiffText, out.Path, string(original))
	if err != nil {
		return err
	}
	blocks := patch.Parse(diffText)
	if len(blocks) == 0 {
		return fmt.Errorf("model returned no complete blocks")
	}
	modified, err := patch.ApplyDiff(string(original), diffText)
	if err != nil {
		return err
	}
	if modified == string(original) {
		return fmt.Errorf("regenerated blocks change nothing")
	}
	out.DiffText = diffText
	out.Blocks = len(blocks)
	out.Diff, _ = unifiedDiff(string(original), modified, out.Path, r.cfg.Apply.ContextLines)
	out.Err = nil
	out.Hint = ""
	out.Status = StatusPending
	return nil
}

// decide shows each previewed diff and records whether the user accepted it.
func (r *Runner) decide(outcomes []*FileOutcome, opts Options) error {
	// Surface failures and skips first so they are not buried under diffs.
	for _, out := range outcomes {
		switch out.Status {
		case StatusFailed:
			r.writer.Error(fmt.Sprintf("%s: %v", out.Path, out.Err))
			if out.Hint != "" {
				r.writer.Info(out.Hint)
			}
			r.logger.FileFailed(out.Path, failedBlockIndex(out.Err), out.Err)
		case StatusSkipped:
			r.writer.FileResult("skipped", out.Path, out.Note)
			r.logger.FileSkipped(out.Path, out.Note)
		case StatusUnchanged:
			r.writer.FileResult("unchanged", out.Path, out.Note)
			r.logger.FileSkipped(out.Path, out.Note)
		}
	}

	var pending []*FileOutcome
	for _, out := range outcomes {
		if out.Status == StatusPending {
			pending = append(pending, out)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if opts.PreviewOnly {
		for _, out := range pending {
			r.writer.Diff(out.Diff)
			out.Status = StatusSkipped
			out.Note = "preview only"
		}
		return nil
	}

	if opts.Interactive {
		items := make([]tui.FileDiff, len(pending))
		for i, out := range pending {
			items[i] = tui.FileDiff{Path: out.Path, Diff: out.Diff}
		}
		accepted, err := tui.Review(items)
		if err != nil {
			return fmt.Errorf("failed to run review ui: %w", err)
		}
		for _, out := range pending {
			if accepted[out.Path] {
				out.Accepted = true
			} else {
				out.Status = StatusSkipped
				out.Note = "declined"
			}
		}
		return nil
	}

	applyAll := opts.AutoApply || r.cfg.Apply.Confirm == config.ConfirmAuto
	declined := false
	for _, out := range pending {
		if declined {
			out.Status = StatusSkipped
			out.Note = "declined"
			continue
		}
		r.writer.Diff(out.Diff)
		if applyAll {
			out.Accepted = true
			continue
		}
		decision, err := r.writer.Confirm(out.Path)
		if err != nil {
			return err
		}
		switch decision {
		case ui.DecisionYes:
			out.Accepted = true
		case ui.DecisionAll:
			out.Accepted = true
			applyAll = true
		case ui.DecisionQuit:
			out.Status = StatusSkipped
			out.Note = "declined"
			declined = true
		default:
			out.Status = StatusSkipped
			out.Note = "declined"
		}
	}
	return nil
}

// write snapshots every accepted file into the undo history, then applies
// the blocks in place. Returns the history run ID, or "" when nothing was
// accepted.
func (r *Runner) write(ctx context.Context, outcomes []*FileOutcome) (string, error) {
	var accepted []*FileOutcome
	var paths []string
	for _, out := range outcomes {
		if out.Accepted {
			accepted = append(accepted, out)
			paths = append(paths, out.Path)
		}
	}
	if len(accepted) == 0 {
		return "", nil
	}

	runID, err := r.history.Record(paths)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot files: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Apply.Parallel)
	for _, out := range accepted {
		out := out
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.apply(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return runID, err
	}

	// All terminal output stays on this goroutine.
	for _, out := range accepted {
		switch out.Status {
		case StatusApplied:
			r.writer.FileResult("applied", out.Path, ui.Pluralize(out.Blocks, "block"))
		case StatusFailed:
			r.writer.Error(fmt.Sprintf("%s: %v", out.Path, out.Err))
		case StatusUnchanged:
			r.writer.FileResult("unchanged", out.Path, out.Note)
		}
	}
	return runID, nil
}

// apply rewrites one file on disk. The file is re-read and re-patched rather
// than written from the preview so edits made between preview and confirm
// still match.
func (r *Runner) apply(out *FileOutcome) {
	start := time.Now()
	if err := patch.ApplyDiffToFile(out.Abs, out.DiffText); err != nil {
		var noChange *patch.NoChangeError
		if errors.As(err, &noChange) {
			out.Status = StatusUnchanged
			out.Note = "already applied"
			r.logger.FileSkipped(out.Path, out.Note)
			return
		}
		out.Status = StatusFailed
		out.Err = err
		r.logger.FileFailed(out.Path, failedBlockIndex(err), err)
		return
	}
	out.Status = StatusApplied
	r.logger.FileApplied(out.Path, out.Blocks, time.Since(start))
}

func failedBlockIndex(err error) int {
	var notFound *patch.BlockNotFoundError
	if errors.As(err, &notFound) {
		return notFound.Index
	}
	return 0
}
