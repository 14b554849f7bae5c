package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockpatch/blockpatch/internal/patch"
	"github.com/blockpatch/blockpatch/internal/ui"
)

// Report is the final outcome of one run.
type Report struct {
	RunID         string
	Applied       []string
	Failed        []FailureDetail
	Skipped       []string
	Unchanged     []string
	BlocksApplied int
	Duration      time.Duration
}

// FailureDetail describes one file whose patch did not apply.
type FailureDetail struct {
	Path  string
	Block int // 1-based index of the failing block, 0 when the failure was not block-related
	Err   string
	Hint  string
}

// ReportJSON is the JSON output format for a run report
type ReportJSON struct {
	RunID         string        `json:"run_id,omitempty"`
	Applied       []string      `json:"applied"`
	Failed        []FailureJSON `json:"failed"`
	Skipped       []string      `json:"skipped"`
	Unchanged     []string      `json:"unchanged"`
	BlocksApplied int           `json:"blocks_applied"`
	DurationMs    int64         `json:"duration_ms"`
}

// FailureJSON is one failed file in the JSON report.
type FailureJSON struct {
	Path  string `json:"path"`
	Block int    `json:"block,omitempty"`
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// ToJSON converts the report to its JSON representation
func (r *Report) ToJSON() ReportJSON {
	j := ReportJSON{
		RunID:         r.RunID,
		Applied:       r.Applied,
		Failed:        make([]FailureJSON, 0, len(r.Failed)),
		Skipped:       r.Skipped,
		Unchanged:     r.Unchanged,
		BlocksApplied: r.BlocksApplied,
		DurationMs:    r.Duration.Milliseconds(),
	}
	if j.Applied == nil {
		j.Applied = []string{}
	}
	if j.Skipped == nil {
		j.Skipped = []string{}
	}
	if j.Unchanged == nil {
		j.Unchanged = []string{}
	}
	for _, f := range r.Failed {
		j.Failed = append(j.Failed, FailureJSON{Path: f.Path, Block: f.Block, Error: f.Err, Hint: f.Hint})
	}
	return j
}

// Render formats the report as the human-readable run summary.
func (r *Report) Render() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d applied, %d failed, %d skipped (%s, %s)",
		len(r.Applied), len(r.Failed), len(r.Skipped)+len(r.Unchanged),
		ui.Pluralize(r.BlocksApplied, "block"), ui.FormatDuration(r.Duration)))
	for _, f := range r.Failed {
		first := f.Err
		if idx := strings.Index(first, "\n"); idx != -1 {
			first = first[:idx]
		}
		sb.WriteString(fmt.Sprintf("\n  %s: %s", f.Path, first))
		if f.Hint != "" {
			sb.WriteString(fmt.Sprintf("\n    %s", f.Hint))
		}
	}
	if r.RunID != "" {
		sb.WriteString("\nundo with: blockpatch --revert")
	}
	return sb.String()
}

// ExitCode maps the report to the process exit code: 0 when nothing failed,
// 1 when at least one file failed to patch.
func (r *Report) ExitCode() int {
	if len(r.Failed) > 0 {
		return 1
	}
	return 0
}

func buildReport(runID string, outcomes []*FileOutcome, duration time.Duration) *Report {
	rep := &Report{RunID: runID, Duration: duration}
	for _, out := range outcomes {
		switch out.Status {
		case StatusApplied:
			rep.Applied = append(rep.Applied, out.Path)
			rep.BlocksApplied += out.Blocks
		case StatusFailed:
			detail := FailureDetail{Path: out.Path, Err: out.Err.Error(), Hint: out.Hint}
			var notFound *patch.BlockNotFoundError
			if errors.As(out.Err, &notFound) {
				detail.Block = notFound.Index
			}
			rep.Failed = append(rep.Failed, detail)
		case StatusUnchanged:
			rep.Unchanged = append(rep.Unchanged, out.Path)
		default:
			rep.Skipped = append(rep.Skipped, out.Path)
		}
	}
	return rep
}
