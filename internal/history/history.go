// Package history snapshots files before they are patched so a run can be
// reverted after the fact.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const manifestName = "manifest.json"

// Manager stores pre-patch copies of files under
// <root>/.blockpatch/history/<runID>/ and prunes old runs.
type Manager struct {
	mu         sync.Mutex
	root       string
	historyDir string
	keep       int
}

// Run describes one recorded write-run.
type Run struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Files     []FileEntry `json:"files"`
}

// FileEntry maps a workspace-relative path to its backup inside the run dir.
type FileEntry struct {
	Path   string      `json:"path"`
	Backup string      `json:"backup"`
	Mode   os.FileMode `json:"mode"`
}

// NewManager creates a history manager for a workspace root.
// keep is the number of runs retained; older runs are pruned after each Record.
func NewManager(root string, keep int) *Manager {
	return &Manager{
		root:       root,
		historyDir: filepath.Join(root, ".blockpatch", "history"),
		keep:       keep,
	}
}

// Record copies the current content of each workspace-relative path into a
// new run directory and returns the run ID. Call it before writing any file.
func (m *Manager) Record(paths []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID := uuid.NewString()
	runDir := filepath.Join(m.historyDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	run := Run{
		ID:        runID,
		CreatedAt: time.Now().UTC(),
	}

	for i, rel := range paths {
		abs := filepath.Join(m.root, rel)
		data, err := os.ReadFile(abs)
		if err != nil {
			os.RemoveAll(runDir)
			return "", fmt.Errorf("failed to snapshot %s: %w", rel, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			os.RemoveAll(runDir)
			return "", fmt.Errorf("failed to stat %s: %w", rel, err)
		}

		// Numbered backups so identical base names cannot collide
		backup := fmt.Sprintf("%03d-%s", i, filepath.Base(rel))
		if err := os.WriteFile(filepath.Join(runDir, backup), data, 0644); err != nil {
			os.RemoveAll(runDir)
			return "", fmt.Errorf("failed to write backup for %s: %w", rel, err)
		}

		run.Files = append(run.Files, FileEntry{
			Path:   rel,
			Backup: backup,
			Mode:   info.Mode().Perm(),
		})
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, manifestName), data, 0644); err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := m.prune(); err != nil {
		return "", err
	}
	return runID, nil
}

// Revert restores every file of the most recent run and removes that run.
// Returns the run that was reverted.
func (m *Manager) Revert() (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs, err := m.list()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs to revert")
	}

	latest := runs[0]
	runDir := filepath.Join(m.historyDir, latest.ID)
	for _, f := range latest.Files {
		data, err := os.ReadFile(filepath.Join(runDir, f.Backup))
		if err != nil {
			return nil, fmt.Errorf("failed to read backup for %s: %w", f.Path, err)
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0644
		}
		if err := os.WriteFile(filepath.Join(m.root, f.Path), data, mode); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", f.Path, err)
		}
	}

	if err := os.RemoveAll(runDir); err != nil {
		return nil, fmt.Errorf("failed to remove run directory: %w", err)
	}
	return &latest, nil
}

// List returns recorded runs, newest first.
func (m *Manager) List() ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list()
}

func (m *Manager) list() ([]Run, error) {
	entries, err := os.ReadDir(m.historyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var runs []Run
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.historyDir, entry.Name(), manifestName))
		if err != nil {
			// A run dir without a manifest is a half-written record; skip it
			continue
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// prune removes runs beyond the keep-count, oldest first.
// Caller must hold m.mu.
func (m *Manager) prune() error {
	if m.keep <= 0 {
		return nil
	}
	runs, err := m.list()
	if err != nil {
		return err
	}
	for _, run := range runs[min(m.keep, len(runs)):] {
		if err := os.RemoveAll(filepath.Join(m.historyDir, run.ID)); err != nil {
			return fmt.Errorf("failed to prune run %s: %w", run.ID, err)
		}
	}
	return nil
}
