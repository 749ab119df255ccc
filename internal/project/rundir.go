package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunDir is the per-session scratch directory under the project root.
// It holds buffer snapshots, the event log and the final session report.
type RunDir struct {
	// Path is the run directory, e.g. <root>/.mend_runs/20260831-120000
	Path string

	// SnapshotsDir holds one file per buffer write
	SnapshotsDir string
}

// NewRunDir creates a timestamped run directory under base
func NewRunDir(base string) (*RunDir, error) {
	ts := time.Now().Format("20060102-150405")
	path := filepath.Join(base, ts)
	snapshots := filepath.Join(path, "snapshots")
	if err := os.MkdirAll(snapshots, 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &RunDir{Path: path, SnapshotsDir: snapshots}, nil
}

// Snapshot writes the full buffer content under a descriptive tag.
// The file is named <stem>.<tag><ext>, e.g. Play.iter003_det.lean.
func (r *RunDir) Snapshot(target, tag, content string) (string, error) {
	base := filepath.Base(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	path := filepath.Join(r.SnapshotsDir, fmt.Sprintf("%s.%s%s", stem, tag, ext))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// CreateLog opens a file inside the run directory for appending
func (r *RunDir) CreateLog(name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(r.Path, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	return f, nil
}
