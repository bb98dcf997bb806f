// Package runstate reads and writes the per-lineage state directory: the
// final.json outcome of the last update run and the run.pid of the last
// handed-off child.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ouro-sh/ouro/internal/procutil"
)

type Status string

const (
	// StatusHandoff: a replacement process was spawned; the run ended well
	// even if the file replace itself failed and the old version lives on.
	StatusHandoff Status = "handoff"
	// StatusFail: no replacement process is running.
	StatusFail Status = "fail"
)

// Outcome is the final.json document one update run leaves behind.
type Outcome struct {
	Status        Status    `json:"status"`
	RunID         string    `json:"run_id"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Backup        string    `json:"backup,omitempty"`
	ChildPID      int       `json:"child_pid,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

func PIDPath(stateRoot string) string {
	return filepath.Join(stateRoot, "run.pid")
}

func outcomePath(stateRoot string) string {
	return filepath.Join(stateRoot, "final.json")
}

// WriteOutcome persists the outcome doc, creating the state dir if needed.
func WriteOutcome(stateRoot string, o Outcome) error {
	if strings.TrimSpace(stateRoot) == "" {
		return fmt.Errorf("state root is required")
	}
	if o.FinishedAt.IsZero() {
		o.FinishedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(stateRoot, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outcomePath(stateRoot), append(b, '\n'), 0o644)
}

// Snapshot is the observable state of a lineage's state dir.
type Snapshot struct {
	StateRoot  string
	Outcome    *Outcome // nil when no run has finished here
	ChildPID   int
	ChildAlive bool
}

// LoadSnapshot reads final.json and run.pid, tolerating either being absent.
func LoadSnapshot(stateRoot string) (*Snapshot, error) {
	root := strings.TrimSpace(stateRoot)
	if root == "" {
		return nil, fmt.Errorf("state root is required")
	}
	s := &Snapshot{StateRoot: root}

	b, err := os.ReadFile(outcomePath(root))
	switch {
	case err == nil:
		var o Outcome
		if err := json.Unmarshal(b, &o); err != nil {
			return nil, fmt.Errorf("decode %s: %w", outcomePath(root), err)
		}
		s.Outcome = &o
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	pb, err := os.ReadFile(PIDPath(root))
	switch {
	case err == nil:
		raw := strings.TrimSpace(string(pb))
		pid, perr := strconv.Atoi(raw)
		if perr != nil || pid <= 0 {
			return nil, fmt.Errorf("parse %s: invalid pid %q", PIDPath(root), raw)
		}
		s.ChildPID = pid
		s.ChildAlive = procutil.Alive(pid)
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	return s, nil
}
