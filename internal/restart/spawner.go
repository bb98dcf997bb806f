package restart

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Handle is a launched process being watched through its grace window.
type Handle interface {
	PID() int
	// Done yields the exit error once the process exits: nil for exit 0.
	Done() <-chan error
}

// Spawner launches one replacement process per call.
type Spawner interface {
	Spawn() (Handle, error)
}

// SelfCommand is the handoff default: the current executable re-invoked with
// the current arguments.
func SelfCommand() ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return append([]string{exe}, os.Args[1:]...), nil
}

// ExecSpawner launches Command in its own session so the child outlives the
// current process. Stdio goes to LogPath when set, otherwise it is discarded.
type ExecSpawner struct {
	Command []string
	LogPath string
}

type execHandle struct {
	pid  int
	done chan error
}

func (h *execHandle) PID() int           { return h.pid }
func (h *execHandle) Done() <-chan error { return h.done }

func (s *ExecSpawner) Spawn() (Handle, error) {
	if len(s.Command) == 0 {
		return nil, fmt.Errorf("spawn command is empty")
	}
	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	var logFile *os.File
	if strings.TrimSpace(s.LogPath) != "" {
		if err := os.MkdirAll(filepath.Dir(s.LogPath), 0o755); err == nil {
			if f, err := os.OpenFile(s.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				logFile = f
			}
		}
	}
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
		if logFile != nil {
			_ = logFile.Close()
		}
	}()
	return &execHandle{pid: cmd.Process.Pid, done: done}, nil
}
