// Package procutil answers pid-liveness questions for the restart supervisor
// and runstate snapshots.
package procutil

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Alive reports whether pid exists and is not a zombie. A handed-off child
// that already died reads as not alive even before it is reaped.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if zombie(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

func zombie(pid int) bool {
	state, ok := procState(pid)
	if !ok {
		state, ok = psState(pid)
	}
	if !ok || state == 0 {
		return false
	}
	return state == 'Z' || state == 'X'
}

// procState reads the single-letter state from /proc/<pid>/stat. The comm
// field may contain spaces and parens, so the state is located after the
// last ')'.
func procState(pid int) (byte, bool) {
	b, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}
	line := string(b)
	closeIdx := strings.LastIndexByte(line, ')')
	if closeIdx < 0 || closeIdx+2 >= len(line) {
		return 0, false
	}
	return line[closeIdx+2], true
}

// psState is the fallback for hosts without procfs.
func psState(pid int) (byte, bool) {
	out, err := exec.Command("ps", "-o", "state=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return 0, false
	}
	state := strings.TrimSpace(string(out))
	if state == "" {
		return 0, false
	}
	return state[0], true
}
