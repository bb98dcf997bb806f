package main

import (
	"fmt"
	"io"
	"time"

	"github.com/ouro-sh/ouro/internal/runstate"
)

func runStatus(args []string, stdout io.Writer, stderr io.Writer) int {
	var configPath string
	var stateRoot string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "--config requires a value")
				return 1
			}
			configPath = args[i]
		case "--state-root":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "--state-root requires a value")
				return 1
			}
			stateRoot = args[i]
		default:
			fmt.Fprintf(stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}

	if stateRoot == "" {
		cfg, ok := loadConfig(configPath, stderr)
		if !ok {
			return 1
		}
		stateRoot = cfg.StateRoot
	}
	if stateRoot == "" {
		fmt.Fprintln(stderr, "--state-root is required (or target in config)")
		return 1
	}

	s, err := runstate.LoadSnapshot(stateRoot)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	fmt.Fprintf(stdout, "state_root=%s\n", s.StateRoot)
	if s.Outcome != nil {
		fmt.Fprintf(stdout, "status=%s\n", s.Outcome.Status)
		fmt.Fprintf(stdout, "run_id=%s\n", s.Outcome.RunID)
		fmt.Fprintf(stdout, "finished_at=%s\n", s.Outcome.FinishedAt.Format(time.RFC3339))
		if s.Outcome.FailureReason != "" {
			fmt.Fprintf(stdout, "failure_reason=%s\n", s.Outcome.FailureReason)
		}
		if s.Outcome.Backup != "" {
			fmt.Fprintf(stdout, "backup=%s\n", s.Outcome.Backup)
		}
	}
	if s.ChildPID > 0 {
		fmt.Fprintf(stdout, "child_pid=%d\n", s.ChildPID)
		fmt.Fprintf(stdout, "child_alive=%t\n", s.ChildAlive)
	}
	return 0
}
