// Package restart hands the process lineage off to a freshly spawned
// replacement. The handoff is fire-and-forget: only spawn errors and exits
// inside the grace window are retried; once the replacement survives the
// window, the current process is expected to exit and never look back.
package restart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ouro-sh/ouro/internal/log"
)

// ExhaustedError reports a spent restart budget.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("restart exhausted after %d attempts: %v", e.Attempts, e.Last)
}
func (e *ExhaustedError) Unwrap() error { return e.Last }

type Supervisor struct {
	Spawner  Spawner
	Attempts int
	Delay    time.Duration

	// Grace is how long a spawned process must survive without a non-zero
	// exit before the handoff counts as clean. A clean zero exit inside the
	// window also counts: the child finished a whole run on its own.
	Grace time.Duration

	// PIDFile, when set, records the child pid after a clean handoff.
	PIDFile string

	Log *log.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Handoff spawns the replacement process, retrying with a fixed delay up to
// the attempt ceiling. It returns the child pid on success.
func (s *Supervisor) Handoff(ctx context.Context) (int, error) {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}
	logger := s.Log
	if logger == nil {
		logger = log.Nop()
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		pid, err := s.try(ctx)
		if err == nil {
			s.writePIDFile(pid, logger)
			logger.Info("handoff complete", zap.Int("pid", pid), zap.Int("attempt", attempt))
			return pid, nil
		}
		last = err
		logger.Warn("restart attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("budget", attempts),
			zap.Error(err))
		if attempt < attempts {
			if serr := sleep(ctx, s.Delay); serr != nil {
				return 0, serr
			}
		}
	}
	return 0, &ExhaustedError{Attempts: attempts, Last: last}
}

func (s *Supervisor) try(ctx context.Context) (int, error) {
	h, err := s.Spawner.Spawn()
	if err != nil {
		return 0, fmt.Errorf("spawn: %w", err)
	}
	if s.Grace <= 0 {
		return h.PID(), nil
	}
	t := time.NewTimer(s.Grace)
	defer t.Stop()
	select {
	case werr := <-h.Done():
		if werr != nil {
			return 0, fmt.Errorf("early exit: %w", werr)
		}
		return h.PID(), nil
	case <-t.C:
		return h.PID(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// writePIDFile records the child pid. Best effort: a failure is logged, not
// escalated, since the handoff itself already succeeded.
func (s *Supervisor) writePIDFile(pid int, logger *log.Logger) {
	if s.PIDFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.PIDFile), 0o755); err != nil {
		logger.Warn("pid file dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.PIDFile, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		logger.Warn("pid file write", zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
