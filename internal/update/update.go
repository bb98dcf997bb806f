// Package update is the orchestrator for one upgrade cycle: read the current
// program text, request a rewrite, replace the file atomically, and hand the
// lineage off to a fresh process.
//
// A cycle never lets a failure stop the lineage: unless fallback restart is
// disabled by policy, every failure path still attempts a restart of the
// current version. Only a double failure exits non-zero.
package update

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ouro-sh/ouro/internal/config"
	"github.com/ouro-sh/ouro/internal/integrity"
	"github.com/ouro-sh/ouro/internal/log"
	"github.com/ouro-sh/ouro/internal/remote"
	"github.com/ouro-sh/ouro/internal/runstate"
	"github.com/ouro-sh/ouro/internal/swap"
)

// Caller performs the remote upgrade request.
type Caller interface {
	Complete(ctx context.Context, req remote.Request) (string, error)
}

// Replacer commits candidate text to the target path.
type Replacer interface {
	Replace(content []byte, target string) (string, error)
}

// Restarter spawns the replacement process.
type Restarter interface {
	Handoff(ctx context.Context) (int, error)
}

type Options struct {
	Config    *config.Config
	Caller    Caller
	Replacer  Replacer
	Restarter Restarter
	Checker   *integrity.Checker
	Log       *log.Logger
	RunID     string

	// DryRun performs the remote call and integrity check but writes nothing
	// and never restarts.
	DryRun bool

	// Now is replaced in tests.
	Now func() time.Time
}

// Run executes one update cycle and returns the process exit code: 0 when a
// handoff happened (primary or fallback), 1 when the lineage ends here.
func Run(ctx context.Context, opts Options) int {
	cfg := opts.Config
	logger := opts.Log
	if logger == nil {
		logger = log.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	program, err := os.ReadFile(cfg.Target)
	if err != nil {
		return fail(ctx, opts, logger, "read target", err)
	}
	logger.Info("current program read",
		zap.String("target", cfg.Target),
		zap.Int("bytes", len(program)),
		zap.String("digest", swap.Digest(program)))

	req := BuildRequest(string(program), opts.Checker.Names(), now())
	raw, err := opts.Caller.Complete(ctx, req)
	if err != nil {
		return fail(ctx, opts, logger, "remote call", err)
	}
	candidate := strings.TrimSpace(raw)
	logger.Info("candidate received",
		zap.Int("bytes", len(candidate)),
		zap.String("digest", swap.Digest([]byte(candidate))))

	if opts.DryRun {
		if missing := opts.Checker.Missing(candidate); len(missing) > 0 {
			logger.Error("dry run: candidate rejected", zap.Strings("missing", missing))
			return 1
		}
		logger.Info("dry run: candidate passed integrity checks, nothing written")
		return 0
	}

	backup, err := opts.Replacer.Replace([]byte(candidate), cfg.Target)
	if err != nil {
		return fail(ctx, opts, logger, "replace", err)
	}
	if backup != "" {
		logger.Info("previous version retained", zap.String("backup", backup))
	}

	pid, err := opts.Restarter.Handoff(ctx)
	if err != nil {
		return fail(ctx, opts, logger, "restart", err)
	}

	if werr := runstate.WriteOutcome(cfg.StateRoot, runstate.Outcome{
		Status:   runstate.StatusHandoff,
		RunID:    opts.RunID,
		Backup:   backup,
		ChildPID: pid,
	}); werr != nil {
		logger.Warn("outcome write", zap.Error(werr))
	}
	return 0
}

// fail logs the causal chain, preserves the current version, and applies the
// fallback-restart policy. The target file is never touched here: whatever
// the replacer left at the target path is the version the fallback runs.
func fail(ctx context.Context, opts Options, logger *log.Logger, stage string, cause error) int {
	cfg := opts.Config
	logger.Error("update cycle failed",
		zap.String("stage", stage),
		zap.Error(cause))

	outcome := runstate.Outcome{
		Status:        runstate.StatusFail,
		RunID:         opts.RunID,
		FailureReason: fmt.Sprintf("%s: %v", stage, cause),
	}

	if !cfg.FallbackRestart() {
		writeOutcome(cfg.StateRoot, outcome, logger)
		return 1
	}

	logger.Warn("falling back to restart of the current version")
	pid, rerr := opts.Restarter.Handoff(ctx)
	if rerr != nil {
		logger.Error("fallback restart failed", zap.Error(rerr))
		outcome.FailureReason += "; fallback restart: " + rerr.Error()
		writeOutcome(cfg.StateRoot, outcome, logger)
		return 1
	}

	// Lineage alive on the last-known-good version.
	outcome.Status = runstate.StatusHandoff
	outcome.ChildPID = pid
	writeOutcome(cfg.StateRoot, outcome, logger)
	return 0
}

func writeOutcome(stateRoot string, o runstate.Outcome, logger *log.Logger) {
	if err := runstate.WriteOutcome(stateRoot, o); err != nil {
		logger.Warn("outcome write", zap.Error(err))
	}
}
