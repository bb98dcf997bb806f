package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ouro-sh/ouro/internal/config"
	"github.com/ouro-sh/ouro/internal/integrity"
	"github.com/ouro-sh/ouro/internal/log"
	"github.com/ouro-sh/ouro/internal/remote"
	"github.com/ouro-sh/ouro/internal/restart"
	"github.com/ouro-sh/ouro/internal/runstate"
	"github.com/ouro-sh/ouro/internal/swap"
	"github.com/ouro-sh/ouro/internal/update"
)

func runRun(args []string, stdout io.Writer, stderr io.Writer) int {
	var configPath string
	var target string
	var dryRun bool
	var noFallback bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "--config requires a value")
				return 1
			}
			configPath = args[i]
		case "--target":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "--target requires a value")
				return 1
			}
			target = args[i]
		case "--dry-run":
			dryRun = true
		case "--no-fallback-restart":
			noFallback = true
		default:
			fmt.Fprintf(stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}

	cfg, ok := loadConfig(configPath, stderr)
	if !ok {
		return 1
	}
	if target != "" {
		cfg.Target = target
		cfg.StateRoot = ""
	}
	if noFallback {
		f := false
		cfg.Policy.FallbackRestart = &f
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	apiKey := strings.TrimSpace(os.Getenv(cfg.API.APIKeyEnv))
	if apiKey == "" {
		fmt.Fprintf(stderr, "%s is not set\n", cfg.API.APIKeyEnv)
		return 1
	}

	runID := ulid.Make().String()
	logger := log.New(runID)

	checker, err := integrity.NewChecker(markersFromConfig(cfg))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	client := remote.NewClient(remote.Config{
		BaseURL:     cfg.API.BaseURL,
		Path:        cfg.API.Path,
		Model:       cfg.API.Model,
		APIKey:      apiKey,
		Attempts:    cfg.API.Attempts,
		RetryDelay:  time.Duration(cfg.API.RetryDelayMS) * time.Millisecond,
		Timeout:     time.Duration(cfg.API.TimeoutMS) * time.Millisecond,
		Temperature: cfg.API.Temperature,
	}, logger)

	command := cfg.Restart.Command
	if len(command) == 0 {
		command, err = restart.SelfCommand()
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	sup := &restart.Supervisor{
		Spawner: &restart.ExecSpawner{
			Command: command,
			LogPath: filepath.Join(cfg.StateRoot, "child.log"),
		},
		Attempts: cfg.Restart.Attempts,
		Delay:    time.Duration(cfg.Restart.DelayMS) * time.Millisecond,
		Grace:    time.Duration(cfg.Restart.GraceMS) * time.Millisecond,
		PIDFile:  runstate.PIDPath(cfg.StateRoot),
		Log:      logger,
	}

	code := update.Run(context.Background(), update.Options{
		Config:    cfg,
		Caller:    client,
		Replacer:  swap.NewReplacer(checker, logger),
		Restarter: sup,
		Checker:   checker,
		Log:       logger,
		RunID:     runID,
		DryRun:    dryRun,
	})
	fmt.Fprintf(stdout, "run_id=%s\n", runID)
	fmt.Fprintf(stdout, "state_root=%s\n", cfg.StateRoot)
	return code
}

func loadConfig(configPath string, stderr io.Writer) (*config.Config, bool) {
	if configPath == "" {
		return config.Default(), true
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil, false
	}
	return cfg, true
}

func markersFromConfig(cfg *config.Config) []integrity.Marker {
	if len(cfg.Integrity.Markers) == 0 {
		return nil
	}
	out := make([]integrity.Marker, 0, len(cfg.Integrity.Markers))
	for _, m := range cfg.Integrity.Markers {
		out = append(out, integrity.Marker{Name: m.Name, Pattern: m.Pattern})
	}
	return out
}
