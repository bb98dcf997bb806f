package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ouro-sh/ouro/internal/config"
	"github.com/ouro-sh/ouro/internal/swap"
)

func runPrune(args []string, stdout io.Writer, stderr io.Writer) int {
	var configPath string
	var target string
	keep := -1
	var dryRun bool

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
		case "--keep":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "--keep requires a value")
				return 1
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 {
				fmt.Fprintf(stderr, "invalid --keep value: %q\n", args[i])
				return 1
			}
			keep = n
		case "--dry-run":
			dryRun = true
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
	config.ApplyDefaults(cfg)
	if cfg.Target == "" {
		fmt.Fprintln(stderr, "--target is required (or target in config)")
		return 1
	}
	if keep < 0 {
		keep = cfg.Prune.KeepBackups
	}

	removed, err := swap.Prune(cfg.Target, keep, dryRun)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	key := "removed"
	if dryRun {
		key = "would_remove"
	}
	for _, path := range removed {
		fmt.Fprintf(stdout, "%s=%s\n", key, path)
	}
	return 0
}
