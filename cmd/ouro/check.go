package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ouro-sh/ouro/internal/integrity"
)

func runCheck(args []string, stdout io.Writer, stderr io.Writer) int {
	var configPath string
	var file string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "--config requires a value")
				return 1
			}
			configPath = args[i]
		case "--file":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "--file requires a value")
				return 1
			}
			file = args[i]
		default:
			fmt.Fprintf(stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}

	cfg, ok := loadConfig(configPath, stderr)
	if !ok {
		return 1
	}
	if file == "" {
		file = cfg.Target
	}
	if file == "" {
		fmt.Fprintln(stderr, "--file is required (or target in config)")
		return 1
	}

	checker, err := integrity.NewChecker(markersFromConfig(cfg))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	b, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	missing := checker.Missing(string(b))
	if len(missing) == 0 {
		fmt.Fprintf(stdout, "ok: %s\n", filepath.Base(file))
		return 0
	}
	for _, name := range missing {
		fmt.Fprintf(stdout, "missing=%s\n", name)
	}
	return 1
}
