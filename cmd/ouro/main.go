package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "run":
		os.Exit(runRun(os.Args[2:], os.Stdout, os.Stderr))
	case "check":
		os.Exit(runCheck(os.Args[2:], os.Stdout, os.Stderr))
	case "status":
		os.Exit(runStatus(os.Args[2:], os.Stdout, os.Stderr))
	case "prune":
		os.Exit(runPrune(os.Args[2:], os.Stdout, os.Stderr))
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  ouro run [--config <ouro.yaml>] [--target <file>] [--dry-run] [--no-fallback-restart]")
	fmt.Fprintln(os.Stderr, "  ouro check [--config <ouro.yaml>] [--file <file>]")
	fmt.Fprintln(os.Stderr, "  ouro status [--config <ouro.yaml>] [--state-root <dir>]")
	fmt.Fprintln(os.Stderr, "  ouro prune [--config <ouro.yaml>] [--target <file>] [--keep <n>] [--dry-run]")
}
