// Command dispatchctl drives the dispatch core from the command line:
// dispatching a route (run), exercising a fixed demo route (run --demo),
// and reporting Orchestrator stats (status).
package main

import (
	"fmt"
	"os"
)

// Exit codes per the CLI surface: 0 success, 1 internal error,
// 2 configuration error, 130 interrupted (SIGINT).
const (
	exitOK        = 0
	exitInternal  = 1
	exitConfig    = 2
	exitInterrupt = 130
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: dispatchctl <run|status> [flags]")
		os.Exit(exitConfig)
	}

	var code int
	switch os.Args[1] {
	case "run":
		code = cmdRun(os.Args[2:])
	case "status":
		code = cmdStatus(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		code = exitOK
	default:
		fmt.Fprintf(os.Stderr, "dispatchctl: unknown command %q\n", os.Args[1])
		printUsage()
		code = exitConfig
	}
	os.Exit(code)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  dispatchctl run --origin STR --destination STR [--mode batch|stream] [--profile PRESET] [--interval FLOAT]
  dispatchctl run --demo
  dispatchctl status`)
}
