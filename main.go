// ./main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/scalpel-taint/cmd"
	"github.com/xkilldash9x/scalpel-taint/internal/observability"
)

const panicLogFile = "scalpel-taint-panic.log"

// Function variables allow tests to replace process-level side effects.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
)

// main is the entry point for the scalpel-taint CLI.
func main() {
	defer handlePanic()

	// SIGINT/SIGTERM cancel the context; running analyses stop between statements.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(run(ctx))
}

// run executes the command tree and maps the outcome to an exit code.
// cmd.Execute has already logged any error.
func run(ctx context.Context) int {
	if err := execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		return 1
	}
	return 0
}

// handlePanic records an unexpected panic with its stack trace and exits non-zero.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(2)
		return
	}
	fmt.Fprintf(os.Stderr, "Internal error. Details logged to %s\n", panicLogFile)
	osExit(2)
}
