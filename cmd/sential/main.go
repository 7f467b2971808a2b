package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gnana997/sential/pkg/bridge"
)

const version = "0.1.0-dev"

// Exit codes.
const (
	exitFailure      = 1
	exitPrecondition = 2
	exitInterrupted  = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
		os.Exit(exitCode(err))
	}
}

// errorMessage renders err as the one-line diagnostic. Resource failures
// point at debug logging, where the underlying operation is recorded.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case bridge.IsResource(err):
		return err.Error() + " (rerun with --log-level debug for details)"
	default:
		return err.Error()
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case bridge.IsPrecondition(err):
		return exitPrecondition
	default:
		return exitFailure
	}
}
