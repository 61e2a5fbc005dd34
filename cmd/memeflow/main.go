package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"memeflow/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// printError writes the safe rendering of err.
func printError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "cancelled")
		return
	}
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		// Flag parsing and other cobra errors carry no internal detail.
		fmt.Fprintln(w, "error:", err)
		return
	}
	details := services.Details(err)
	if details.Reason != "" {
		fmt.Fprintf(w, "error [%s/%s]: %s\n", details.Kind, details.Reason, details.Message)
		return
	}
	fmt.Fprintf(w, "error [%s]: %s\n", details.Kind, details.Message)
}

// exitCode is 2 for problems the caller can fix and 1 otherwise.
func exitCode(err error) int {
	if services.IsUserError(err) {
		return 2
	}
	return 1
}
