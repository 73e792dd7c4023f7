// Command catalogctl administers the book catalogue index.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bookcatalogue/internal/platform/engines"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root, a := newRootCmd(engines.Open)
	err := execute(ctx, root, a)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
