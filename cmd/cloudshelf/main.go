package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cloudshelf/internal/cli"
)

func main() {
	// Cancel in-flight backend calls on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
