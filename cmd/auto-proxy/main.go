// Package main provides the auto-proxy entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rennerdo30/auto-proxy/internal/cli"
	"github.com/rennerdo30/auto-proxy/internal/logging"
)

func main() {
	// Interrupts cancel external commands still running for a target.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCommand(cli.NewApp)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if closeErr := logging.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
