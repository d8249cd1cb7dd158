// Package main provides maintenance utilities for the capture database.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/tabulara/tabulara/internal/platform/config"
	"github.com/tabulara/tabulara/internal/platform/otel"
	"github.com/tabulara/tabulara/internal/tools/maintenance"
)

func main() {
	cfg, err := maintenance.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	shutdown, err := otel.Setup(ctx, "tabulara-maintenance")
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	defer func() {
		_ = shutdown(context.Background())
	}()

	if err := maintenance.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
