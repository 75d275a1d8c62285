// Package main is the entry point for the nmrcerm plugin
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"nmrcerm/internal/cli"
	"nmrcerm/internal/config"
	"nmrcerm/internal/logging"
	"nmrcerm/internal/plugin"
	"nmrcerm/internal/telemetry"
	"nmrcerm/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil {
		logging.Debugf("No .env file loaded: %v", err)
	}

	if isVersionFlag(args) {
		fmt.Fprintln(stdout, version.Get().String())
		return cli.ExitSuccess
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return cli.ExitRuntimeError
	}

	if cfg.LogDir != "" {
		if err := logging.Initialize(cfg.LogDir); err != nil {
			logging.Warnf("Failed to initialize file logging: %v", err)
		} else {
			defer logging.Close()
		}
	}
	logging.Debugf("Configuration: %s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.InitializeFromEnv(ctx, version.Get().Version)
	if err != nil {
		logging.Warnf("Failed to initialize telemetry: %v", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Warnf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	manager, err := plugin.NewManager(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize database: %v\n", err)
		return cli.ExitRuntimeError
	}
	defer manager.Close()

	return cli.Execute(ctx, args, cli.NewManagerAdapter(manager), stdout, stderr)
}

func isVersionFlag(args []string) bool {
	return len(args) == 1 && (args[0] == "--version" || args[0] == "-version")
}
