// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/logbook/lib/clock"
	"github.com/bureau-foundation/logbook/lib/config"
	"github.com/bureau-foundation/logbook/lib/httpapi"
	"github.com/bureau-foundation/logbook/lib/logstore"
	"github.com/bureau-foundation/logbook/lib/process"
	"github.com/bureau-foundation/logbook/lib/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath string
	listen     string
	database   string
	poolSize   int
	timezone   string
	logLevel   string
}

func run(args []string) error {
	var opts options
	var showVersion bool

	flagSet := pflag.NewFlagSet("logbook-server", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to logbook.yaml (default: $"+config.EnvVar+")")
	flagSet.StringVar(&opts.listen, "listen", "", "HTTP listen address (overrides server.listen)")
	flagSet.StringVar(&opts.database, "db", "", "SQLite database path (overrides server.database.path)")
	flagSet.IntVar(&opts.poolSize, "pool-size", 0, "SQLite connection pool size (overrides server.database.pool_size)")
	flagSet.StringVar(&opts.timezone, "timezone", "", "IANA zone for the logs-today metric (overrides server.timezone)")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn, or error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("logbook-server")
		return nil
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	level, err := process.ParseLogLevel(opts.logLevel)
	if err != nil {
		return err
	}
	location, err := cfg.Server.Location()
	if err != nil {
		return err
	}

	logger := process.NewLogger(level)

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	store, err := logstore.OpenStore(logstore.StoreConfig{
		Path:     cfg.Server.Database.Path,
		PoolSize: cfg.Server.Database.PoolSize,
		Clock:    clock.Real(),
		Logger:   logger.With("component", "logstore"),
		Location: location,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	api, err := httpapi.New(httpapi.Config{
		Store:          store,
		Logger:         logger.With("component", "httpapi"),
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Version:        version.Info(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("logbook server starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"database", cfg.Server.Database.Path,
		"timezone", location.String(),
	)

	server := newHTTPServer(cfg.Server.Listen, api.Handler(), cfg.Server.RequestTimeout, logger)
	return server.Serve(ctx)
}

// loadConfig resolves the config file and layers flag overrides on top.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.listen != "" {
		cfg.Server.Listen = opts.listen
	}
	if opts.database != "" {
		cfg.Server.Database.Path = opts.database
	}
	if opts.poolSize != 0 {
		cfg.Server.Database.PoolSize = opts.poolSize
	}
	if opts.timezone != "" {
		cfg.Server.Timezone = opts.timezone
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
