// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/logbook/lib/clock"
	"github.com/bureau-foundation/logbook/lib/codec"
	"github.com/bureau-foundation/logbook/lib/config"
	"github.com/bureau-foundation/logbook/lib/process"
	"github.com/bureau-foundation/logbook/lib/shipper"
	"github.com/bureau-foundation/logbook/lib/version"
)

// closeTimeout bounds the final delivery after input ends.
const closeTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath    string
	server        string
	project       string
	compression   string
	batchSize     int
	flushInterval time.Duration
	level         string
	structured    bool
	console       bool
	tee           bool
	keepANSI      bool
	meta          []string
	logLevel      string
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var opts options
	var showVersion bool

	flagSet := pflag.NewFlagSet("logbook-pipe", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to logbook.yaml (default: $"+config.EnvVar+")")
	flagSet.StringVar(&opts.server, "server", "", "logbook server URL (overrides shipper.server)")
	flagSet.StringVarP(&opts.project, "project", "p", "", "project id or name (overrides shipper.project)")
	flagSet.StringVar(&opts.compression, "compression", "", "bulk compression: none, zstd, or lz4 (overrides shipper.compression)")
	flagSet.IntVar(&opts.batchSize, "batch-size", 0, "entries per batch (overrides shipper.batch_size)")
	flagSet.DurationVar(&opts.flushInterval, "flush-interval", 0, "maximum wait before a batch is sent (overrides shipper.flush_interval)")
	flagSet.StringVarP(&opts.level, "level", "l", "info", "level for lines without one")
	flagSet.BoolVar(&opts.structured, "json", false, "parse JSON object lines into level, message, and metadata")
	flagSet.BoolVar(&opts.console, "console", false, "render entries to stdout instead of shipping them")
	flagSet.BoolVar(&opts.tee, "tee", false, "copy input lines to stdout")
	flagSet.BoolVar(&opts.keepANSI, "keep-ansi", false, "keep terminal color codes in shipped messages")
	flagSet.StringArrayVar(&opts.meta, "meta", nil, "key=value metadata added to every entry (repeatable)")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "level for logbook-pipe's own diagnostics")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("logbook-pipe")
		return nil
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if opts.console && opts.tee {
		return fmt.Errorf("--console and --tee both write to stdout; pick one")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defaultLevel, ok := parseLevel(opts.level)
	if !ok {
		return fmt.Errorf("--level %q: want debug, info, warn, or error", opts.level)
	}
	static, err := parseStatic(opts.meta)
	if err != nil {
		return err
	}
	diagnosticLevel, err := process.ParseLogLevel(opts.logLevel)
	if err != nil {
		return err
	}
	diagnostics := process.NewLogger(diagnosticLevel)

	transport, err := buildTransport(cfg.Shipper, opts.console, stdout)
	if err != nil {
		return err
	}

	logger, err := shipper.New(shipper.Config{
		ProjectID:     cfg.Shipper.Project,
		Transport:     transport,
		BatchSize:     cfg.Shipper.BatchSize,
		FlushInterval: cfg.Shipper.FlushInterval,
		RetryDelay:    cfg.Shipper.RetryDelay,
		Clock:         clock.Real(),
		Logger:        diagnostics.With("component", "shipper"),
	})
	if err != nil {
		return err
	}

	var tee io.Writer
	if opts.tee {
		tee = stdout
	}
	parser := lineParser{
		defaultLevel: defaultLevel,
		structured:   opts.structured,
		static:       static,
		keepANSI:     opts.keepANSI,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The read blocks on stdin, so it runs apart from the signal wait.
	type pumpResult struct {
		count int
		err   error
	}
	done := make(chan pumpResult, 1)
	go func() {
		count, err := pump(stdin, tee, logger, parser)
		done <- pumpResult{count: count, err: err}
	}()

	var pumpErr error
	select {
	case result := <-done:
		pumpErr = result.err
		diagnostics.Debug("input finished", "lines", result.count)
	case <-ctx.Done():
		diagnostics.Info("interrupted, flushing queued logs")
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := logger.Close(closeCtx); err != nil {
		return err
	}
	reportRetryStats(diagnostics, logger.RetryStats())
	return pumpErr
}

// loadConfig resolves the config file and layers flag overrides on top.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.server != "" {
		cfg.Shipper.Server = opts.server
	}
	if opts.project != "" {
		cfg.Shipper.Project = opts.project
	}
	if opts.compression != "" {
		cfg.Shipper.Compression = opts.compression
	}
	if opts.batchSize != 0 {
		cfg.Shipper.BatchSize = opts.batchSize
	}
	if opts.flushInterval != 0 {
		cfg.Shipper.FlushInterval = opts.flushInterval
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Shipper.Project == "" {
		return nil, fmt.Errorf("no project: set shipper.project or pass --project")
	}
	return cfg, nil
}

func buildTransport(cfg config.ShipperConfig, console bool, stdout io.Writer) (shipper.Transport, error) {
	if console {
		return shipper.NewConsoleTransport(stdout), nil
	}
	compression, err := codec.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return shipper.NewHTTPTransport(shipper.HTTPConfig{
		BaseURL:     cfg.Server,
		Compression: compression,
		UserAgent:   version.UserAgent("logbook-pipe"),
	})
}

func reportRetryStats(logger *slog.Logger, stats shipper.RetryStats) {
	if stats.Dropped == 0 {
		return
	}
	logger.Warn("logs dropped after retry",
		"dropped", stats.Dropped,
		"retried", stats.Retried,
		"enqueued", stats.Enqueued,
	)
}

var _ entryLogger = (*shipper.Logger)(nil)
