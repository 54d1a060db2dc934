package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"geoetl/internal/ctxlog"
	"geoetl/internal/registry"
	"geoetl/internal/transformer/builtin"
)

// app holds what the subcommands share: settings, output streams, the
// action registry and the telemetry set up before the command runs.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer

	reg    *registry.Registry
	logger *slog.Logger
	tracer trace.Tracer

	// closers run after the command, in reverse order.
	closers []func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	v := viper.New()
	v.SetEnvPrefix("GEOETL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{
		v:      v,
		stdout: stdout,
		stderr: stderr,
		reg:    builtin.NewRegistry(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: noop.NewTracerProvider().Tracer("geoetl"),
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "geoetl",
		Short:         "Validate and run YAML cleaning pipelines over tabular and geospatial data",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Runs for every subcommand; cmd is the one being executed, whose
		// flag set already holds the inherited persistent flags.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("settings", "", "optional YAML/JSON/TOML file with default flag values")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("metrics-backend", "none", "metrics backend: none, pushgateway, datadog")
	pf.String("metrics-job", "geoetl", "job name reported to the metrics backend")
	pf.String("pushgateway-url", "http://localhost:9091", "Prometheus Pushgateway base URL")
	pf.String("statsd-addr", "127.0.0.1:8125", "DogStatsD address for the datadog backend")
	pf.StringSlice("metrics-tag", nil, "extra key:value tag for the datadog backend (repeatable)")
	pf.String("trace", "none", "span exporter: none or stdout")

	root.AddCommand(
		a.validateCommand(),
		a.runCommand(),
		a.actionsCommand(),
		a.sampleCommand(),
	)
	return root
}

// setup binds cmd's flags into viper, reads the optional settings file and
// initialises logging, metrics and tracing.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if path := a.v.GetString("settings"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	a.logger = newLogger(a.v.GetString("log-level"), a.v.GetString("log-format"), a.stderr)
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), a.logger))

	if err := a.setupMetrics(); err != nil {
		return err
	}
	return a.setupTracing()
}

// close runs the registered closers, newest first, with a bounded grace
// period so a stuck exporter cannot hang the process.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown", "err", err)
		}
	}
	a.closers = nil
}

// newLogger builds a slog.Logger writing to w. Unknown levels mean info and
// any format other than json means text.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
