package main

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"geoetl/internal/metrics"
	"geoetl/internal/metrics/datadog"
	"geoetl/internal/metrics/prompush"
)

// setupMetrics installs the backend named by --metrics-backend. A backend
// that cannot be initialised is logged and metrics stay disabled; the run
// itself does not fail over it.
func (a *app) setupMetrics() error {
	backend := strings.ToLower(a.v.GetString("metrics-backend"))
	job := a.v.GetString("metrics-job")

	var (
		b   metrics.Backend
		err error
	)
	switch backend {
	case "", "none":
		a.logger.Debug("metrics: disabled")
		return nil
	case "pushgateway":
		url := a.v.GetString("pushgateway-url")
		b, err = prompush.NewBackend(job, url)
		if err == nil {
			a.logger.Info("metrics: pushgateway", "url", url, "job", job)
		}
	case "datadog":
		addr := a.v.GetString("statsd-addr")
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: append([]string{"job:" + job}, a.v.GetStringSlice("metrics-tag")...),
		})
		if err == nil {
			a.logger.Info("metrics: datadog", "addr", addr, "job", job)
		}
	default:
		return fmt.Errorf("unknown metrics backend %q (want none, pushgateway or datadog)", backend)
	}
	if err != nil {
		a.logger.Warn("metrics: backend unavailable; metrics disabled", "backend", backend, "err", err)
		return nil
	}

	metrics.SetBackend(b)
	a.closers = append(a.closers, func(context.Context) error {
		if err := metrics.Flush(); err != nil {
			return fmt.Errorf("metrics flush: %w", err)
		}
		return nil
	})
	return nil
}

// setupTracing installs a tracer provider when --trace asks for one. Spans
// go to stderr so they do not mix with command output.
func (a *app) setupTracing() error {
	switch strings.ToLower(a.v.GetString("trace")) {
	case "", "none":
		return nil
	case "stdout":
	default:
		return fmt.Errorf("unknown trace exporter %q (want none or stdout)", a.v.GetString("trace"))
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(a.stderr), stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "geoetl"))),
	)
	otel.SetTracerProvider(tp)
	a.tracer = tp.Tracer("geoetl")
	a.closers = append(a.closers, tp.Shutdown)
	return nil
}
