// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"

	"github.com/apex/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/staranto/xxii/internal/config"
)

// ServiceName is reported as service.name on exported spans.
const ServiceName = "xxii"

// Setup initialises OpenTelemetry tracing.
//
// Tracing is opt-in: when XXII_OTEL_ENDPOINT is empty or XXII_OTEL_ENABLED is
// false, Setup returns a no-op shutdown function and the global provider is
// left alone (spans are dropped).
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, env config.Environment) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if !env.OtelEnabled || env.OtelEndpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(env.OtelEndpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	log.Debugf("exporting traces to %s", env.OtelEndpoint)

	return tp.Shutdown, nil
}
