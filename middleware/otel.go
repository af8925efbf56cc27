package middleware

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/mcpkit/mcpkit"

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithOTelServiceName sets the service name for telemetry.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithOTelSkipMethods specifies methods to skip for tracing.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// OTel returns middleware that adds OpenTelemetry tracing and metrics: a
// server span per request, plus request/error counters and a latency
// histogram. The span context is installed on the request so the error
// mapper can attach trace and span ids to its log entries.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "mcpkit-server",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(
		instrumentationName,
		trace.WithInstrumentationVersion("1.0.0"),
	)
	meter := cfg.meterProvider.Meter(
		instrumentationName,
		metric.WithInstrumentationVersion("1.0.0"),
	)

	requestCounter, _ := meter.Int64Counter(
		"rpc.server.requests",
		metric.WithDescription("Total number of dispatched requests"),
		metric.WithUnit("{request}"),
	)
	requestDuration, _ := meter.Float64Histogram(
		"rpc.server.request.duration",
		metric.WithDescription("Duration of dispatched requests"),
		metric.WithUnit("ms"),
	)
	errorCounter, _ := meter.Int64Counter(
		"rpc.server.errors",
		metric.WithDescription("Total number of error responses"),
		metric.WithUnit("{error}"),
	)

	return func(rc *RequestContext, next Next) error {
		method := rc.Request.Method
		if cfg.skipMethods[method] {
			return next()
		}

		ctx, span := tracer.Start(rc.Context(), "rpc."+method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("rpc.method", method),
				attribute.String("rpc.transport", rc.Transport.Name),
				attribute.String("service.name", cfg.serviceName),
			),
		)
		defer span.End()

		if reqID := rc.GetString(StateRequestID); reqID != "" {
			span.SetAttributes(attribute.String("rpc.request_id", reqID))
		}

		prev := rc.WithContext(ctx)
		defer rc.WithContext(prev)

		attrs := []attribute.KeyValue{
			attribute.String("rpc.method", method),
			attribute.String("service.name", cfg.serviceName),
		}
		requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		startTime := time.Now()

		err := next()

		requestDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()),
			metric.WithAttributes(attrs...))

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		case rc.Response != nil && rc.Response.Error != nil:
			span.SetStatus(codes.Error, rc.Response.Error.Message)
			span.SetAttributes(attribute.Int("rpc.error_code", rc.Response.Error.Code))
			errorCounter.Add(ctx, 1, metric.WithAttributes(
				append(attrs, attribute.Int("rpc.error_code", rc.Response.Error.Code))...))
		default:
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
