package main

import (
	"context"
	"fmt"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	log "github.com/sirupsen/logrus"
	octrace "go.opencensus.io/trace"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/bridge/opencensus"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// newResource identifies this tool, detecting the GCP platform it runs on.
func newResource(ctx context.Context, attrs ...attribute.KeyValue) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithDetectors(gcp.NewDetector()),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(append([]attribute.KeyValue{semconv.ServiceName(tracerName)}, attrs...)...),
	)
	if err != nil {
		return nil, fmt.Errorf("while detecting resource: %w", err)
	}
	return res, nil
}

// enableTraceExport turns on OpenTelemetry tracing. Spans go to Cloud Trace
// when a project is given and to the exporter named by OTEL_TRACES_EXPORTER
// otherwise.
func enableTraceExport(ctx context.Context, projectID, protocol string, sampleRate float64) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	var err error
	if projectID != "" {
		exporter, err = texporter.New(texporter.WithProjectID(projectID))
	} else {
		exporter, err = autoexport.NewSpanExporter(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("while creating span exporter: %w", err)
	}

	res, err := newResource(ctx, attribute.String("transport", protocol))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(autoprop.NewTextMapPropagator())

	// The storage library still reports OpenCensus spans.
	octrace.DefaultTracer = opencensus.NewTracer(tp.Tracer(tracerName))
	log.Infof("Trace export enabled")

	return func(ctx context.Context) error {
		if err := tp.ForceFlush(ctx); err != nil {
			return err
		}
		return tp.Shutdown(ctx)
	}, nil
}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
