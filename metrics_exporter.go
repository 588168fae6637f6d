package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	filesRead    metric.Int64Counter
	trialsLoaded metric.Int64Counter
)

// enableMetricExport installs a meter provider whose reader is chosen by
// OTEL_METRICS_EXPORTER.
func enableMetricExport(ctx context.Context) (func(context.Context) error, error) {
	reader, err := autoexport.NewMetricReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating metric reader: %w", err)
	}
	res, err := newResource(ctx)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	log.Infof("Metric export enabled")
	return mp.Shutdown, nil
}

// registerInstruments creates the counters on the current meter provider,
// a no-op one unless metrics are enabled.
func registerInstruments() error {
	meter := otel.Meter(tracerName)
	var err error
	filesRead, err = meter.Int64Counter("covplot.files_read",
		metric.WithDescription("Experiment logs parsed."),
		metric.WithUnit("{file}"))
	if err != nil {
		return fmt.Errorf("while creating files_read counter: %w", err)
	}
	trialsLoaded, err = meter.Int64Counter("covplot.trials_loaded",
		metric.WithDescription("Trials loaded per condition."),
		metric.WithUnit("{trial}"))
	if err != nil {
		return fmt.Errorf("while creating trials_loaded counter: %w", err)
	}
	return nil
}

func countFile(ctx context.Context, dir string) {
	filesRead.Add(ctx, 1, metric.WithAttributes(attribute.String("dir", dir)))
}

func countTrials(ctx context.Context, label string, n int) {
	trialsLoaded.Add(ctx, int64(n), metric.WithAttributes(attribute.String("group", label)))
}
