package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"cloud.google.com/go/profiler"
	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/wiser-x/exploration-plots/dataset"
	"github.com/wiser-x/exploration-plots/util"
)

const tracerName = "covplot"

// app holds what the global flags set up for every command.
type app struct {
	storage  *storage.Client
	loader   *dataset.Loader
	shutdown []func(context.Context) error
}

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		Usage:   "Log level: debug, info, warn or error.",
		EnvVars: []string{"COVPLOT_LOG_LEVEL"},
	},
	&cli.BoolFlag{
		Name:    "enable-cloud-profiler",
		Usage:   "Enable cloud profiler.",
		EnvVars: []string{"COVPLOT_ENABLE_CLOUD_PROFILER"},
	},
	&cli.StringFlag{
		Name:    "project-id",
		Usage:   "Project ID for profiler and Cloud Trace; only required when running outside of GCP.",
		EnvVars: []string{"COVPLOT_PROJECT_ID"},
	},
	&cli.StringFlag{
		Name:    "profile-version",
		Value:   "original",
		Usage:   "Version to run profiler with.",
		EnvVars: []string{"COVPLOT_PROFILE_VERSION"},
	},
	&cli.StringFlag{
		Name:    "client-protocol",
		Value:   "http",
		Usage:   "Cloud Storage protocol for gs:// inputs and outputs: http or grpc.",
		EnvVars: []string{"COVPLOT_CLIENT_PROTOCOL"},
	},
	&cli.StringFlag{
		Name:    "access-token",
		Usage:   "OAuth2 access token for Cloud Storage instead of default credentials.",
		EnvVars: []string{"COVPLOT_ACCESS_TOKEN"},
	},
	&cli.BoolFlag{
		Name:    "enable-tracing",
		Usage:   "Export traces of log loading and rendering.",
		EnvVars: []string{"COVPLOT_ENABLE_TRACING"},
	},
	&cli.Float64Flag{
		Name:    "trace-sample-rate",
		Value:   1,
		Usage:   "Fraction of traces exported.",
		EnvVars: []string{"COVPLOT_TRACE_SAMPLE_RATE"},
	},
	&cli.BoolFlag{
		Name:    "enable-metrics",
		Usage:   "Export counters of files read and trials loaded.",
		EnvVars: []string{"COVPLOT_ENABLE_METRICS"},
	},
}

func (a *app) before(c *cli.Context) error {
	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if c.Bool("enable-cloud-profiler") {
		if err := profiler.Start(profiler.Config{
			Service:        tracerName,
			ServiceVersion: c.String("profile-version"),
			ProjectID:      c.String("project-id"),
			DebugLogging:   level >= log.DebugLevel,
		}); err != nil {
			return fmt.Errorf("while starting profiler: %w", err)
		}
	}

	if c.Bool("enable-tracing") {
		shutdown, err := enableTraceExport(c.Context, c.String("project-id"), c.String("client-protocol"), c.Float64("trace-sample-rate"))
		if err != nil {
			return err
		}
		a.shutdown = append(a.shutdown, shutdown)
	}
	if c.Bool("enable-metrics") {
		shutdown, err := enableMetricExport(c.Context)
		if err != nil {
			return err
		}
		a.shutdown = append(a.shutdown, shutdown)
	}
	if err := registerInstruments(); err != nil {
		return err
	}

	a.loader = &dataset.Loader{OnFile: countFile}
	return nil
}

// storageClient creates the Cloud Storage client on first use so that
// purely local runs never look for credentials.
func (a *app) storageClient(c *cli.Context) (*storage.Client, error) {
	if a.storage != nil {
		return a.storage, nil
	}
	client, err := util.NewStorageClient(c.Context, util.StorageOptions{
		Protocol:    c.String("client-protocol"),
		AccessToken: c.String("access-token"),
	})
	if err != nil {
		return nil, err
	}
	a.storage = client
	a.loader.Storage = client
	return client, nil
}

func (a *app) after(c *cli.Context) error {
	ctx := context.Background()
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			log.Warnf("while shutting down telemetry: %v", err)
		}
	}
	if a.storage != nil {
		return a.storage.Close()
	}
	return nil
}

func newApp() *cli.App {
	a := &app{}
	return &cli.App{
		Name:     "covplot",
		Usage:    "plot coverage and overlap of multi-robot exploration runs",
		Flags:    globalFlags,
		Before:   a.before,
		After:    a.after,
		Commands: a.commands(),

		// Labels may contain commas.
		DisableSliceFlagSeparator: true,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
