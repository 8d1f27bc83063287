package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/apiserver"
	"github.com/auditor-project/auditor/internal/archive"
	"github.com/auditor-project/auditor/internal/config"
	"github.com/auditor-project/auditor/internal/dbmetrics"
	"github.com/auditor-project/auditor/internal/events"
	"github.com/auditor-project/auditor/internal/sqlstore"
)

// ServeOptions configures the serve subcommand.
type ServeOptions struct {
	ConfigPath string
	cfg        *config.Config
}

// NewServeOptions creates options seeded with config defaults.
func NewServeOptions() *ServeOptions {
	return &ServeOptions{cfg: config.Default()}
}

func (o *ServeOptions) AddFlags(fs *cobra.Command) {
	fs.Flags().StringVar(&o.ConfigPath, "config", "", "Path to a YAML configuration file (§6.4)")
	o.cfg.AddFlags(fs.Flags())
}

// Complete loads the configuration file, if any. The loaded file replaces
// the whole configuration, so flag values given alongside --config are not
// applied on top of it.
func (o *ServeOptions) Complete() error {
	if o.ConfigPath == "" {
		return nil
	}
	loaded, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	o.cfg = loaded
	return nil
}

// Validate ensures the configuration is runnable.
func (o *ServeOptions) Validate() error {
	return o.cfg.Validate()
}

// NewServeCommand creates the serve subcommand that starts the HTTP API
// server, the archival scheduler, and (if configured) the database-metrics
// reporter and ingest-notification publisher.
func NewServeCommand() *cobra.Command {
	o := NewServeOptions()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the AUDITOR server",
		Long: `Start the HTTP API server (§6.1), applying pending database
migrations first, and run the archival scheduler (§4.5) and database-metrics
reporter (§6.4) alongside it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return Run(cmd.Context(), o.cfg)
		},
	}

	o.AddFlags(cmd)
	return cmd
}

// Run wires up and runs every long-lived AUDITOR component until ctx is
// canceled or a fatal error occurs.
func Run(ctx context.Context, cfg *config.Config) error {
	dsn := cfg.Database.DSN()

	if err := sqlstore.Migrate(dsn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store, err := sqlstore.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	publisher, err := events.New(events.Config{URL: cfg.EventsURL})
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	defer publisher.Close()

	server := apiserver.New(store, apiserver.Options{
		Addr:                    fmt.Sprintf("%s:%d", cfg.Application.Addr, cfg.Application.Port),
		IgnoreRecordExistsError: cfg.IgnoreRecordExistsError,
		Events:                  publisher,
	})

	scheduler := archive.NewScheduler(store, archive.Options{
		Directory:           cfg.Archival.ArchivePath,
		FilePrefix:          cfg.Archival.ArchiveFilePrefix,
		OlderThanMonths:     cfg.Archival.ArchiveOlderThanMonths,
		Compression:         compressionFromConfig(cfg.Archival.CompressionType),
		Schedule:            cfg.Archival.CronSchedule,
		StrictWindowAdvance: false,
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("archive scheduler: %w", err)
	}
	defer scheduler.Stop()

	reporter := dbmetrics.New(store, dbmetrics.Options{
		Frequency:   cfg.Metrics.Frequency(),
		ReportTotal: cfg.Metrics.ReportTotal(),
		Dimensions:  metricDimensions(cfg.Metrics),
	})
	go func() {
		if err := reporter.Run(ctx); err != nil {
			klog.ErrorS(err, "database metrics reporter stopped")
		}
	}()
	defer reporter.Stop()

	metricsServer := &http.Server{
		Addr:    metricsAddr(cfg),
		Handler: promhttp.Handler(),
	}
	go func() {
		klog.InfoS("metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "metrics server stopped unexpectedly")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		klog.InfoS("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Run(ctx) }()

	klog.InfoS("AUDITOR server started", "addr", cfg.Application.Addr, "port", cfg.Application.Port)

	err = <-serveErr

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)

	return err
}

func compressionFromConfig(v string) archive.Compression {
	switch v {
	case "gzip":
		return archive.CompressionGzip
	default:
		return archive.CompressionSnappy
	}
}

func metricDimensions(m config.MetricsDatabase) map[dbmetrics.Dimension]string {
	dims := map[dbmetrics.Dimension]string{}
	if m.MetaKeySite != "" {
		dims[dbmetrics.DimensionSite] = m.MetaKeySite
	}
	if m.MetaKeyGroup != "" {
		dims[dbmetrics.DimensionGroup] = m.MetaKeyGroup
	}
	if m.MetaKeyUser != "" {
		dims[dbmetrics.DimensionUser] = m.MetaKeyUser
	}
	return dims
}

func metricsAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Application.Addr, cfg.Application.Port+1)
}
