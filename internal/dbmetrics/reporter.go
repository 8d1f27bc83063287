// Package dbmetrics periodically snapshots store-wide record counts into
// Prometheus gauges, driven by the metrics_database.* configuration keys
// (§6.4). It is a pure observability add-on: nothing else in AUDITOR reads
// its output, and disabling it changes no other behavior.
package dbmetrics

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/metrics"
)

// Dimension names one of RecordCountPerSite, RecordCountPerGroup,
// RecordCountPerUser.
type Dimension string

const (
	DimensionSite  Dimension = "site"
	DimensionGroup Dimension = "group"
	DimensionUser  Dimension = "user"
)

// countingStore is the subset of *sqlstore.Store the reporter depends on.
type countingStore interface {
	CountAll(ctx context.Context) (int64, error)
	CountGroupedByMeta(ctx context.Context, metaKey string) (map[string]int64, error)
}

// Options configures the Reporter (metrics_database.*, §6.4).
type Options struct {
	// Frequency is metrics_database.frequency_seconds. Defaults to 60s.
	Frequency time.Duration

	// ReportTotal enables RecordCount: the store-wide row count.
	ReportTotal bool

	// Dimensions enables RecordCountPer{Site,Group,User}, one grouped
	// gauge per meta key named here.
	Dimensions map[Dimension]string // dimension -> meta_key_{site,group,user}
}

func (o Options) withDefaults() Options {
	if o.Frequency <= 0 {
		o.Frequency = 60 * time.Second
	}
	return o
}

// Reporter runs the periodic snapshot loop.
type Reporter struct {
	store countingStore
	opts  Options
	stop  chan struct{}
	done  chan struct{}
}

// New builds a Reporter bound to store. Call Run to start the loop.
func New(store countingStore, opts Options) *Reporter {
	return &Reporter{
		store: store,
		opts:  opts.withDefaults(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run blocks, taking a snapshot immediately and then on every tick of
// opts.Frequency, until ctx is canceled or Stop is called.
func (r *Reporter) Run(ctx context.Context) error {
	defer close(r.done)

	ticker := time.NewTicker(r.opts.Frequency)
	defer ticker.Stop()

	r.snapshot(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		case <-ticker.C:
			r.snapshot(ctx)
		}
	}
}

// Stop halts the loop and waits for the in-flight snapshot, if any, to
// finish.
func (r *Reporter) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reporter) snapshot(ctx context.Context) {
	if r.opts.ReportTotal {
		n, err := r.store.CountAll(ctx)
		if err != nil {
			klog.ErrorS(err, "dbmetrics: record count snapshot failed")
		} else {
			metrics.DatabaseRecordCount.Set(float64(n))
		}
	}

	for dim, metaKey := range r.opts.Dimensions {
		if metaKey == "" {
			continue
		}
		counts, err := r.store.CountGroupedByMeta(ctx, metaKey)
		if err != nil {
			klog.ErrorS(err, "dbmetrics: grouped count snapshot failed", "dimension", dim)
			continue
		}
		for value, n := range counts {
			metrics.DatabaseRecordCountByMeta.WithLabelValues(string(dim), value).Set(float64(n))
		}
	}
}
