package archive

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/metrics"
	"github.com/auditor-project/auditor/internal/sqlstore"
)

// Options configures the archival scheduler (§4.5, §6.4).
type Options struct {
	// Directory is the root directory archive files are written under.
	Directory string

	// FilePrefix names archive files: "<prefix>_<year>_<month>.parquet".
	FilePrefix string

	// OlderThanMonths is archive_older_than_months: a month is eligible
	// once the current calendar time has advanced this many months past it.
	OlderThanMonths int

	// Compression selects the Parquet block codec.
	Compression Compression

	// Schedule is the cron expression selecting when the archival task fires.
	Schedule string

	// StrictWindowAdvance, when true, aborts the whole run (rather than
	// skipping just that month and continuing) the first time a month's
	// verify-then-delete step fails, so a silent gap cannot open up further
	// back in the timeline than the first failure.
	StrictWindowAdvance bool
}

// Scheduler drives the cron-triggered archival task. Only one run executes
// at a time; an overlapping tick is suppressed, not queued (§4.5).
type Scheduler struct {
	store   *sqlstore.Store
	opts    Options
	running atomic.Bool
	cron    *cron.Cron
}

// NewScheduler constructs a Scheduler bound to store.
func NewScheduler(store *sqlstore.Store, opts Options) *Scheduler {
	return &Scheduler{store: store, opts: opts, cron: cron.New()}
}

// Start registers the cron schedule and runs one archival pass immediately,
// per §4.5's "An initial run occurs at service start."
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.opts.Schedule, func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("archive: invalid schedule %q: %w", s.opts.Schedule, err)
	}
	s.cron.Start()

	go s.tick(ctx)
	return nil
}

// Stop halts the cron scheduler and waits for any cron-triggered tick that
// is already executing to return; such a tick runs the whole multi-month
// walk. The initial run launched by Start is not waited for.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.ArchiveSkippedTotal.Inc()
		klog.InfoS("archival tick skipped: a run is already in progress")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	err := s.Run(ctx)
	metrics.ArchiveRunDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ArchiveRunsTotal.WithLabelValues("error").Inc()
		klog.ErrorS(err, "archival run failed")
		return
	}
	metrics.ArchiveRunsTotal.WithLabelValues("ok").Inc()
}

// Run performs one full archival pass: walk forward one calendar month at a
// time from the Store's oldest stop_time, archiving every eligible month
// (§4.5, steps 1-4).
func (s *Scheduler) Run(ctx context.Context) error {
	oldest, err := s.store.OldestStopTime(ctx)
	if err != nil {
		return fmt.Errorf("archive: oldest stop_time: %w", err)
	}
	if oldest == nil {
		klog.V(3).InfoS("archival run: store has no stopped records, nothing to do")
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, -s.opts.OlderThanMonths, 0)
	window := monthStart(oldest.Time())

	for {
		next := window.AddDate(0, 1, 0)
		if next.After(cutoff) {
			break
		}

		if err := s.archiveMonth(ctx, window, next); err != nil {
			if s.opts.StrictWindowAdvance {
				return fmt.Errorf("archive: month %s: %w", window.Format("2006-01"), err)
			}
			klog.ErrorS(err, "archive: month failed, continuing to next month", "month", window.Format("2006-01"))
		}

		window = next
	}
	return nil
}

func (s *Scheduler) archiveMonth(ctx context.Context, from, to time.Time) error {
	path := FilePath(s.opts.Directory, s.opts.FilePrefix, from)

	expectedCount, err := s.store.Count(ctx, from, to)
	if err != nil {
		return err
	}
	if expectedCount == 0 {
		return nil
	}

	written, err := WriteMonth(ctx, s.store, path, from, to, s.opts.Compression)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if written != expectedCount {
		return fmt.Errorf("wrote %d rows but store had %d at write time (concurrent ingest into an archiving window)", written, expectedCount)
	}

	verifiedCount, err := Verify(ctx, s.store, path, from, to)
	if err != nil {
		klog.ErrorS(err, "archive verification failed, file left on disk", "path", path)
		return err
	}

	if err := s.store.DeleteRange(ctx, from, to, verifiedCount, deleteBatchSize); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	klog.InfoS("archived month", "path", path, "rows", verifiedCount)
	return nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
