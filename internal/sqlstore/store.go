// Package sqlstore is AUDITOR's relational Store (§4.2): a PostgreSQL-backed
// implementation reached through pgx/v5, chosen over the teacher's
// ClickHouse store because §4.2/§4.5 require true per-row transactional
// insert/update/delete with a verify-then-delete invariant that an
// append-oriented column store cannot host.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/metrics"
	"github.com/auditor-project/auditor/pkg/domain"
)

var tracer = otel.Tracer("auditor-sqlstore")

// Store is a PostgreSQL-backed implementation of AUDITOR's relational
// storage layer.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pgxpool against dsn. Callers are expected to have run
// Migrate(dsn) first (cmd/auditor does this at startup).
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageErr("ping", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// Insert adds a single new record. It returns ErrRecordExists if record_id
// is already present (§4.2).
func (s *Store) Insert(ctx context.Context, r domain.Record) error {
	ctx, span := tracer.Start(ctx, "sqlstore.insert", trace.WithAttributes(
		attribute.String("db.operation", "INSERT"),
	))
	defer span.End()

	start := time.Now()
	err := s.insertOne(ctx, s.pool, r)
	metrics.StoreOperationDuration.WithLabelValues("insert").Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		metrics.StoreOperationsTotal.WithLabelValues("insert", outcomeLabel(err)).Inc()
		return err
	}
	metrics.StoreOperationsTotal.WithLabelValues("insert", "ok").Inc()
	return nil
}

// BulkInsert adds many records inside a single transaction. Any one
// conflicting record_id aborts the whole batch with ErrRecordExists and
// inserts none of them (§4.2's bulk_add-is-atomic contract).
func (s *Store) BulkInsert(ctx context.Context, records []domain.Record) error {
	ctx, span := tracer.Start(ctx, "sqlstore.bulk_insert", trace.WithAttributes(
		attribute.Int("db.records", len(records)),
	))
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr("bulk_insert.begin", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if err := s.insertOne(ctx, tx, r); err != nil {
			span.RecordError(err)
			metrics.StoreOperationsTotal.WithLabelValues("bulk_insert", outcomeLabel(err)).Inc()
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("bulk_insert.commit", err)
	}

	metrics.StoreOperationDuration.WithLabelValues("bulk_insert").Observe(time.Since(start).Seconds())
	metrics.StoreOperationsTotal.WithLabelValues("bulk_insert", "ok").Inc()
	klog.V(3).InfoS("bulk insert committed", "records", len(records))
	return nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, letting insertOne
// run either directly against the pool (Insert) or inside a transaction
// (BulkInsert).
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) insertOne(ctx context.Context, q execer, r domain.Record) error {
	metaJSON, err := encodeMeta(r.Meta)
	if err != nil {
		return err
	}
	componentsJSON, err := encodeComponents(r.Components)
	if err != nil {
		return err
	}

	var startTime, stopTime *time.Time
	if r.StartTime != nil {
		t := r.StartTime.Time()
		startTime = &t
	}
	if r.StopTime != nil {
		t := r.StopTime.Time()
		stopTime = &t
	}

	_, err = q.Exec(ctx, `
		INSERT INTO records (record_id, start_time, stop_time, runtime, meta, components)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.RecordID.String(), startTime, stopTime, r.Runtime, metaJSON, componentsJSON)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", r.RecordID.String(), ErrRecordExists)
		}
		return storageErr("insert", err)
	}
	return nil
}

// Update closes out an existing record by setting its stop_time, matching
// on record_id alone (§3.5/§4.2): start_time, meta, and components are
// never touched. runtime is recomputed server-side as floor(stop_time -
// start_time), the stored start_time being read inside the same
// transaction that writes the new stop_time. It returns ErrUnknownRecord
// if record_id is not present.
func (s *Store) Update(ctx context.Context, r domain.Record) error {
	ctx, span := tracer.Start(ctx, "sqlstore.update")
	defer span.End()

	if r.StopTime == nil {
		return fmt.Errorf("%s: stop_time is required to update a record", r.RecordID.String())
	}

	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr("update.begin", err)
	}
	defer tx.Rollback(ctx)

	var startTime time.Time
	err = tx.QueryRow(ctx, `SELECT start_time FROM records WHERE record_id = $1 FOR UPDATE`, r.RecordID.String()).Scan(&startTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.StoreOperationsTotal.WithLabelValues("update", "unknown_record").Inc()
			return fmt.Errorf("%s: %w", r.RecordID.String(), ErrUnknownRecord)
		}
		span.RecordError(err)
		metrics.StoreOperationsTotal.WithLabelValues("update", "error").Inc()
		return storageErr("update.select", err)
	}

	stopTime := r.StopTime.Time()
	runtime := int64(stopTime.Sub(startTime).Seconds())

	tag, err := tx.Exec(ctx, `
		UPDATE records
		SET stop_time = $2, runtime = $3, updated_at = now()
		WHERE record_id = $1
	`, r.RecordID.String(), stopTime, runtime)
	if err != nil {
		span.RecordError(err)
		metrics.StoreOperationsTotal.WithLabelValues("update", "error").Inc()
		return storageErr("update", err)
	}
	if tag.RowsAffected() == 0 {
		metrics.StoreOperationsTotal.WithLabelValues("update", "unknown_record").Inc()
		return fmt.Errorf("%s: %w", r.RecordID.String(), ErrUnknownRecord)
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("update.commit", err)
	}

	metrics.StoreOperationDuration.WithLabelValues("update").Observe(time.Since(start).Seconds())
	metrics.StoreOperationsTotal.WithLabelValues("update", "ok").Inc()
	return nil
}

// OldestStopTime returns the stop_time of the oldest record with a non-null
// stop_time, or (nil, nil) if the store is empty of stopped records. The
// archival scheduler (§4.5) uses this as the left edge of its walk.
func (s *Store) OldestStopTime(ctx context.Context) (*domain.Timestamp, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MIN(stop_time) FROM records WHERE stop_time IS NOT NULL`).Scan(&t)
	if err != nil {
		return nil, storageErr("oldest_stop_time", err)
	}
	if t == nil {
		return nil, nil
	}
	ts := domain.NewTimestamp(*t)
	return &ts, nil
}

// Count returns the number of records with stop_time in [from, to).
func (s *Store) Count(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM records WHERE stop_time >= $1 AND stop_time < $2
	`, from, to).Scan(&n)
	if err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// CountAll returns the total number of records in the store, independent of
// stop_time (metrics_database's RecordCount, §6.4).
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, storageErr("count_all", err)
	}
	return n, nil
}

// CountGroupedByMeta returns the number of records carrying each distinct
// value of meta key metaKey, for metrics_database's RecordCountPer{Site,
// Group,User} (§6.4). A record with no entry for metaKey, or with more than
// one value under it, is excluded from every bucket: the grouping metric is
// only meaningful for single-valued identity keys.
func (s *Store) CountGroupedByMeta(ctx context.Context, metaKey string) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT meta->$1->>0 AS value, COUNT(*)
		FROM records
		WHERE jsonb_typeof(meta->$1) = 'array' AND jsonb_array_length(meta->$1) = 1
		GROUP BY value
	`, metaKey)
	if err != nil {
		return nil, storageErr("count_grouped_by_meta", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var value string
		var n int64
		if err := rows.Scan(&value, &n); err != nil {
			return nil, storageErr("count_grouped_by_meta", err)
		}
		out[value] = n
	}
	return out, rows.Err()
}

// DeleteRange removes rows with stop_time in [from, to) in small
// row-bounded statements, verifying after each batch that the running total
// matches expectedCount and aborting (without having deleted more than
// expectedCount) if it ever runs ahead (§4.5.f).
func (s *Store) DeleteRange(ctx context.Context, from, to time.Time, expectedCount int64, batchSize int) error {
	ctx, span := tracer.Start(ctx, "sqlstore.delete_range", trace.WithAttributes(
		attribute.Int64("expected_count", expectedCount),
	))
	defer span.End()

	var deleted int64
	for deleted < expectedCount {
		limit := int64(batchSize)
		if remaining := expectedCount - deleted; remaining < limit {
			limit = remaining
		}
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM records
			WHERE seq IN (
				SELECT seq FROM records
				WHERE stop_time >= $1 AND stop_time < $2
				ORDER BY seq
				LIMIT $3
			)
		`, from, to, limit)
		if err != nil {
			span.RecordError(err)
			return storageErr("delete_range", err)
		}
		n := tag.RowsAffected()
		if n == 0 {
			break
		}
		deleted += n
		if deleted > expectedCount {
			return fmt.Errorf("sqlstore: delete_range over-deleted: wanted %d, deleted %d", expectedCount, deleted)
		}
	}
	if deleted != expectedCount {
		return fmt.Errorf("sqlstore: delete_range deleted %d rows, expected %d", deleted, expectedCount)
	}
	klog.InfoS("archive window deleted", "from", from, "to", to, "rows", deleted)
	return nil
}

// Rows is a forward-only cursor over a Scan result, modeled on pgx.Rows so
// the apiserver layer can stream records out without buffering the whole
// result set (§4.4's streaming contract).
type Rows struct {
	rows pgx.Rows
}

// Next advances to the next row. It must be called before the first Record.
func (r *Rows) Next() bool { return r.rows.Next() }

// Err returns any error encountered during iteration.
func (r *Rows) Err() error { return r.rows.Err() }

// Close releases the underlying connection. Safe to call multiple times.
func (r *Rows) Close() { r.rows.Close() }

// Record decodes the current row into a domain.Record.
func (r *Rows) Record() (domain.Record, error) {
	var (
		recordID             string
		startTime, stopTime  *time.Time
		runtime              *int64
		metaJSON, compJSON   []byte
	)
	if err := r.rows.Scan(&recordID, &startTime, &stopTime, &runtime, &metaJSON, &compJSON); err != nil {
		return domain.Record{}, storageErr("scan", err)
	}

	id, err := domain.ParseValidName(recordID)
	if err != nil {
		return domain.Record{}, err
	}
	out := domain.NewRecord(id)

	meta, err := decodeMeta(metaJSON)
	if err != nil {
		return domain.Record{}, err
	}
	out = out.WithMeta(meta)

	components, err := decodeComponents(compJSON)
	if err != nil {
		return domain.Record{}, err
	}
	out = out.WithComponents(components...)

	if startTime != nil {
		out = out.WithStartTime(domain.NewTimestamp(*startTime))
	}
	if stopTime != nil {
		out = out.WithStopTime(domain.NewTimestamp(*stopTime))
	}
	out.Runtime = runtime

	return out, nil
}

// ScanRange streams every record with stop_time in [from, to), ordered by
// seq (insertion order), for the archival writer's per-month paging (§4.5.c).
// Unlike Scan, it is not driven by a compiled query: the archival window is
// the only predicate, and row order must be the Store's own internal order.
func (s *Store) ScanRange(ctx context.Context, from, to time.Time) (*Rows, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.scan_range")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT record_id, start_time, stop_time, runtime, meta, components
		FROM records
		WHERE stop_time >= $1 AND stop_time < $2
		ORDER BY seq ASC
	`, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("scan_range", err)
	}
	return &Rows{rows: rows}, nil
}

// Scan executes a compiled ScanPlan and returns a streaming Rows cursor.
// Callers must Close it.
func (s *Store) Scan(ctx context.Context, plan ScanPlan) (*Rows, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.scan", trace.WithAttributes(
		attribute.String("db.operation", "SELECT"),
	))
	defer span.End()

	query := `SELECT record_id, start_time, stop_time, runtime, meta, components FROM records`
	if plan.Where != "" {
		query += " WHERE " + plan.Where
	}
	query += " ORDER BY " + plan.OrderBy + ", seq ASC"
	args := plan.Args
	if plan.Limit != nil {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, *plan.Limit)
	}

	klog.V(4).InfoS("compiled scan", "query", query, "args", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, storageErr("scan", err)
	}
	return &Rows{rows: rows}, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), the signal that an Insert/BulkInsert raced
// with an existing record_id.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	default:
		return "error"
	}
}
