package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	pqwriter "github.com/xitongsys/parquet-go/writer"
	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/metrics"
	"github.com/auditor-project/auditor/internal/sqlstore"
	"github.com/auditor-project/auditor/pkg/domain"
)

// Compression selects the Parquet block compression codec (§4.5.b:
// "compression choice in {gzip, snappy}").
type Compression string

const (
	CompressionGzip   Compression = "gzip"
	CompressionSnappy Compression = "snappy"
)

func (c Compression) codec() parquet.CompressionCodec {
	if c == CompressionSnappy {
		return parquet.CompressionCodec_SNAPPY
	}
	return parquet.CompressionCodec_GZIP
}

// FilePath returns the archive path for the month starting at monthStart,
// under dir with the given file-name prefix: "<prefix>_<year>_<month>.parquet".
func FilePath(dir, prefix string, monthStart time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%04d_%02d.parquet", prefix, monthStart.Year(), int(monthStart.Month())))
}

// WriteMonth pages through store for stop_time in [from, to), writes every
// row to a new Parquet file at path, and returns the number of rows
// written. It does not touch the Store beyond reading; deletion happens
// only after Verify confirms the file (§4.5.e, §4.5.f).
func WriteMonth(ctx context.Context, store *sqlstore.Store, path string, from, to time.Time, compression Compression) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("archive: create directory: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("archive: open file writer: %w", err)
	}
	defer fw.Close()

	pw, err := pqwriter.NewParquetWriter(fw, new(row), 4)
	if err != nil {
		return 0, fmt.Errorf("archive: create parquet writer: %w", err)
	}
	pw.CompressionType = compression.codec()

	rows, err := store.ScanRange(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("archive: scan range: %w", err)
	}
	defer rows.Close()

	var written int64
	for rows.Next() {
		rec, err := rows.Record()
		if err != nil {
			return 0, fmt.Errorf("archive: decode row: %w", err)
		}
		r, err := encodeRow(rec)
		if err != nil {
			return 0, err
		}
		if err := pw.Write(r); err != nil {
			return 0, fmt.Errorf("archive: write row: %w", err)
		}
		written++
		if written%pageSize == 0 {
			if err := pw.Flush(true); err != nil {
				return 0, fmt.Errorf("archive: flush page: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("archive: iterate rows: %w", err)
	}

	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("archive: finalize file: %w", err)
	}

	metrics.ArchiveRowsWritten.Observe(float64(written))
	klog.InfoS("archive file written", "path", path, "rows", written)
	return written, nil
}

// encodeRow converts a domain.Record into the Parquet row shape. It assumes
// the record has been through the "runtime IS NOT NULL" archival filter, so
// StartTime/StopTime/Runtime are all non-nil.
func encodeRow(rec domain.Record) (row, error) {
	if rec.StartTime == nil || rec.StopTime == nil || rec.Runtime == nil {
		return row{}, fmt.Errorf("archive: record %s is not eligible for archival (missing start/stop/runtime)", rec.RecordID)
	}

	metaOut := map[string][]string{}
	for _, k := range rec.Meta.Keys() {
		values, _ := rec.Meta.Get(k)
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = v.String()
		}
		metaOut[k.String()] = strs
	}
	metaJSON, err := json.Marshal(metaOut)
	if err != nil {
		return row{}, err
	}

	type scoreJSON struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}
	type componentJSON struct {
		Name   string      `json:"name"`
		Amount uint64      `json:"amount"`
		Scores []scoreJSON `json:"scores"`
	}
	components := make([]componentJSON, len(rec.Components))
	for i, c := range rec.Components {
		cj := componentJSON{Name: c.Name.String(), Amount: c.Amount.Uint64()}
		for _, s := range c.Scores {
			cj.Scores = append(cj.Scores, scoreJSON{Name: s.Name.String(), Value: s.Value.Float64()})
		}
		components[i] = cj
	}
	componentsJSON, err := json.Marshal(components)
	if err != nil {
		return row{}, err
	}

	return row{
		RecordID:   rec.RecordID.String(),
		Meta:       string(metaJSON),
		Components: string(componentsJSON),
		StartTime:  rec.StartTime.UnixMilli(),
		StopTime:   rec.StopTime.UnixMilli(),
		Runtime:    *rec.Runtime,
	}, nil
}
