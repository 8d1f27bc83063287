package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	pqreader "github.com/xitongsys/parquet-go/reader"

	"github.com/auditor-project/auditor/internal/sqlstore"
	"github.com/auditor-project/auditor/pkg/domain"
)

// ReadAll reads every row out of the Parquet file at path, in file order.
func ReadAll(path string) ([]domain.Record, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open file reader: %w", err)
	}
	defer fr.Close()

	pr, err := pqreader.NewParquetReader(fr, new(row), 4)
	if err != nil {
		return nil, fmt.Errorf("archive: create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	raw := make([]row, n)
	if n > 0 {
		if err := pr.Read(&raw); err != nil {
			return nil, fmt.Errorf("archive: read rows: %w", err)
		}
	}

	records := make([]domain.Record, n)
	for i, r := range raw {
		rec, err := decodeRow(r)
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}
	return records, nil
}

// CountRows returns the number of rows stored in the Parquet file at path,
// without decoding them, for the §4.5.e verification step.
func CountRows(path string) (int64, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return 0, fmt.Errorf("archive: open file reader: %w", err)
	}
	defer fr.Close()

	pr, err := pqreader.NewParquetReader(fr, new(row), 4)
	if err != nil {
		return 0, fmt.Errorf("archive: create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	return pr.GetNumRows(), nil
}

// Verify re-opens the archive file at path and compares its row count
// against the Store's count for the same [from, to) predicate (§4.5.e). It
// returns the validated count and a non-nil error on any mismatch.
func Verify(ctx context.Context, store *sqlstore.Store, path string, from, to time.Time) (int64, error) {
	fileCount, err := CountRows(path)
	if err != nil {
		return 0, err
	}
	storeCount, err := store.Count(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if fileCount != storeCount {
		return 0, fmt.Errorf("archive: verification failed for %s: file has %d rows, store has %d", path, fileCount, storeCount)
	}
	return fileCount, nil
}

func decodeRow(r row) (domain.Record, error) {
	id, err := domain.ParseValidName(r.RecordID)
	if err != nil {
		return domain.Record{}, err
	}
	rec := domain.NewRecord(id)

	var metaRaw map[string][]string
	if err := json.Unmarshal([]byte(r.Meta), &metaRaw); err != nil {
		return domain.Record{}, fmt.Errorf("archive: decode meta: %w", err)
	}
	meta := domain.NewMeta()
	for k, values := range metaRaw {
		key, err := domain.ParseValidName(k)
		if err != nil {
			return domain.Record{}, err
		}
		names := make([]domain.ValidName, len(values))
		for i, v := range values {
			n, err := domain.ParseValidName(v)
			if err != nil {
				return domain.Record{}, err
			}
			names[i] = n
		}
		meta.Set(key, names...)
	}
	rec = rec.WithMeta(meta)

	type scoreJSON struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}
	type componentJSON struct {
		Name   string      `json:"name"`
		Amount uint64      `json:"amount"`
		Scores []scoreJSON `json:"scores"`
	}
	var componentsRaw []componentJSON
	if err := json.Unmarshal([]byte(r.Components), &componentsRaw); err != nil {
		return domain.Record{}, fmt.Errorf("archive: decode components: %w", err)
	}
	components := make([]domain.Component, len(componentsRaw))
	for i, cj := range componentsRaw {
		name, err := domain.ParseValidName(cj.Name)
		if err != nil {
			return domain.Record{}, err
		}
		amount, err := domain.ParseValidAmount(int64(cj.Amount))
		if err != nil {
			return domain.Record{}, err
		}
		var scores []domain.Score
		for _, sj := range cj.Scores {
			sname, err := domain.ParseValidName(sj.Name)
			if err != nil {
				return domain.Record{}, err
			}
			sval, err := domain.ParseValidValue(sj.Value)
			if err != nil {
				return domain.Record{}, err
			}
			scores = append(scores, domain.NewScore(sname, sval))
		}
		components[i] = domain.NewComponent(name, amount, scores)
	}
	rec = rec.WithComponents(components...)

	rec = rec.WithStartTime(domain.TimestampFromUnixMilli(r.StartTime))
	rec = rec.WithStopTime(domain.TimestampFromUnixMilli(r.StopTime))

	return rec, nil
}
