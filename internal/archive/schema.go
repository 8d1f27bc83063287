// Package archive implements AUDITOR's columnar archival of stopped records
// out of the relational Store, one Parquet file per calendar month (§4.5),
// and its sibling restore path.
package archive

// row is the Parquet row schema: record_id (utf8), meta (utf8 JSON),
// components (utf8 JSON), start_time/stop_time (ms UTC), runtime (i64).
// All fields are non-null: only stopped records (start_time, stop_time,
// and runtime all set) are ever eligible for archival.
type row struct {
	RecordID   string `parquet:"name=record_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Meta       string `parquet:"name=meta, type=BYTE_ARRAY, convertedtype=UTF8"`
	Components string `parquet:"name=components, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartTime  int64  `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	StopTime   int64  `parquet:"name=stop_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Runtime    int64  `parquet:"name=runtime, type=INT64"`
}

// pageSize is the fixed row-group page size archival writes flush at
// (§4.5.c: "fixed page size (1,000,000 rows)").
const pageSize = 1_000_000

// deleteBatchSize is the row-bounded deletion chunk used once a month's
// file has been verified (§4.5.f).
const deleteBatchSize = 10
