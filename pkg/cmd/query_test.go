package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditor-project/auditor/pkg/cmd/common"
	"github.com/auditor-project/auditor/pkg/domain"
)

func TestBuildQueryValues_ResolvesRelativeTimesAndLimit(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	opts := &QueryOptions{
		TimeRange: common.TimeRangeFlags{StartTime: "now-7d", StopTime: "now"},
		Limit:     common.LimitFlag{Limit: 50},
	}

	values, err := buildQueryValues(opts, now)
	require.NoError(t, err)

	assert.Equal(t, "2026-01-03T12:00:00Z", values.Get("stop_time[gte]"))
	assert.Equal(t, "2026-01-10T12:00:00Z", values.Get("stop_time[lt]"))
	assert.Equal(t, "50", values.Get("limit"))
}

func TestBuildQueryValues_RejectsFutureStartTime(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	opts := &QueryOptions{
		TimeRange: common.TimeRangeFlags{StartTime: "2030-01-01T00:00:00Z"},
	}

	_, err := buildQueryValues(opts, now)
	assert.Error(t, err)
}

func TestBuildQueryValues_SortBy(t *testing.T) {
	now := time.Now()
	opts := &QueryOptions{SortBy: "runtime", SortDir: "asc"}

	values, err := buildQueryValues(opts, now)
	require.NoError(t, err)
	assert.Equal(t, "runtime", values.Get("sort_by[asc]"))
}

func TestDecodeRecords_RoundTripsCanonicalJSON(t *testing.T) {
	rec := domain.NewRecord(domain.MustName("rec-1")).
		WithStartTime(domain.NewTimestamp(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	data, err := rec.MarshalJSON()
	require.NoError(t, err)

	body := []byte("[" + string(data) + "]")
	records, err := decodeRecords(body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].RecordID.String())
}

func TestRecordsTable_FormatsAbsentFieldsAsDash(t *testing.T) {
	rec := domain.NewRecord(domain.MustName("rec-2"))
	table := recordsTable([]domain.Record{rec})

	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, "rec-2", row[0])
	assert.Equal(t, "-", row[1])
	assert.Equal(t, "-", row[2])
	assert.Equal(t, "-", row[3])
}

func TestRunQuery_JSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/records", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cmd := &cobra.Command{}
	var out strings.Builder
	cmd.SetOut(&out)

	opts := &QueryOptions{ServerURL: srv.URL, Output: common.OutputFlags{JSON: true}}
	err := runQuery(cmd, opts)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[]")
}

func TestRunQuery_TableOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := domain.NewRecord(domain.MustName("rec-3"))
		data, _ := rec.MarshalJSON()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[" + string(data) + "]"))
	}))
	defer srv.Close()

	cmd := &cobra.Command{}
	var out strings.Builder
	cmd.SetOut(&out)

	opts := &QueryOptions{ServerURL: srv.URL}
	err := runQuery(cmd, opts)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "rec-3")
	assert.Contains(t, out.String(), "RECORD_ID")
}

func TestRunQuery_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	cmd := &cobra.Command{}
	cmd.SetOut(&strings.Builder{})

	opts := &QueryOptions{ServerURL: srv.URL}
	err := runQuery(cmd, opts)
	assert.Error(t, err)
}
