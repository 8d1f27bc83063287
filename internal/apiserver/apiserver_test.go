package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditor-project/auditor/internal/sqlstore"
	"github.com/auditor-project/auditor/pkg/domain"
)

// fakeStore is an in-memory recordStore used to exercise the HTTP layer
// without a real Postgres connection.
type fakeStore struct {
	records map[string]domain.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]domain.Record{}}
}

func (f *fakeStore) Insert(ctx context.Context, r domain.Record) error {
	if _, ok := f.records[r.RecordID.String()]; ok {
		return sqlstore.ErrRecordExists
	}
	f.records[r.RecordID.String()] = r
	return nil
}

func (f *fakeStore) BulkInsert(ctx context.Context, records []domain.Record) error {
	for _, r := range records {
		if _, ok := f.records[r.RecordID.String()]; ok {
			return sqlstore.ErrRecordExists
		}
	}
	for _, r := range records {
		f.records[r.RecordID.String()] = r
	}
	return nil
}

// Update mirrors sqlstore.Store.Update's contract: only stop_time (and the
// runtime it derives from the stored start_time) changes; meta, components,
// and start_time are left exactly as inserted.
func (f *fakeStore) Update(ctx context.Context, r domain.Record) error {
	existing, ok := f.records[r.RecordID.String()]
	if !ok {
		return sqlstore.ErrUnknownRecord
	}
	f.records[r.RecordID.String()] = existing.WithStopTime(*r.StopTime)
	return nil
}

func (f *fakeStore) Scan(ctx context.Context, plan sqlstore.ScanPlan) (*sqlstore.Rows, error) {
	// The fake store ignores the compiled plan and returns no cursor at all;
	// none of these handler tests lists records through it (compilation
	// itself is covered by internal/query's tests).
	return nil, nil
}

func testRecordJSON(id string) []byte {
	rec := domain.NewRecord(domain.MustName(id))
	data, _ := rec.MarshalJSON()
	return data
}

// testUpdateJSON builds the minimal update body §4.2/seed S2 describes:
// record_id plus stop_time, nothing else.
func testUpdateJSON(id string, stopTime time.Time) []byte {
	rec := domain.NewRecord(domain.MustName(id)).WithStopTime(domain.NewTimestamp(stopTime))
	data, _ := rec.MarshalJSON()
	return data
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	s := New(newFakeStore(), Options{})
	req := httptest.NewRequest(http.MethodGet, "/health_check", nil)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestCreateRecord_Success(t *testing.T) {
	t.Parallel()

	s := New(newFakeStore(), Options{})
	req := httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader(testRecordJSON("rec-1")))
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateRecord_Conflict(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	s := New(store, Options{})

	req := httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader(testRecordJSON("rec-1")))
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader(testRecordJSON("rec-1")))
	w2 := httptest.NewRecorder()
	s.routes().ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, ErrRecordExists, w2.Body.String())
}

func TestCreateRecord_ConflictIgnored(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	s := New(store, Options{IgnoreRecordExistsError: true})

	req := httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader(testRecordJSON("rec-1")))
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader(testRecordJSON("rec-1")))
	w2 := httptest.NewRecorder()
	s.routes().ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Empty(t, w2.Body.String())
}

func TestUpdateRecord_UnknownRecord(t *testing.T) {
	t.Parallel()

	s := New(newFakeStore(), Options{})
	req := httptest.NewRequest(http.MethodPut, "/record", bytes.NewReader(testUpdateJSON("does-not-exist", time.Now())))
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Updating unknown record does-not-exist")
}

func TestUpdateRecord_MissingStopTimeRejected(t *testing.T) {
	t.Parallel()

	s := New(newFakeStore(), Options{})
	req := httptest.NewRequest(http.MethodPut, "/record", bytes.NewReader(testRecordJSON("rec-1")))
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "stop_time is required")
}

func TestUpdateRecord_MinimalBodyClosesOutRecord(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	s := New(store, Options{})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := domain.NewRecord(domain.MustName("rec-1")).
		WithStartTime(domain.NewTimestamp(start)).
		WithMeta(func() domain.Meta {
			m := domain.NewMeta()
			m.Set(domain.MustName("site_id"), domain.MustName("site_1"))
			return m
		}())
	data, err := rec.MarshalJSON()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader(data)))
	require.Equal(t, http.StatusOK, w.Code)

	stop := start.Add(time.Hour)
	w2 := httptest.NewRecorder()
	s.routes().ServeHTTP(w2, httptest.NewRequest(http.MethodPut, "/record", bytes.NewReader(testUpdateJSON("rec-1", stop))))
	require.Equal(t, http.StatusOK, w2.Code)

	updated := store.records["rec-1"]
	require.NotNil(t, updated.Runtime)
	assert.Equal(t, int64(3600), *updated.Runtime)
	require.NotNil(t, updated.StartTime)
	assert.Equal(t, start, updated.StartTime.Time())
	values, ok := updated.Meta.Get(domain.MustName("site_id"))
	require.True(t, ok)
	require.Len(t, values, 1)
	assert.Equal(t, "site_1", values[0].String())
}

func TestBulkCreateRecords_Success(t *testing.T) {
	t.Parallel()

	s := New(newFakeStore(), Options{})
	body, err := json.Marshal([]json.RawMessage{testRecordJSON("rec-a"), testRecordJSON("rec-b")})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/records", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateRecord_InvalidBody(t *testing.T) {
	t.Parallel()

	s := New(newFakeStore(), Options{})
	req := httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_GracefulShutdown(t *testing.T) {
	t.Parallel()

	s := New(newFakeStore(), Options{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
