package client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditor-project/auditor/pkg/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestQueuedClient_AddThenStopDrainsNothingWithoutTick(t *testing.T) {
	t.Parallel()

	var received int
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	})

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	c, err := New(Options{
		DatabasePath:  dbPath,
		ServerURL:     srv.URL,
		DrainInterval: time.Hour, // long enough that no tick fires during the test
	})
	require.NoError(t, err)

	require.NoError(t, c.Add(domain.NewRecord(domain.MustName("rec-1"))))

	n, err := c.store.countInserts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, received)

	require.NoError(t, c.Stop())
}

func TestQueuedClient_DrainDeliversInsertsInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var rec domain.Record
		require.NoError(t, rec.UnmarshalJSON(mustReadBody(t, r)))
		order = append(order, rec.RecordID.String())
		w.WriteHeader(http.StatusOK)
	})

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	c, err := New(Options{
		DatabasePath:  dbPath,
		ServerURL:     srv.URL,
		DrainInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, c.Add(domain.NewRecord(domain.MustName("rec-1"))))
	require.NoError(t, c.Add(domain.NewRecord(domain.MustName("rec-2"))))

	require.Eventually(t, func() bool {
		n, err := c.store.countInserts()
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"rec-1", "rec-2"}, order)
}

func TestQueuedClient_TransientErrorKeepsRow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	c, err := New(Options{
		DatabasePath:  dbPath,
		ServerURL:     srv.URL,
		DrainInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, c.Add(domain.NewRecord(domain.MustName("rec-1"))))

	time.Sleep(100 * time.Millisecond)

	n, err := c.store.countInserts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "row should be retained after a transient failure")
}

func TestQueuedClient_RecordExistsDropsRow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(errRecordExistsMarker))
	})

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	c, err := New(Options{
		DatabasePath:  dbPath,
		ServerURL:     srv.URL,
		DrainInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, c.Add(domain.NewRecord(domain.MustName("rec-1"))))

	require.Eventually(t, func() bool {
		n, err := c.store.countInserts()
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueuedClient_StopTwiceReturnsAlreadyStopped(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	c, err := New(Options{DatabasePath: dbPath, ServerURL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, c.Stop())
	assert.ErrorIs(t, c.Stop(), ErrAlreadyStopped)
}

func TestQueuedClient_CrashRecovery(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "queue.db")

	c1, err := New(Options{DatabasePath: dbPath, ServerURL: "http://127.0.0.1:0", DrainInterval: time.Hour})
	require.NoError(t, err)
	require.NoError(t, c1.Add(domain.NewRecord(domain.MustName("rec-1"))))
	require.NoError(t, c1.store.close()) // simulate a crash: skip Stop(), close the db handle directly

	c2, err := New(Options{DatabasePath: dbPath, ServerURL: "http://127.0.0.1:0", DrainInterval: time.Hour})
	require.NoError(t, err)
	defer c2.Stop()

	n, err := c2.store.countInserts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "row written before the crash should survive in the reopened store")
}

func mustReadBody(t *testing.T, r *http.Request) []byte {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return data
}
