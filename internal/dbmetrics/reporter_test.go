package dbmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	total        int64
	totalErr     error
	grouped      map[string]int64
	groupedErr   error
	groupedCalls []string
}

func (f *fakeStore) CountAll(ctx context.Context) (int64, error) {
	return f.total, f.totalErr
}

func (f *fakeStore) CountGroupedByMeta(ctx context.Context, metaKey string) (map[string]int64, error) {
	f.groupedCalls = append(f.groupedCalls, metaKey)
	return f.grouped, f.groupedErr
}

func TestReporter_SnapshotsImmediatelyOnRun(t *testing.T) {
	t.Parallel()

	store := &fakeStore{total: 42, grouped: map[string]int64{"site-a": 10}}
	r := New(store, Options{
		Frequency:   time.Hour,
		ReportTotal: true,
		Dimensions:  map[Dimension]string{DimensionSite: "site"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Allow the immediate snapshot to run, then stop the loop.
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, []string{"site"}, store.groupedCalls)
}

func TestReporter_StopWaitsForLoopExit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{total: 1}
	r := New(store, Options{Frequency: time.Hour, ReportTotal: true})

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	r.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestReporter_CountErrorsAreLoggedNotFatal(t *testing.T) {
	t.Parallel()

	store := &fakeStore{totalErr: errors.New("boom"), groupedErr: errors.New("boom")}
	r := New(store, Options{
		Frequency:   time.Hour,
		ReportTotal: true,
		Dimensions:  map[Dimension]string{DimensionUser: "user"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	assert.NotPanics(t, func() {
		require.NoError(t, r.Run(ctx))
	})
}

func TestReporter_SkipsDimensionWithEmptyMetaKey(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r := New(store, Options{
		Frequency:  time.Hour,
		Dimensions: map[Dimension]string{DimensionGroup: ""},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, r.Run(ctx))
	assert.Empty(t, store.groupedCalls)
}
