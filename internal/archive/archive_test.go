package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditor-project/auditor/pkg/domain"
)

func TestFilePath(t *testing.T) {
	t.Parallel()

	month := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "/data/archive/auditor_2023_03.parquet", FilePath("/data/archive", "auditor", month))
}

func TestMonthStart(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		monthStart(time.Date(2023, 3, 17, 13, 5, 0, 0, time.UTC)),
	)
}

func TestCompressionCodec(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, CompressionGzip.codec(), CompressionSnappy.codec())
}

func newArchivableRecord(t *testing.T) domain.Record {
	t.Helper()
	r := domain.NewRecord(domain.MustName("rec-1"))
	meta := domain.NewMeta()
	meta.Set(domain.MustName("site_id"), domain.MustName("site_1"))
	r = r.WithMeta(meta)
	r = r.WithComponents(domain.NewComponent(domain.MustName("CPU"), domain.MustAmount(4), []domain.Score{
		domain.NewScore(domain.MustName("HEPSPEC06"), domain.MustValue(9.2)),
	}))
	r = r.WithStartTime(domain.NewTimestamp(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	r = r.WithStopTime(domain.NewTimestamp(time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC)))
	return r
}

func TestEncodeDecodeRow_RoundTrip(t *testing.T) {
	t.Parallel()

	rec := newArchivableRecord(t)
	encoded, err := encodeRow(rec)
	require.NoError(t, err)

	decoded, err := decodeRow(encoded)
	require.NoError(t, err)

	assert.True(t, rec.Equal(decoded))
}

func TestEncodeRow_RejectsInFlightRecord(t *testing.T) {
	t.Parallel()

	rec := domain.NewRecord(domain.MustName("rec-2"))
	_, err := encodeRow(rec)
	assert.Error(t, err)
}
