package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidName_Boundaries(t *testing.T) {
	t.Parallel()

	_, err := ParseValidName("")
	assert.Error(t, err)

	_, err = ParseValidName(" leading")
	assert.Error(t, err)

	_, err = ParseValidName("trailing ")
	assert.Error(t, err)

	exact := strings.Repeat("a", 256)
	_, err = ParseValidName(exact)
	assert.NoError(t, err)

	tooLong := strings.Repeat("a", 257)
	_, err = ParseValidName(tooLong)
	assert.Error(t, err)
}

func TestParseValidAmount_Boundaries(t *testing.T) {
	t.Parallel()

	_, err := ParseValidAmount(0)
	assert.NoError(t, err)

	_, err = ParseValidAmount(-1)
	assert.Error(t, err)
}

func TestParseValidValue_Boundaries(t *testing.T) {
	t.Parallel()

	_, err := ParseValidValue(0.0)
	assert.NoError(t, err)

	_, err = ParseValidValue(-1e-12)
	assert.Error(t, err)
}

func newTestRecord(t *testing.T) Record {
	t.Helper()
	r := NewRecord(MustName("rec-1"))
	meta := NewMeta()
	meta.Set(MustName("site_id"), MustName("site1"))
	r = r.WithMeta(meta)
	r = r.WithComponents(NewComponent(MustName("CPU"), MustAmount(10), []Score{
		NewScore(MustName("HEPSPEC06"), MustValue(9.2)),
	}))
	r = r.WithStartTime(NewTimestamp(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	return r
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	r := newTestRecord(t)
	data, err := r.MarshalJSON()
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, decoded.UnmarshalJSON(data))

	assert.True(t, r.Equal(decoded), "round trip must be the identity")
}

func TestRecord_BinaryRoundTrip(t *testing.T) {
	t.Parallel()

	r := newTestRecord(t)
	data, err := r.MarshalBinary()
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, decoded.UnmarshalBinary(data))

	assert.True(t, r.Equal(decoded), "round trip must be the identity")
}

func TestRecord_Equal_IgnoresScoreOrderAndAbsentVsEmptyComponents(t *testing.T) {
	t.Parallel()

	a := NewRecord(MustName("rec-1")).WithComponents(
		NewComponent(MustName("CPU"), MustAmount(4), []Score{
			NewScore(MustName("A"), MustValue(1)),
			NewScore(MustName("B"), MustValue(2)),
		}),
	)
	b := NewRecord(MustName("rec-1")).WithComponents(
		NewComponent(MustName("CPU"), MustAmount(4), []Score{
			NewScore(MustName("B"), MustValue(2)),
			NewScore(MustName("A"), MustValue(1)),
		}),
	)
	assert.True(t, a.Equal(b))

	noComponents := NewRecord(MustName("rec-2"))
	emptyComponents := NewRecord(MustName("rec-2")).WithComponents()
	assert.True(t, noComponents.Equal(emptyComponents))
}

func TestRecord_WithStopTime_DerivesRuntime(t *testing.T) {
	t.Parallel()

	start := NewTimestamp(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	stop := NewTimestamp(time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC))

	r := NewRecord(MustName("rec-1")).WithStartTime(start).WithStopTime(stop)

	require.NotNil(t, r.Runtime)
	assert.EqualValues(t, 3600, *r.Runtime)
}

func TestScore_Equal_UsesRelativeTolerance(t *testing.T) {
	t.Parallel()

	a := NewScore(MustName("HEPSPEC06"), MustValue(9.2))
	b := NewScore(MustName("HEPSPEC06"), MustValue(9.2+1e-10))
	assert.True(t, a.Equal(b))

	c := NewScore(MustName("HEPSPEC06"), MustValue(9.3))
	assert.False(t, a.Equal(c))
}
