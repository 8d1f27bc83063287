package domain

import "time"

// Timestamp is an instant in UTC truncated to millisecond resolution, the
// precision carried by both the JSON wire form (RFC 3339) and the Parquet
// archive form (TIMESTAMP_MILLIS).
type Timestamp struct {
	t time.Time
}

// NewTimestamp truncates t to UTC millisecond resolution.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.UTC().Truncate(time.Millisecond)}
}

// Now returns the current instant as a Timestamp.
func Now() Timestamp { return NewTimestamp(time.Now()) }

// Time returns the underlying time.Time, in UTC.
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether ts is the zero instant.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// Before reports whether ts occurs before other.
func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

// Sub returns ts - other as a duration.
func (ts Timestamp) Sub(other Timestamp) time.Duration { return ts.t.Sub(other.t) }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.t.Format(time.RFC3339Nano) + `"`), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return newValidationError("timestamp", s, "must be RFC 3339 in UTC")
	}
	*ts = NewTimestamp(parsed)
	return nil
}

// UnixMilli returns ts as milliseconds since the Unix epoch, the form used
// in the Parquet archive schema.
func (ts Timestamp) UnixMilli() int64 { return ts.t.UnixMilli() }

// TimestampFromUnixMilli reconstructs a Timestamp from an archive's
// TIMESTAMP_MILLIS column.
func TimestampFromUnixMilli(ms int64) Timestamp {
	return NewTimestamp(time.UnixMilli(ms))
}
