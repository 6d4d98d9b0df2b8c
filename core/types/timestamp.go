package types

import (
	"time"

	"github.com/pkg/errors"
)

// timestampLayout is the canonical wire form of a timestamp with seven
// fractional digits. The rendered string, not the instant, is what gets fed
// to the signature function, so it must be stable across platforms.
const timestampLayout = "2006-01-02T15:04:05.0000000Z"

// Timestamp is a UTC instant with a canonical string form.
type Timestamp struct {
	t time.Time
}

// Now returns the current UTC instant truncated to the canonical precision.
func Now() Timestamp {
	return Timestamp{t: time.Now().UTC().Truncate(100 * time.Nanosecond)}
}

// TimestampFromTime converts an arbitrary instant to a canonical Timestamp.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{t: t.UTC().Truncate(100 * time.Nanosecond)}
}

// ParseTimestamp parses the canonical string form.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return Timestamp{}, errors.Wrap(err, "could not parse timestamp")
	}
	return Timestamp{t: t}, nil
}

// Time returns the wrapped instant.
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether the timestamp is unset.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// Before reports whether ts is strictly earlier than other.
func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

// String renders the canonical form.
func (ts Timestamp) String() string { return ts.t.UTC().Format(timestampLayout) }

// MarshalJSON renders the canonical quoted string.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.String() + `"`), nil
}

// UnmarshalJSON parses the canonical quoted string.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("timestamp is not a JSON string")
	}
	parsed, err := ParseTimestamp(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
