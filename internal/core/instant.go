package core

import (
	"fmt"
	"strings"
	"time"
)

// InstantFormat is the canonical timestamp layout. Inputs may omit the
// seconds; the canonical form always carries them.
const (
	InstantFormat      = "2006-01-02 15:04:05"
	instantShortFormat = "2006-01-02 15:04"
)

// Instant is a normalized point in time with second resolution. All instants
// are anchored to UTC so that epoch comparisons are stable regardless of the
// host timezone.
type Instant struct {
	t         time.Time
	canonical string
}

// ParseInstant parses "YYYY-MM-DD HH:mm:ss" or "YYYY-MM-DD HH:mm" (seconds
// default to 00). Any other shape, non-numeric field, or invalid calendar
// value fails with ErrMalformedTimestamp. Input is never silently coerced.
func ParseInstant(value string) (Instant, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return Instant{}, fmt.Errorf("%w: timestamp must be a non-empty string", ErrMalformedTimestamp)
	}

	var layout string
	switch len(cleaned) {
	case len(InstantFormat):
		layout = InstantFormat
	case len(instantShortFormat):
		layout = instantShortFormat
	default:
		return Instant{}, malformedInstant(cleaned)
	}

	t, err := time.ParseInLocation(layout, cleaned, time.UTC)
	if err != nil {
		return Instant{}, malformedInstant(cleaned)
	}

	canonical := cleaned
	if layout == instantShortFormat {
		canonical += ":00"
	}
	return Instant{t: t, canonical: canonical}, nil
}

// InstantFromEpoch builds an instant from UTC epoch seconds. Negative epochs
// are rejected; the evaluation timeline never predates 1970.
func InstantFromEpoch(epoch int64) (Instant, error) {
	if epoch < 0 {
		return Instant{}, fmt.Errorf("%w: epoch %d is before 1970", ErrMalformedTimestamp, epoch)
	}
	t := time.Unix(epoch, 0).UTC()
	return Instant{t: t, canonical: t.Format(InstantFormat)}, nil
}

func malformedInstant(value string) error {
	return fmt.Errorf("%w: %q does not match 'YYYY-MM-DD HH:mm:ss' (or 'YYYY-MM-DD HH:mm')", ErrMalformedTimestamp, value)
}

// String returns the canonical "YYYY-MM-DD HH:mm:ss" form.
func (i Instant) String() string { return i.canonical }

// Epoch returns the instant as UTC epoch seconds.
func (i Instant) Epoch() int64 { return i.t.Unix() }

// Year returns the calendar year.
func (i Instant) Year() int { return i.t.Year() }

// Time exposes the underlying time value.
func (i Instant) Time() time.Time { return i.t }

// IsZero reports whether the instant was never parsed.
func (i Instant) IsZero() bool { return i.canonical == "" }

// Before reports whether i is strictly earlier than other.
func (i Instant) Before(other Instant) bool { return i.t.Before(other.t) }
