package model

import (
	"fmt"
	"strings"
	"time"
)

// Normalize converts t to the canonical representation used everywhere in the
// tier: an absolute UTC instant without a monotonic clock reading. Every
// timestamp must pass through Normalize at the ingestion boundary so that two
// timestamps are never compared in different representations.
func Normalize(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Round(0)
}

// FromUnixNano builds a canonical timestamp from unix nanoseconds.
func FromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an explicit
// offset are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Normalize(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unsupported layout", s)
}

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// WindowEndingAt returns the window of the given length ending at end.
func WindowEndingAt(end time.Time, length time.Duration) Window {
	end = Normalize(end)
	return Window{From: end.Add(-length), To: end}
}

// Contains reports whether t falls into the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}
