// Package state persists the last-run marker: the end of the window the
// previous successful pass covered.
package state

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Layout is the on-disk timestamp layout written by every backend.
const Layout = "2006-01-02T15:04:05.000000Z"

// legacyLayout is the zone-less layout older markers were written with.
const legacyLayout = "2006-01-02T15:04:05.999999999"

// Store reads and writes the marker.
type Store interface {
	// Load returns the marker and true, or the zero time and false when
	// no marker has been written yet.
	Load(ctx context.Context) (time.Time, bool, error)

	// Save overwrites the marker.
	Save(ctx context.Context, t time.Time) error

	Close() error
}

// Window is the [From, To] range a single pass covers.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow builds the window for a pass starting at now. A missing
// marker yields an empty window at now; a marker in the future is
// clamped to now so From never exceeds To.
func NewWindow(last time.Time, ok bool, now time.Time) Window {
	now = now.UTC()

	if !ok || last.After(now) {
		return Window{From: now, To: now}
	}

	return Window{From: last.UTC(), To: now}
}

// FormatMarker renders t in Layout.
func FormatMarker(t time.Time) string {
	return t.UTC().Format(Layout)
}

// ParseMarker accepts Layout, RFC 3339 and the legacy zone-less layout,
// which is read as UTC.
func ParseMarker(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range []string{Layout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	t, err := time.ParseInLocation(legacyLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised marker %q: %w", s, err)
	}

	return t, nil
}
