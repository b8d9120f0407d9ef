// Package dates resolves the heterogeneous timestamp formats found across
// feeds into UTC instants and decides whether an instant falls inside the
// configured recency window.
package dates

import (
	"strings"
	"time"
)

// Feed timestamp layouts tried in order when the parser library did not
// already produce a parsed time.
var layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Resolve normalizes the best available timestamp of a feed entry to UTC.
// parsed, when non-nil, wins over the raw strings. Returns false when no
// timestamp could be resolved.
func Resolve(parsed *time.Time, published, updated string) (time.Time, bool) {
	if parsed != nil {
		return parsed.UTC(), true
	}
	for _, raw := range []string{published, updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Window is a recency policy for retaining feed entries. The zero value
// accepts nothing; construct one via Today or LastHours.
type Window struct {
	sameDay bool
	maxAge  time.Duration
	now     func() time.Time
}

// Today retains only entries published on the current UTC calendar day.
func Today() Window {
	return Window{sameDay: true, now: time.Now}
}

// LastHours retains entries published within the last h hours.
func LastHours(h int) Window {
	return Window{maxAge: time.Duration(h) * time.Hour, now: time.Now}
}

// WithClock returns a copy of w using the given clock. Tests only.
func (w Window) WithClock(now func() time.Time) Window {
	w.now = now
	return w
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.now == nil {
		return false
	}
	now := w.now().UTC()
	t = t.UTC()

	if w.sameDay {
		ny, nm, nd := now.Date()
		ty, tm, td := t.Date()
		return ny == ty && nm == tm && nd == td
	}
	if w.maxAge <= 0 {
		return false
	}
	return t.After(now.Add(-w.maxAge)) && t.Before(now.Add(time.Hour))
}
