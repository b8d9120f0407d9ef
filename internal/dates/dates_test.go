package dates

import (
	"testing"
	"time"
)

func TestResolve_ParsedTimeWins(t *testing.T) {
	parsed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	got, ok := Resolve(&parsed, "Mon, 02 Jan 2006 15:04:05 -0700", "")
	if !ok {
		t.Fatalf("expected resolution")
	}
	if got.Hour() != 11 || got.Location() != time.UTC {
		t.Errorf("parsed time not normalized to UTC: %v", got)
	}
}

func TestResolve_FallsBackToRawStrings(t *testing.T) {
	cases := []string{
		"Mon, 02 Mar 2026 15:04:05 +0100",
		"2026-03-02T15:04:05Z",
		"2026-03-02 15:04:05",
		"2026-03-02",
	}
	for _, raw := range cases {
		got, ok := Resolve(nil, raw, "")
		if !ok {
			t.Errorf("Resolve(%q) failed", raw)
			continue
		}
		if got.Year() != 2026 || got.Month() != time.March {
			t.Errorf("Resolve(%q) = %v", raw, got)
		}
	}
}

func TestResolve_UpdatedUsedWhenPublishedEmpty(t *testing.T) {
	got, ok := Resolve(nil, "", "2026-03-02T08:00:00Z")
	if !ok || got.Day() != 2 {
		t.Errorf("updated timestamp not used: %v ok=%v", got, ok)
	}
}

func TestResolve_Unparseable(t *testing.T) {
	if _, ok := Resolve(nil, "yesterday at noon", "soon"); ok {
		t.Errorf("nonsense timestamps resolved")
	}
}

func TestWindowToday(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	w := Today().WithClock(clock)

	if !w.Contains(time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC)) {
		t.Errorf("early same-day entry rejected")
	}
	if w.Contains(time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("previous day accepted")
	}
	// Same UTC day even though the local zone differs.
	if !w.Contains(time.Date(2026, 3, 2, 6, 0, 0, 0, time.FixedZone("CET", 3600))) {
		t.Errorf("zoned same-day entry rejected")
	}
}

func TestWindowLastHours(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	w := LastHours(6).WithClock(clock)

	if !w.Contains(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)) {
		t.Errorf("entry inside window rejected")
	}
	if w.Contains(time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)) {
		t.Errorf("entry older than window accepted")
	}
	// Slight clock skew into the future is tolerated.
	if !w.Contains(time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("slightly future entry rejected")
	}
}

func TestWindowZeroValueAcceptsNothing(t *testing.T) {
	var w Window
	if w.Contains(time.Now()) {
		t.Errorf("zero-value window accepted an entry")
	}
}
