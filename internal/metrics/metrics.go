package metrics

import (
	"sync"
	"time"
)

// Metrics aggregates run counters for the monitoring endpoints.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	EntriesSeen        int64
	ArticlesRelevant   int64
	DuplicatesFiltered int64
	ExtractionFailures int64
	StageFallbacks     int64
	RecordsPublished   int64

	// Timings
	LastRunDuration  time.Duration
	TotalRunDuration time.Duration
	RunCount         int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddEntriesSeen(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesSeen += int64(n)
}

func (m *Metrics) IncrementRelevant() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesRelevant++
}

func (m *Metrics) IncrementDuplicates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered++
}

func (m *Metrics) IncrementExtractionFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExtractionFailures++
}

func (m *Metrics) IncrementStageFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StageFallbacks++
}

func (m *Metrics) IncrementPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordsPublished++
}

func (m *Metrics) RecordRun(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.RunCount++
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avg := time.Duration(0)
	if m.RunCount > 0 {
		avg = m.TotalRunDuration / time.Duration(m.RunCount)
	}

	return map[string]interface{}{
		"entries_seen":         m.EntriesSeen,
		"articles_relevant":    m.ArticlesRelevant,
		"duplicates_filtered":  m.DuplicatesFiltered,
		"extraction_failures":  m.ExtractionFailures,
		"stage_fallbacks":      m.StageFallbacks,
		"records_published":    m.RecordsPublished,
		"last_run_duration_ms": m.LastRunDuration.Milliseconds(),
		"avg_run_duration_ms":  avg.Milliseconds(),
		"last_run_time":        m.LastRunTime.Format(time.RFC3339),
		"last_error_time":      m.LastErrorTime.Format(time.RFC3339),
		"last_error":           m.LastError,
		"is_healthy":           m.IsHealthy,
	}
}
