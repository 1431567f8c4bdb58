package goIdentity

import (
	"sync"
	"time"
)

// UsageTracker defines a public type used by goIdentity APIs.
//
// UsageTracker instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// The tracker keeps a bounded window of recent validation activity per token.
// Records age out after the longest configured anomaly window; the reaper
// calls [UsageTracker.Trim] so idle tokens do not pin memory. Detection is
// advisory only. A signal never revokes anything by itself.
//
//	Docs: docs/tokens.md
type UsageTracker struct {
	cfg         UsageConfig
	retention   time.Duration
	perTokenCap int

	mu      sync.RWMutex
	byToken map[string][]UsageRecord
	total   int
}

// NewUsageTracker describes the newusagetracker operation and its observable behavior.
//
// NewUsageTracker may return an error when input validation, dependency calls, or security checks fail.
// NewUsageTracker does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewUsageTracker(cfg UsageConfig) *UsageTracker {
	retention := cfg.HighFrequencyWindow
	if cfg.DistinctOriginWindow > retention {
		retention = cfg.DistinctOriginWindow
	}
	if retention <= 0 {
		retention = time.Hour
	}

	perTokenCap := 2 * cfg.HighFrequencyCount
	if perTokenCap < 64 {
		perTokenCap = 64
	}

	return &UsageTracker{
		cfg:         cfg,
		retention:   retention,
		perTokenCap: perTokenCap,
		byToken:     make(map[string][]UsageRecord),
	}
}

// Record describes the record operation and its observable behavior.
//
// Record may return an error when input validation, dependency calls, or security checks fail.
// Record does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t *UsageTracker) Record(rec UsageRecord) {
	if t == nil || rec.TokenID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	records := t.pruneLocked(rec.TokenID, rec.At)
	if len(records) >= t.perTokenCap {
		// Ring behavior: the oldest record makes room for the newest.
		drop := len(records) - t.perTokenCap + 1
		records = records[drop:]
		t.total -= drop
	}
	records = append(records, rec)
	t.byToken[rec.TokenID] = records
	t.total++

	if t.cfg.MaxRecords > 0 && t.total > t.cfg.MaxRecords {
		t.trimLocked(rec.At)
	}
}

// Recent describes the recent operation and its observable behavior.
//
// Recent may return an error when input validation, dependency calls, or security checks fail.
// Recent does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t *UsageTracker) Recent(tokenID string, limit int) []UsageRecord {
	if t == nil || limit <= 0 {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	records := t.byToken[tokenID]
	if len(records) == 0 {
		return nil
	}
	if limit > len(records) {
		limit = len(records)
	}

	// Newest first.
	out := make([]UsageRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = records[len(records)-1-i]
	}
	return out
}

// Volume describes the volume operation and its observable behavior.
//
// Volume may return an error when input validation, dependency calls, or security checks fail.
// Volume does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t *UsageTracker) Volume() int {
	if t == nil {
		return 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Detect describes the detect operation and its observable behavior.
//
// Detect may return an error when input validation, dependency calls, or security checks fail.
// Detect does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t *UsageTracker) Detect(tokenID string, now time.Time) *AnomalySignal {
	if t == nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	records := t.byToken[tokenID]
	if len(records) == 0 {
		return nil
	}

	if t.cfg.HighFrequencyCount > 0 {
		cutoff := now.Add(-t.cfg.HighFrequencyWindow)
		count := 0
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].At.Before(cutoff) {
				break
			}
			count++
		}
		if count > t.cfg.HighFrequencyCount {
			return &AnomalySignal{
				TokenID:    tokenID,
				UserID:     records[len(records)-1].UserID,
				Kind:       AnomalyHighFrequency,
				Count:      count,
				Window:     t.cfg.HighFrequencyWindow,
				ObservedAt: now,
			}
		}
	}

	if t.cfg.DistinctOriginCount > 0 {
		cutoff := now.Add(-t.cfg.DistinctOriginWindow)
		origins := make(map[string]struct{}, t.cfg.DistinctOriginCount+1)
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].At.Before(cutoff) {
				break
			}
			if records[i].Origin != "" {
				origins[records[i].Origin] = struct{}{}
			}
		}
		if len(origins) > t.cfg.DistinctOriginCount {
			return &AnomalySignal{
				TokenID:    tokenID,
				UserID:     records[len(records)-1].UserID,
				Kind:       AnomalyMultipleOrigins,
				Count:      len(origins),
				Window:     t.cfg.DistinctOriginWindow,
				ObservedAt: now,
			}
		}
	}

	return nil
}

// Trim describes the trim operation and its observable behavior.
//
// Trim may return an error when input validation, dependency calls, or security checks fail.
// Trim does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t *UsageTracker) Trim(now time.Time) int {
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trimLocked(now)
}

// pruneLocked drops a single token's records that fell out of the retention
// window and returns the surviving slice. Caller holds the write lock.
func (t *UsageTracker) pruneLocked(tokenID string, now time.Time) []UsageRecord {
	records := t.byToken[tokenID]
	if len(records) == 0 {
		return records
	}

	cutoff := now.Add(-t.retention)
	keep := 0
	for keep < len(records) && records[keep].At.Before(cutoff) {
		keep++
	}
	if keep == 0 {
		return records
	}

	t.total -= keep
	if keep == len(records) {
		delete(t.byToken, tokenID)
		return nil
	}
	records = records[keep:]
	t.byToken[tokenID] = records
	return records
}

func (t *UsageTracker) trimLocked(now time.Time) int {
	dropped := 0
	cutoff := now.Add(-t.retention)

	for tokenID, records := range t.byToken {
		keep := 0
		for keep < len(records) && records[keep].At.Before(cutoff) {
			keep++
		}
		if keep == 0 {
			continue
		}
		dropped += keep
		t.total -= keep
		if keep == len(records) {
			delete(t.byToken, tokenID)
			continue
		}
		t.byToken[tokenID] = records[keep:]
	}

	return dropped
}
