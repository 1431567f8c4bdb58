package goIdentity

import (
	"fmt"
	"testing"
	"time"
)

func usageTestConfig() UsageConfig {
	return UsageConfig{
		MaxRecords:           1000,
		HighFrequencyCount:   5,
		HighFrequencyWindow:  5 * time.Minute,
		DistinctOriginCount:  3,
		DistinctOriginWindow: time.Hour,
	}
}

func TestUsageTrackerRecordAndRecent(t *testing.T) {
	tracker := NewUsageTracker(usageTestConfig())
	base := time.Now()

	for i := 0; i < 3; i++ {
		tracker.Record(UsageRecord{
			TokenID:  "token_a",
			UserID:   "u1",
			At:       base.Add(time.Duration(i) * time.Second),
			Origin:   "10.0.0.1",
			Resource: fmt.Sprintf("/api/%d", i),
			Success:  true,
		})
	}

	recent := tracker.Recent("token_a", 2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Resource != "/api/2" || recent[1].Resource != "/api/1" {
		t.Fatalf("expected newest-first ordering, got %q then %q", recent[0].Resource, recent[1].Resource)
	}

	if tracker.Volume() != 3 {
		t.Fatalf("expected volume 3, got %d", tracker.Volume())
	}
	if got := tracker.Recent("token_unknown", 5); got != nil {
		t.Fatalf("expected nil for unknown token, got %d records", len(got))
	}
}

func TestUsageTrackerHighFrequencyAnomaly(t *testing.T) {
	tracker := NewUsageTracker(usageTestConfig())
	base := time.Now()

	for i := 0; i < 6; i++ {
		tracker.Record(UsageRecord{
			TokenID: "token_burst",
			UserID:  "u1",
			At:      base.Add(time.Duration(i) * time.Second),
			Origin:  "10.0.0.1",
			Success: true,
		})
	}

	signal := tracker.Detect("token_burst", base.Add(6*time.Second))
	if signal == nil {
		t.Fatal("expected high frequency anomaly")
	}
	if signal.Kind != AnomalyHighFrequency {
		t.Fatalf("expected high frequency kind, got %s", signal.Kind)
	}
	if signal.Count != 6 {
		t.Fatalf("expected count 6, got %d", signal.Count)
	}
}

func TestUsageTrackerDistinctOriginAnomaly(t *testing.T) {
	tracker := NewUsageTracker(usageTestConfig())
	base := time.Now()

	for i := 0; i < 4; i++ {
		tracker.Record(UsageRecord{
			TokenID: "token_roam",
			UserID:  "u1",
			At:      base.Add(time.Duration(i) * time.Minute),
			Origin:  fmt.Sprintf("10.0.0.%d", i+1),
			Success: true,
		})
	}

	signal := tracker.Detect("token_roam", base.Add(5*time.Minute))
	if signal == nil {
		t.Fatal("expected distinct origin anomaly")
	}
	if signal.Kind != AnomalyMultipleOrigins {
		t.Fatalf("expected multiple origin kind, got %s", signal.Kind)
	}
	if signal.Count != 4 {
		t.Fatalf("expected 4 distinct origins, got %d", signal.Count)
	}
}

func TestUsageTrackerNoAnomalyUnderThreshold(t *testing.T) {
	tracker := NewUsageTracker(usageTestConfig())
	base := time.Now()

	for i := 0; i < 3; i++ {
		tracker.Record(UsageRecord{
			TokenID: "token_calm",
			UserID:  "u1",
			At:      base.Add(time.Duration(i) * time.Second),
			Origin:  "10.0.0.1",
			Success: true,
		})
	}

	if signal := tracker.Detect("token_calm", base.Add(4*time.Second)); signal != nil {
		t.Fatalf("expected no anomaly, got %s", signal.Kind)
	}
	if signal := tracker.Detect("token_absent", base); signal != nil {
		t.Fatal("expected no anomaly for unknown token")
	}
}

func TestUsageTrackerWindowExcludesOldRecords(t *testing.T) {
	tracker := NewUsageTracker(usageTestConfig())
	base := time.Now()

	// Six hits, but only three inside the five minute window.
	for i := 0; i < 3; i++ {
		tracker.Record(UsageRecord{
			TokenID: "token_spread",
			At:      base.Add(-30*time.Minute + time.Duration(i)*time.Second),
			Origin:  "10.0.0.1",
		})
	}
	for i := 0; i < 3; i++ {
		tracker.Record(UsageRecord{
			TokenID: "token_spread",
			At:      base.Add(time.Duration(i) * time.Second),
			Origin:  "10.0.0.1",
		})
	}

	if signal := tracker.Detect("token_spread", base.Add(3*time.Second)); signal != nil {
		t.Fatalf("expected stale records outside the window to be ignored, got %s", signal.Kind)
	}
}

func TestUsageTrackerTrimDropsAgedRecords(t *testing.T) {
	tracker := NewUsageTracker(usageTestConfig())
	base := time.Now()

	tracker.Record(UsageRecord{TokenID: "token_old", At: base.Add(-3 * time.Hour)})
	tracker.Record(UsageRecord{TokenID: "token_new", At: base})

	dropped := tracker.Trim(base)
	if dropped != 1 {
		t.Fatalf("expected 1 dropped record, got %d", dropped)
	}
	if tracker.Volume() != 1 {
		t.Fatalf("expected volume 1 after trim, got %d", tracker.Volume())
	}
	if got := tracker.Recent("token_old", 5); got != nil {
		t.Fatal("expected aged token records to be gone")
	}
}

func TestUsageTrackerPerTokenCap(t *testing.T) {
	cfg := usageTestConfig()
	tracker := NewUsageTracker(cfg)
	base := time.Now()

	// Cap floors at 64 for small thresholds.
	for i := 0; i < 100; i++ {
		tracker.Record(UsageRecord{
			TokenID: "token_hot",
			At:      base.Add(time.Duration(i) * time.Millisecond),
		})
	}

	if tracker.Volume() != 64 {
		t.Fatalf("expected per-token cap of 64, got %d", tracker.Volume())
	}

	recent := tracker.Recent("token_hot", 1)
	if len(recent) != 1 {
		t.Fatal("expected newest record to survive")
	}
	if recent[0].At != base.Add(99*time.Millisecond) {
		t.Fatal("expected ring to keep the newest records")
	}
}
