package stats

import (
	"testing"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
)

func processedOutcome(seq uint32, latency time.Duration, met bool) domain.Outcome {
	status := domain.OutcomeProcessed
	if !met {
		status = domain.OutcomeProcessedLate
	}
	return domain.Outcome{
		CarID:       44,
		Seq:         seq,
		Status:      status,
		Latency:     latency,
		MetDeadline: met,
		RecordedAt:  time.Now(),
	}
}

func TestLatencyPercentiles(t *testing.T) {
	tr := NewTracker(100)

	// 1..100 ms: P50 should be ~50ms, P99 ~100ms.
	for i := 1; i <= 100; i++ {
		tr.RecordOutcome(processedOutcome(uint32(i), time.Duration(i)*time.Millisecond, true))
	}

	snap := tr.Snapshot(time.Now(), 0, nil)
	if snap.LatencyP50Ms < 49 || snap.LatencyP50Ms > 52 {
		t.Fatalf("P50 out of range: %f", snap.LatencyP50Ms)
	}
	if snap.LatencyP99Ms < 99 || snap.LatencyP99Ms > 100 {
		t.Fatalf("P99 out of range: %f", snap.LatencyP99Ms)
	}
}

func TestLatencyWindowBounded(t *testing.T) {
	tr := NewTracker(10)

	// Push 100 slow then 10 fast samples; only the fast ones remain.
	for i := 0; i < 100; i++ {
		tr.RecordOutcome(processedOutcome(uint32(i), time.Second, false))
	}
	for i := 100; i < 110; i++ {
		tr.RecordOutcome(processedOutcome(uint32(i), time.Millisecond, true))
	}

	snap := tr.Snapshot(time.Now(), 0, nil)
	if snap.LatencyP99Ms > 2 {
		t.Fatalf("window not bounded, P99 = %f ms", snap.LatencyP99Ms)
	}
}

func TestDropRateAccounting(t *testing.T) {
	tr := NewTracker(0)
	now := time.Now()

	for i := 0; i < 10; i++ {
		tr.OnFrameReceived(64, now)
	}
	tr.OnMalformed()
	tr.RecordOutcome(domain.Outcome{Seq: 1, Status: domain.OutcomeRejected})
	tr.RecordOutcome(domain.Outcome{Seq: 2, Status: domain.OutcomeEvicted})

	snap := tr.Snapshot(now, 0, nil)
	if snap.DropRate != 0.3 {
		t.Fatalf("want drop rate 0.3, got %f", snap.DropRate)
	}
	if snap.Counters.Rejected != 1 || snap.Counters.Evicted != 1 || snap.Counters.Malformed != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
}

func TestDroppedOutcomesDoNotSkewLatency(t *testing.T) {
	tr := NewTracker(10)

	tr.RecordOutcome(processedOutcome(1, 2*time.Millisecond, true))
	tr.RecordOutcome(domain.Outcome{Seq: 2, Status: domain.OutcomeEvicted, Latency: time.Hour})

	snap := tr.Snapshot(time.Now(), 0, nil)
	if snap.LatencyP99Ms > 3 {
		t.Fatalf("dropped outcome leaked into latency window, P99 = %f", snap.LatencyP99Ms)
	}
}

func TestDeadlineAndErrorCounters(t *testing.T) {
	tr := NewTracker(0)

	tr.RecordOutcome(processedOutcome(1, time.Millisecond, true))
	tr.RecordOutcome(processedOutcome(2, 20*time.Millisecond, false))
	tr.RecordOutcome(domain.Outcome{
		Seq:         3,
		Status:      domain.OutcomeError,
		Latency:     time.Millisecond,
		MetDeadline: true,
		Detail:      "bad channel value",
	})

	c := tr.Counters()
	if c.Processed != 3 {
		t.Fatalf("want 3 processed, got %d", c.Processed)
	}
	if c.DeadlineMissed != 1 {
		t.Fatalf("want 1 deadline miss, got %d", c.DeadlineMissed)
	}
	if c.ProcessingErrors != 1 {
		t.Fatalf("want 1 processing error, got %d", c.ProcessingErrors)
	}
}

func TestRecentOutcomesOldestFirstBounded(t *testing.T) {
	tr := NewTracker(0)

	for i := 1; i <= recentOutcomeDepth+5; i++ {
		tr.RecordOutcome(processedOutcome(uint32(i), time.Millisecond, true))
	}

	recent := tr.Snapshot(time.Now(), 0, nil).RecentOutcomes
	if len(recent) != recentOutcomeDepth {
		t.Fatalf("want %d recent outcomes, got %d", recentOutcomeDepth, len(recent))
	}
	if recent[0].Seq != 6 || recent[len(recent)-1].Seq != recentOutcomeDepth+5 {
		t.Fatalf("unexpected recent window: first=%d last=%d", recent[0].Seq, recent[len(recent)-1].Seq)
	}
}

func TestThroughputWindow(t *testing.T) {
	tr := NewTracker(0)
	now := time.Now()

	for i := 0; i < 500; i++ {
		tr.OnFrameReceived(64, now)
	}

	snap := tr.Snapshot(now, 0, nil)
	if snap.ThroughputPPS <= 0 {
		t.Fatalf("expected positive throughput, got %f", snap.ThroughputPPS)
	}
	if snap.ThroughputBPS != snap.ThroughputPPS*64 {
		t.Fatalf("bytes/sec inconsistent with frames/sec: %f vs %f", snap.ThroughputBPS, snap.ThroughputPPS)
	}
}
