// Package stats maintains the pipeline's rolling statistics: hot-path
// counters, a bounded latency window with percentile estimates, and a
// sliding throughput window.
//
// Counters are plain atomics so the ingest and processing stages can both
// bump them without sharing a lock. The latency window and the
// recent-outcome ring are written on the processor's call path and copied
// out under a short mutex when a snapshot is taken; sorting for
// percentiles happens outside the lock.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
)

const (
	// DefaultLatencyWindow bounds the percentile estimator: oldest
	// observation evicted first, no unbounded history.
	DefaultLatencyWindow = 1000

	throughputBuckets  = 10 // one-second buckets
	recentOutcomeDepth = 32
)

type bucket struct {
	sec    int64
	frames uint64
	bytes  uint64
}

type Tracker struct {
	framesReceived   atomic.Uint64
	bytesReceived    atomic.Uint64
	decoded          atomic.Uint64
	malformed        atomic.Uint64
	versionMismatch  atomic.Uint64
	checksumFailures atomic.Uint64
	staleDropped     atomic.Uint64
	admitted         atomic.Uint64
	rejected         atomic.Uint64
	evicted          atomic.Uint64
	processed        atomic.Uint64
	deadlineMissed   atomic.Uint64
	processingErrors atomic.Uint64
	decisions        atomic.Uint64

	mu          sync.Mutex
	latencies   []time.Duration
	latNext     int
	latCount    int
	recent      []domain.Outcome
	recentNext  int
	recentCount int

	tpMu    sync.Mutex
	buckets [throughputBuckets]bucket
	started time.Time
}

func NewTracker(latencyWindow int) *Tracker {
	if latencyWindow <= 0 {
		latencyWindow = DefaultLatencyWindow
	}
	return &Tracker{
		latencies: make([]time.Duration, latencyWindow),
		recent:    make([]domain.Outcome, recentOutcomeDepth),
		started:   time.Now(),
	}
}

// OnFrameReceived is called from the ingest stage for every datagram,
// before decoding.
func (t *Tracker) OnFrameReceived(n int, at time.Time) {
	t.framesReceived.Add(1)
	t.bytesReceived.Add(uint64(n))

	sec := at.Unix()
	t.tpMu.Lock()
	b := &t.buckets[sec%throughputBuckets]
	if b.sec != sec {
		b.sec = sec
		b.frames = 0
		b.bytes = 0
	}
	b.frames++
	b.bytes += uint64(n)
	t.tpMu.Unlock()
}

func (t *Tracker) OnDecoded()         { t.decoded.Add(1) }
func (t *Tracker) OnMalformed()       { t.malformed.Add(1) }
func (t *Tracker) OnVersionMismatch() { t.versionMismatch.Add(1) }
func (t *Tracker) OnChecksumFailure() { t.checksumFailures.Add(1) }
func (t *Tracker) OnStale()           { t.staleDropped.Add(1) }
func (t *Tracker) OnAdmitted()        { t.admitted.Add(1) }
func (t *Tracker) OnDecisions(n int)  { t.decisions.Add(uint64(n)) }

// RecordOutcome consumes one outcome record. Processed outcomes feed the
// latency window; evictions and rejections feed the drop counters. Every
// outcome lands in the recent-outcome ring for snapshots.
func (t *Tracker) RecordOutcome(o domain.Outcome) {
	switch o.Status {
	case domain.OutcomeEvicted:
		t.evicted.Add(1)
	case domain.OutcomeRejected:
		t.rejected.Add(1)
	default:
		t.processed.Add(1)
		if !o.MetDeadline {
			t.deadlineMissed.Add(1)
		}
		if o.Status == domain.OutcomeError {
			t.processingErrors.Add(1)
		}
	}

	t.mu.Lock()
	if !o.Dropped() {
		t.latencies[t.latNext] = o.Latency
		t.latNext = (t.latNext + 1) % len(t.latencies)
		if t.latCount < len(t.latencies) {
			t.latCount++
		}
	}
	t.recent[t.recentNext] = o
	t.recentNext = (t.recentNext + 1) % len(t.recent)
	if t.recentCount < len(t.recent) {
		t.recentCount++
	}
	t.mu.Unlock()
}

// Counters returns a point-in-time copy of all counters.
func (t *Tracker) Counters() domain.Counters {
	return domain.Counters{
		FramesReceived:   t.framesReceived.Load(),
		BytesReceived:    t.bytesReceived.Load(),
		Decoded:          t.decoded.Load(),
		Malformed:        t.malformed.Load(),
		VersionMismatch:  t.versionMismatch.Load(),
		ChecksumFailures: t.checksumFailures.Load(),
		StaleDropped:     t.staleDropped.Load(),
		Admitted:         t.admitted.Load(),
		Rejected:         t.rejected.Load(),
		Evicted:          t.evicted.Load(),
		Processed:        t.processed.Load(),
		DeadlineMissed:   t.deadlineMissed.Load(),
		ProcessingErrors: t.processingErrors.Load(),
		Decisions:        t.decisions.Load(),
	}
}

// Snapshot assembles the publishable state. DropRate is the fraction of
// received frames lost anywhere in the pipeline (decode failures, stale
// drops, rejections, evictions), 0..1.
func (t *Tracker) Snapshot(now time.Time, ringLen int, decisions []domain.Decision) domain.Snapshot {
	c := t.Counters()

	p50, p99 := t.latencyPercentiles()
	pps, bps := t.throughput(now)

	var dropRate float64
	if c.FramesReceived > 0 {
		drops := c.Malformed + c.VersionMismatch + c.ChecksumFailures +
			c.StaleDropped + c.Rejected + c.Evicted
		dropRate = float64(drops) / float64(c.FramesReceived)
	}

	return domain.Snapshot{
		Timestamp:       now,
		ThroughputPPS:   pps,
		ThroughputBPS:   bps,
		LatencyP50Ms:    p50,
		LatencyP99Ms:    p99,
		DropRate:        dropRate,
		RecentDecisions: decisions,
		RecentOutcomes:  t.recentOutcomes(),
		RingOccupancy:   ringLen,
		Counters:        c,
	}
}

func (t *Tracker) latencyPercentiles() (p50Ms, p99Ms float64) {
	t.mu.Lock()
	n := t.latCount
	window := make([]time.Duration, n)
	if n == len(t.latencies) {
		copy(window, t.latencies)
	} else {
		copy(window, t.latencies[:n])
	}
	t.mu.Unlock()

	if n == 0 {
		return 0, 0
	}
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	mid := window[n/2]
	if n%2 == 0 {
		mid = (window[n/2-1] + window[n/2]) / 2
	}
	p99Idx := int(float64(n) * 0.99)
	if p99Idx >= n {
		p99Idx = n - 1
	}
	return float64(mid) / float64(time.Millisecond),
		float64(window[p99Idx]) / float64(time.Millisecond)
}

func (t *Tracker) throughput(now time.Time) (pps, bps float64) {
	t.tpMu.Lock()
	defer t.tpMu.Unlock()

	cutoff := now.Unix() - throughputBuckets
	var frames, bytes uint64
	for i := range t.buckets {
		if t.buckets[i].sec > cutoff {
			frames += t.buckets[i].frames
			bytes += t.buckets[i].bytes
		}
	}

	covered := now.Sub(t.started).Seconds()
	if covered > throughputBuckets {
		covered = throughputBuckets
	}
	if covered < 1 {
		covered = 1
	}
	return float64(frames) / covered, float64(bytes) / covered
}

func (t *Tracker) recentOutcomes() []domain.Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.Outcome, 0, t.recentCount)
	// Oldest first: walk forward from the write cursor when the ring is
	// full, from zero otherwise.
	start := 0
	if t.recentCount == len(t.recent) {
		start = t.recentNext
	}
	for i := 0; i < t.recentCount; i++ {
		out = append(out, t.recent[(start+i)%len(t.recent)])
	}
	return out
}
