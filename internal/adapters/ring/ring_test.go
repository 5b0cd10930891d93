package ring

import (
	"testing"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

func mkSample(class domain.PriorityClass, seq uint32) domain.Sample {
	return domain.Sample{CarID: 44, Seq: seq, Priority: class}
}

func TestAdmitTakeFIFOWithinClass(t *testing.T) {
	r, err := New(8)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	now := time.Now()
	for seq := uint32(1); seq <= 3; seq++ {
		if res, _ := r.Admit(mkSample(domain.ClassHigh, seq), now); res != ports.Admitted {
			t.Fatalf("admit seq %d: got %v", seq, res)
		}
	}

	for want := uint32(1); want <= 3; want++ {
		s, _, ok := r.TakeNext()
		if !ok || s.Seq != want {
			t.Fatalf("take: want seq %d, got %d (ok=%v)", want, s.Seq, ok)
		}
	}
	if _, _, ok := r.TakeNext(); ok {
		t.Fatalf("expected empty ring")
	}
}

func TestTakePriorityOrder(t *testing.T) {
	r, _ := New(8)
	now := time.Now()

	// Admit low first, then high; dequeue must still see high first even
	// though low is older.
	r.Admit(mkSample(domain.ClassLow, 1), now)
	r.Admit(mkSample(domain.ClassLow, 2), now)
	r.Admit(mkSample(domain.ClassCritical, 3), now)
	r.Admit(mkSample(domain.ClassMedium, 4), now)

	wantSeqs := []uint32{3, 4, 1, 2}
	for _, want := range wantSeqs {
		s, _, ok := r.TakeNext()
		if !ok || s.Seq != want {
			t.Fatalf("take order: want seq %d, got %d (ok=%v)", want, s.Seq, ok)
		}
	}
}

func TestEvictionLowestClassOldestVictim(t *testing.T) {
	// spec scenario: capacity 4, four LOW admitted, then one HIGH.
	r, _ := New(4)
	now := time.Now()

	for seq := uint32(1); seq <= 4; seq++ {
		if res, _ := r.Admit(mkSample(domain.ClassLow, seq), now.Add(time.Duration(seq))); res != ports.Admitted {
			t.Fatalf("setup admit %d failed: %v", seq, res)
		}
	}
	if !r.Full() {
		t.Fatalf("ring should be full")
	}

	res, victim := r.Admit(mkSample(domain.ClassHigh, 99), now)
	if res != ports.AdmittedEvicted {
		t.Fatalf("want AdmittedEvicted, got %v", res)
	}
	if victim.Seq != 1 {
		t.Fatalf("want oldest LOW (seq 1) evicted, got seq %d", victim.Seq)
	}
	if got := r.Len(); got != 4 {
		t.Fatalf("length must stay at capacity, got %d", got)
	}

	s, _, ok := r.TakeNext()
	if !ok || s.Seq != 99 {
		t.Fatalf("HIGH sample must dequeue first, got seq %d (ok=%v)", s.Seq, ok)
	}
}

func TestEqualPriorityFullRejectsNewcomer(t *testing.T) {
	r, _ := New(2)
	now := time.Now()

	r.Admit(mkSample(domain.ClassHigh, 1), now)
	r.Admit(mkSample(domain.ClassHigh, 2), now)

	res, _ := r.Admit(mkSample(domain.ClassHigh, 3), now)
	if res != ports.Rejected {
		t.Fatalf("equal-priority admit into full ring: want Rejected, got %v", res)
	}
	// Buffered samples are untouched.
	s, _, _ := r.TakeNext()
	if s.Seq != 1 {
		t.Fatalf("expected seq 1 first, got %d", s.Seq)
	}
}

func TestHigherPriorityNeverEvicted(t *testing.T) {
	r, _ := New(2)
	now := time.Now()

	r.Admit(mkSample(domain.ClassCritical, 1), now)
	r.Admit(mkSample(domain.ClassCritical, 2), now)

	res, _ := r.Admit(mkSample(domain.ClassLow, 3), now)
	if res != ports.Rejected {
		t.Fatalf("lower-priority sample must not evict, got %v", res)
	}
}

func TestNeverExceedsCapacityNoDuplicates(t *testing.T) {
	const capacity = 16
	r, _ := New(capacity)
	now := time.Now()

	admitted := 0
	for seq := uint32(1); seq <= 100; seq++ {
		class := domain.PriorityClass(seq % domain.NumClasses)
		res, _ := r.Admit(mkSample(class, seq), now)
		if res != ports.Rejected {
			admitted++
		}
		if got := r.Len(); got > capacity {
			t.Fatalf("ring exceeded capacity: %d > %d", got, capacity)
		}
	}

	seen := map[uint32]bool{}
	taken := 0
	for {
		s, _, ok := r.TakeNext()
		if !ok {
			break
		}
		if seen[s.Seq] {
			t.Fatalf("sample seq %d returned twice", s.Seq)
		}
		seen[s.Seq] = true
		taken++
	}
	if taken != capacity {
		t.Fatalf("expected %d live samples after overload, got %d", capacity, taken)
	}
}

func TestSlotReuseAfterChurn(t *testing.T) {
	r, _ := New(4)
	now := time.Now()

	// Repeated fill/drain cycles exercise the free list.
	seq := uint32(0)
	for cycle := 0; cycle < 50; cycle++ {
		for i := 0; i < 4; i++ {
			seq++
			if res, _ := r.Admit(mkSample(domain.ClassMedium, seq), now); res != ports.Admitted {
				t.Fatalf("cycle %d admit failed: %v", cycle, res)
			}
		}
		for i := 0; i < 4; i++ {
			if _, _, ok := r.TakeNext(); !ok {
				t.Fatalf("cycle %d drain failed at %d", cycle, i)
			}
		}
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty ring after churn, got %d", r.Len())
	}
}

func TestNewRejectsBadCapacity(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := New(n); err == nil {
			t.Fatalf("expected error for capacity %d", n)
		}
	}
}

func TestAdmissionTimePreserved(t *testing.T) {
	r, _ := New(2)
	at := time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC)

	r.Admit(mkSample(domain.ClassHigh, 1), at)
	_, gotAt, ok := r.TakeNext()
	if !ok || !gotAt.Equal(at) {
		t.Fatalf("admission time not preserved: got %v (ok=%v)", gotAt, ok)
	}
}
