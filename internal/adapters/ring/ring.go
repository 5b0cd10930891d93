// Package ring implements the bounded, priority-ordered buffer between
// ingestion and processing.
package ring

import (
	"fmt"
	"sync"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

const nilIdx = -1

// slot is one buffer cell. Slots are allocated once at construction and
// reused for the lifetime of the ring; a live slot is linked into exactly
// one per-class FIFO list, a dead slot sits on the free list.
type slot struct {
	sample     domain.Sample
	admittedAt time.Time
	prev, next int
}

// PriorityRing holds at most Capacity live samples in a fixed slot array.
// Delivery is priority-first, FIFO within a class. Admit and TakeNext are
// O(1) under one short mutex, so ingestion always gets an immediate
// decision and never waits on the consumer.
//
// Overload policy: when full, an incoming sample evicts the oldest sample
// of the lowest occupied class, but only if that class is strictly lower
// than the incoming sample's. Equal-priority contention rejects the
// newcomer.
type PriorityRing struct {
	mu    sync.Mutex
	slots []slot
	head  [domain.NumClasses]int
	tail  [domain.NumClasses]int
	free  int
	size  int
}

func New(capacity int) (*PriorityRing, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be positive, got %d", capacity)
	}

	r := &PriorityRing{
		slots: make([]slot, capacity),
		free:  0,
	}
	for i := range r.slots {
		r.slots[i].next = i + 1
	}
	r.slots[capacity-1].next = nilIdx
	for c := range r.head {
		r.head[c] = nilIdx
		r.tail[c] = nilIdx
	}
	return r, nil
}

func (r *PriorityRing) Admit(s domain.Sample, at time.Time) (ports.AdmitResult, domain.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.free != nilIdx {
		idx := r.free
		r.free = r.slots[idx].next
		r.place(idx, s, at)
		r.size++
		return ports.Admitted, domain.Sample{}
	}

	// Full. Scan upward from the lowest class, stopping strictly above the
	// incoming sample's class: equal priority never evicts.
	for c := domain.NumClasses - 1; c > int(s.Priority); c-- {
		idx := r.head[c]
		if idx == nilIdx {
			continue
		}
		victim := r.slots[idx].sample
		r.unlink(idx, c)
		r.place(idx, s, at)
		return ports.AdmittedEvicted, victim
	}
	return ports.Rejected, domain.Sample{}
}

func (r *PriorityRing) TakeNext() (domain.Sample, time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := 0; c < domain.NumClasses; c++ {
		idx := r.head[c]
		if idx == nilIdx {
			continue
		}
		s := r.slots[idx].sample
		at := r.slots[idx].admittedAt
		r.unlink(idx, c)
		r.slots[idx].next = r.free
		r.free = idx
		r.size--
		return s, at, true
	}
	return domain.Sample{}, time.Time{}, false
}

func (r *PriorityRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *PriorityRing) Capacity() int { return len(r.slots) }

func (r *PriorityRing) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size == len(r.slots)
}

// place fills a detached slot and links it at the tail of its class list.
func (r *PriorityRing) place(idx int, s domain.Sample, at time.Time) {
	c := int(s.Priority)
	sl := &r.slots[idx]
	sl.sample = s
	sl.admittedAt = at
	sl.prev = r.tail[c]
	sl.next = nilIdx

	if r.tail[c] != nilIdx {
		r.slots[r.tail[c]].next = idx
	} else {
		r.head[c] = idx
	}
	r.tail[c] = idx
}

// unlink detaches a live slot from its class list without touching the
// free list.
func (r *PriorityRing) unlink(idx, c int) {
	sl := &r.slots[idx]
	if sl.prev != nilIdx {
		r.slots[sl.prev].next = sl.next
	} else {
		r.head[c] = sl.next
	}
	if sl.next != nilIdx {
		r.slots[sl.next].prev = sl.prev
	} else {
		r.tail[c] = sl.prev
	}
	sl.prev, sl.next = nilIdx, nilIdx
}

var _ ports.Ring = (*PriorityRing)(nil)
