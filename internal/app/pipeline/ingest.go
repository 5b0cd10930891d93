// Package pipeline wires the processing stages together: the ingest step
// runs on the receiver's delivery path, the processor drains the ring on
// its own goroutine, and every admitted or refused sample yields exactly
// one outcome record.
package pipeline

import (
	"errors"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
	"github.com/pingu-73/telemetry-pipeline/internal/stats"
	"github.com/pingu-73/telemetry-pipeline/internal/wire"
)

// OutcomeFunc consumes one per-sample outcome record.
type OutcomeFunc func(domain.Outcome)

// NewOutcomeEmitter fans an outcome into the stats tracker, the metric
// counters, and an optional persistence hook.
func NewOutcomeEmitter(trk *stats.Tracker, obs ports.Observability, persist func(domain.Outcome) bool) OutcomeFunc {
	return func(o domain.Outcome) {
		trk.RecordOutcome(o)
		switch o.Status {
		case domain.OutcomeEvicted:
			obs.IncCounter("pitwall_samples_evicted_total", 1)
		case domain.OutcomeRejected:
			obs.IncCounter("pitwall_samples_rejected_total", 1)
		default:
			obs.IncCounter("pitwall_samples_processed_total", 1)
			if !o.MetDeadline {
				obs.IncCounter("pitwall_deadline_missed_total", 1)
			}
			if o.Status == domain.OutcomeError {
				obs.IncCounter("pitwall_processing_errors_total", 1)
			}
		}
		if persist != nil {
			persist(o)
		}
	}
}

// Classifier promotes a sample to the critical class when any reading
// crosses a safety threshold, regardless of the priority on the wire.
type Classifier struct {
	BrakeCritical          float32
	WaterTempCriticalC     int16
	OilPressureCriticalBar float32
}

func (c Classifier) Classify(s domain.Sample) domain.PriorityClass {
	if s.Brake > c.BrakeCritical ||
		s.WaterTempC > c.WaterTempCriticalC ||
		s.OilPressureBar < c.OilPressureCriticalBar {
		return domain.ClassCritical
	}
	return s.Priority
}

// Ingestor is the receiver-side stage. HandleFrame runs synchronously on
// the receive loop, so everything here is allocation-free on the happy
// path and never blocks: decode, gate, classify, admit.
type Ingestor struct {
	pol  ports.Policy
	cls  Classifier
	ring ports.Ring
	rec  ports.Recorder
	trk  *stats.Tracker
	obs  ports.Observability
	emit OutcomeFunc

	// per-car sequence gate; touched only by the receive goroutine
	lastSeq map[uint8]uint32
}

func NewIngestor(pol ports.Policy, cls Classifier, ring ports.Ring, rec ports.Recorder, trk *stats.Tracker, obs ports.Observability, emit OutcomeFunc) *Ingestor {
	return &Ingestor{
		pol:     pol,
		cls:     cls,
		ring:    ring,
		rec:     rec,
		trk:     trk,
		obs:     obs,
		emit:    emit,
		lastSeq: make(map[uint8]uint32),
	}
}

// HandleFrame consumes one raw datagram. The frame is borrowed from the
// receiver's buffer; nothing may retain it past this call.
func (in *Ingestor) HandleFrame(frame []byte, recvAt time.Time) {
	in.trk.OnFrameReceived(len(frame), recvAt)
	in.obs.IncCounter("pitwall_frames_received_total", 1)
	in.obs.IncCounter("pitwall_bytes_received_total", float64(len(frame)))

	if in.rec != nil && !in.rec.Record(frame, recvAt) {
		in.obs.IncCounter("pitwall_recorder_dropped_total", 1)
	}

	v, err := wire.View(frame)
	if err != nil {
		in.countDecodeError(err)
		return
	}
	if in.pol.TargetCar != 0 && v.CarID() != in.pol.TargetCar {
		// other cars' traffic is expected noise, not an error
		return
	}

	s, err := v.Decode()
	if err != nil {
		in.countDecodeError(err)
		return
	}
	in.trk.OnDecoded()

	if last, seen := in.lastSeq[s.CarID]; seen && s.Seq <= last {
		in.trk.OnStale()
		in.obs.IncCounter("pitwall_stale_samples_total", 1)
		return
	}
	in.lastSeq[s.CarID] = s.Seq

	s.Priority = in.cls.Classify(s)

	res, victim := in.ring.Admit(s, recvAt)
	switch res {
	case ports.Admitted:
		in.trk.OnAdmitted()
		in.obs.IncCounter("pitwall_samples_admitted_total", 1)
	case ports.AdmittedEvicted:
		in.trk.OnAdmitted()
		in.obs.IncCounter("pitwall_samples_admitted_total", 1)
		in.emit(domain.Outcome{
			CarID:      victim.CarID,
			Seq:        victim.Seq,
			Priority:   victim.Priority,
			Status:     domain.OutcomeEvicted,
			RecordedAt: recvAt,
			Detail:     "displaced by higher-priority sample",
		})
	case ports.Rejected:
		in.emit(domain.Outcome{
			CarID:      s.CarID,
			Seq:        s.Seq,
			Priority:   s.Priority,
			Status:     domain.OutcomeRejected,
			RecordedAt: recvAt,
			Detail:     "buffer full, no lower-priority victim",
		})
	}
}

func (in *Ingestor) countDecodeError(err error) {
	switch {
	case errors.Is(err, wire.ErrVersionMismatch):
		in.trk.OnVersionMismatch()
		in.obs.IncCounter("pitwall_version_mismatch_total", 1)
	case errors.Is(err, wire.ErrChecksumFailure):
		in.trk.OnChecksumFailure()
		in.obs.IncCounter("pitwall_checksum_failures_total", 1)
	default:
		in.trk.OnMalformed()
		in.obs.IncCounter("pitwall_malformed_frames_total", 1)
	}
}
