package pipeline

import (
	"context"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
	"github.com/pingu-73/telemetry-pipeline/internal/stats"
	"github.com/pingu-73/telemetry-pipeline/internal/strategy"
)

// Processor drains the ring in priority order on a single goroutine and
// feeds each sample through the strategy engine. The latency budget is
// advisory: a late sample is still processed, the miss is recorded on its
// outcome.
type Processor struct {
	pol  ports.Policy
	ring ports.Ring
	eng  *strategy.Engine
	trk  *stats.Tracker
	obs  ports.Observability
	emit OutcomeFunc
}

func NewProcessor(pol ports.Policy, ring ports.Ring, eng *strategy.Engine, trk *stats.Tracker, obs ports.Observability, emit OutcomeFunc) *Processor {
	return &Processor{pol: pol, ring: ring, eng: eng, trk: trk, obs: obs, emit: emit}
}

// Run loops until ctx is cancelled and the ring has been drained, so
// nothing admitted before shutdown goes unaccounted.
func (p *Processor) Run(ctx context.Context) {
	idle := p.pol.IdleSleep
	if idle <= 0 {
		idle = 500 * time.Microsecond
	}

	for {
		s, admittedAt, ok := p.ring.TakeNext()
		if !ok {
			if ctx.Err() != nil {
				return
			}
			time.Sleep(idle)
			continue
		}
		p.process(s, admittedAt)
	}
}

func (p *Processor) process(s domain.Sample, admittedAt time.Time) {
	now := time.Now()
	latency := now.Sub(admittedAt)
	met := latency <= p.pol.LatencyBudget

	o := domain.Outcome{
		CarID:       s.CarID,
		Seq:         s.Seq,
		Priority:    s.Priority,
		Latency:     latency,
		MetDeadline: met,
		RecordedAt:  now,
	}

	decisions, err := p.eng.Observe(s, now)
	switch {
	case err != nil:
		o.Status = domain.OutcomeError
		o.Detail = err.Error()
		p.obs.LogError("sample_processing_failed", err,
			ports.Field{Key: "car", Value: s.CarID},
			ports.Field{Key: "seq", Value: s.Seq})
	case met:
		o.Status = domain.OutcomeProcessed
	default:
		o.Status = domain.OutcomeProcessedLate
	}

	p.emit(o)
	p.obs.ObserveLatency("pitwall_process_latency_seconds", latency.Seconds())

	if len(decisions) > 0 {
		p.trk.OnDecisions(len(decisions))
		p.obs.IncCounter("pitwall_decisions_total", float64(len(decisions)))
		for _, d := range decisions {
			p.obs.LogInfo("strategy_decision",
				ports.Field{Key: "car", Value: d.CarID},
				ports.Field{Key: "kind", Value: string(d.Kind)},
				ports.Field{Key: "detail", Value: d.Detail})
		}
	}
}
