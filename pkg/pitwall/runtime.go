// Package pitwall wires the telemetry pipeline together and exposes
// simple lifecycle hooks for embedding it inside any Go service: receiver
// into ring, ring into processor, snapshots out to viewers.
package pitwall

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pingu-73/telemetry-pipeline/internal/adapters/observability"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/publisher"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/recorder"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/ring"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/sink"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/udp"
	"github.com/pingu-73/telemetry-pipeline/internal/app/config"
	"github.com/pingu-73/telemetry-pipeline/internal/app/pipeline"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
	"github.com/pingu-73/telemetry-pipeline/internal/stats"
	"github.com/pingu-73/telemetry-pipeline/internal/strategy"
)

// Option customizes the dependencies used by Runtime.
type Option func(*overrides)

type overrides struct {
	receiver      ports.Receiver
	ring          ports.Ring
	publisher     ports.SnapshotPublisher
	outcomeSink   ports.OutcomeSink
	recorder      ports.Recorder
	observability ports.Observability
}

// WithReceiver injects a custom frame source (replay, simulators, tests).
func WithReceiver(r ports.Receiver) Option {
	return func(o *overrides) { o.receiver = r }
}

// WithRing injects a custom buffer implementation.
func WithRing(r ports.Ring) Option {
	return func(o *overrides) { o.ring = r }
}

// WithPublisher injects a custom live-view boundary.
func WithPublisher(p ports.SnapshotPublisher) Option {
	return func(o *overrides) { o.publisher = p }
}

// WithOutcomeSink injects a custom outcome store in place of Postgres.
func WithOutcomeSink(s ports.OutcomeSink) Option {
	return func(o *overrides) { o.outcomeSink = s }
}

// WithRecorder injects a custom session recorder.
func WithRecorder(r ports.Recorder) Option {
	return func(o *overrides) { o.recorder = r }
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) { o.observability = obs }
}

// Runtime owns the pipeline goroutines: the receiver's delivery loop, the
// processor, the publish ticker, and the metrics server.
type Runtime struct {
	cfg *config.Config
	obs ports.Observability
	trk *stats.Tracker
	eng *strategy.Engine

	receiver ports.Receiver
	ring     ports.Ring
	pub      ports.SnapshotPublisher
	rec      ports.Recorder

	pgSink *sink.PostgresSink
	writer *sink.AsyncWriter

	ingestor  *pipeline.Ingestor
	processor *pipeline.Processor

	metricsSrv *http.Server
	stopCh     chan struct{}
	procDone   chan struct{}
	cancelProc context.CancelFunc
	done       chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

// New bootstraps the default adapters: UDP receiver, priority ring,
// websocket publisher, Postgres outcome sink, file recorder, Prometheus
// observability. Any of them can be overridden with Option values.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	obs := ov.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}

	rng := ov.ring
	if rng == nil {
		var err error
		rng, err = ring.New(cfg.Pipeline.RingCapacity)
		if err != nil {
			return nil, err
		}
	}

	rec := ov.recorder
	if rec == nil && cfg.Recorder.Dir != "" {
		var err error
		rec, err = recorder.NewFileRecorder(cfg.Recorder)
		if err != nil {
			return nil, fmt.Errorf("session recorder: %w", err)
		}
	}

	rt := &Runtime{
		cfg:    cfg,
		obs:    obs,
		trk:    stats.NewTracker(0),
		ring:   rng,
		rec:    rec,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	outcomeSink := ov.outcomeSink
	if outcomeSink == nil && cfg.Sink.Enabled() {
		pg, err := sink.OpenPostgres(cfg.Sink.ConnString, cfg.Sink.Table)
		if err != nil {
			return nil, err
		}
		rt.pgSink = pg
		outcomeSink = pg
	}
	if outcomeSink != nil {
		rt.writer = sink.NewAsyncWriter(cfg.Sink.Writer, outcomeSink, obs)
	}

	rt.pub = ov.publisher
	if rt.pub == nil {
		pub, err := publisher.NewWSPublisher(cfg.Publish, obs)
		if err != nil {
			// viewers are optional; the pipeline runs headless
			obs.LogError("live_view_unavailable", err,
				ports.Field{Key: "addr", Value: cfg.Publish.Addr})
		} else {
			rt.pub = pub
		}
	}

	eng, err := strategy.NewEngine(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	rt.eng = eng

	var persist func(o Outcome) bool
	if rt.writer != nil {
		persist = rt.writer.Enqueue
	}
	emit := pipeline.NewOutcomeEmitter(rt.trk, obs, persist)

	cls := pipeline.Classifier{
		BrakeCritical:          cfg.Priority.BrakeCritical,
		WaterTempCriticalC:     cfg.Priority.WaterTempCriticalC,
		OilPressureCriticalBar: cfg.Priority.OilPressureCriticalBar,
	}
	rt.ingestor = pipeline.NewIngestor(cfg.Pipeline, cls, rng, rec, rt.trk, obs, emit)
	rt.processor = pipeline.NewProcessor(cfg.Pipeline, rng, eng, rt.trk, obs, emit)

	rt.receiver = ov.receiver
	if rt.receiver == nil {
		recv, err := udp.NewReceiver(cfg.UDP, cfg.Pipeline, obs)
		if err != nil {
			return nil, err
		}
		rt.receiver = recv
	}

	return rt, nil
}

// Start launches the pipeline and returns immediately; call Run to block
// on a context instead. A receiver bind failure is fatal.
func (rt *Runtime) Start() error {
	if rt == nil {
		return fmt.Errorf("runtime is nil")
	}
	var err error
	rt.startOnce.Do(func() {
		if err = rt.receiver.Start(rt.ingestor.HandleFrame); err != nil {
			err = fmt.Errorf("start receiver: %w", err)
			return
		}
		rt.started = true

		procCtx, cancel := context.WithCancel(context.Background())
		rt.cancelProc = cancel
		rt.procDone = make(chan struct{})
		go func() {
			rt.processor.Run(procCtx)
			close(rt.procDone)
		}()

		rt.startMetrics()
		go rt.publishLoop()
		go rt.gaugeLoop()
		go rt.watchReceiver()

		rt.obs.LogInfo("pipeline_started",
			ports.Field{Key: "ring_capacity", Value: rt.ring.Capacity()},
			ports.Field{Key: "latency_budget", Value: rt.cfg.Pipeline.LatencyBudget.String()})
	})
	return err
}

// Run starts the runtime and blocks until the context is cancelled or the
// receiver stops on its own (idle timeout, transport failure). It then
// shuts down gracefully. ErrIdleShutdown is a clean exit, not an error.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-rt.receiver.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := rt.receiver.Err(); err != nil && !errors.Is(err, ports.ErrIdleShutdown) {
		return err
	}
	return nil
}

// Done is closed once the receiver loop has exited.
func (rt *Runtime) Done() <-chan struct{} { return rt.receiver.Done() }

// Snapshot assembles the current pipeline state.
func (rt *Runtime) Snapshot() Snapshot {
	return rt.trk.Snapshot(time.Now(), rt.ring.Len(), rt.eng.Decisions())
}

// Shutdown stops ingestion, drains the ring, flushes the sinks, and
// releases every server and file handle.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	rt.stopOnce.Do(func() {
		if !rt.started {
			return
		}

		if err := rt.receiver.Stop(); err != nil {
			errs = append(errs, err)
		}

		// ingestion has stopped; let the processor empty the ring
		rt.cancelProc()
		select {
		case <-rt.procDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("processor drain: %w", ctx.Err()))
		}

		close(rt.stopCh)

		if rt.pub != nil {
			// one last snapshot so viewers see the final counters
			if err := rt.pub.Publish(rt.Snapshot()); err != nil {
				rt.obs.IncCounter("pitwall_publish_failures_total", 1)
			}
			if err := rt.pub.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if rt.writer != nil {
			if err := rt.writer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if rt.pgSink != nil {
			if err := rt.pgSink.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if rt.rec != nil {
			if err := rt.rec.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if rt.metricsSrv != nil {
			if err := rt.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}

		rt.logFinalReport()
		close(rt.done)
	})
	return errors.Join(errs...)
}

func (rt *Runtime) logFinalReport() {
	snap := rt.Snapshot()
	c := snap.Counters
	rt.obs.LogInfo("session_report",
		ports.Field{Key: "frames_received", Value: c.FramesReceived},
		ports.Field{Key: "processed", Value: c.Processed},
		ports.Field{Key: "rejected", Value: c.Rejected},
		ports.Field{Key: "evicted", Value: c.Evicted},
		ports.Field{Key: "deadline_missed", Value: c.DeadlineMissed},
		ports.Field{Key: "decisions", Value: c.Decisions},
		ports.Field{Key: "drop_rate", Value: fmt.Sprintf("%.4f", snap.DropRate)},
		ports.Field{Key: "latency_p50_ms", Value: fmt.Sprintf("%.3f", snap.LatencyP50Ms)},
		ports.Field{Key: "latency_p99_ms", Value: fmt.Sprintf("%.3f", snap.LatencyP99Ms)})
}

func (rt *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	rt.metricsSrv = &http.Server{
		Addr:    rt.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := rt.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()
}

func (rt *Runtime) publishLoop() {
	if rt.pub == nil {
		return
	}
	ticker := time.NewTicker(rt.cfg.Publish.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-rt.stopCh:
			return
		case <-ticker.C:
			if err := rt.pub.Publish(rt.Snapshot()); err != nil {
				rt.obs.IncCounter("pitwall_publish_failures_total", 1)
			} else {
				rt.obs.IncCounter("pitwall_snapshots_published_total", 1)
			}
		}
	}
}

func (rt *Runtime) gaugeLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rt.stopCh:
			return
		case <-ticker.C:
			rt.obs.SetGauge("pitwall_ring_occupancy", float64(rt.ring.Len()))
			if rt.rec != nil {
				rt.obs.SetGauge("pitwall_recorder_size_bytes", float64(rt.rec.Stats().SizeBytes))
			}
		}
	}
}

func (rt *Runtime) watchReceiver() {
	<-rt.receiver.Done()
	switch err := rt.receiver.Err(); {
	case err == nil:
	case errors.Is(err, ports.ErrIdleShutdown):
		rt.obs.LogInfo("idle_timeout_reached",
			ports.Field{Key: "window", Value: rt.cfg.Pipeline.IdleTimeout.String()})
	default:
		rt.obs.LogCritical("receiver_failed", err)
	}
}
