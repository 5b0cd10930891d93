package sink

import (
	"sync"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

type WriterConfig struct {
	QueueDepth    int           `yaml:"queue_depth"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

func (c *WriterConfig) ApplyDefaults() {
	if c.QueueDepth <= 0 {
		c.QueueDepth = 4096
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 128
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
}

// AsyncWriter decouples outcome persistence from the processor. Enqueue is
// non-blocking: when the queue is full the outcome is silently dropped
// from persistence (it already counted in the in-memory stats). Batches
// are flushed on size or on the flush interval, whichever comes first.
type AsyncWriter struct {
	cfg  WriterConfig
	sink ports.OutcomeSink
	obs  ports.Observability

	mu     sync.Mutex
	queue  chan domain.Outcome
	closed bool
	done   chan struct{}
}

func NewAsyncWriter(cfg WriterConfig, sink ports.OutcomeSink, obs ports.Observability) *AsyncWriter {
	cfg.ApplyDefaults()
	w := &AsyncWriter{
		cfg:   cfg,
		sink:  sink,
		obs:   obs,
		queue: make(chan domain.Outcome, cfg.QueueDepth),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue hands one outcome to the writer. Returns false on overflow.
func (w *AsyncWriter) Enqueue(o domain.Outcome) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- o:
		return true
	default:
		return false
	}
}

func (w *AsyncWriter) run() {
	defer close(w.done)

	batch := make([]domain.Outcome, 0, w.cfg.BatchSize)
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.sink.WriteBatch(batch); err != nil {
			w.obs.LogError("outcome_sink_write_failed", err,
				ports.Field{Key: "sink", Value: w.sink.Name()},
				ports.Field{Key: "batch", Value: len(batch)})
			w.obs.IncCounter("pitwall_sink_write_failures_total", 1)
		}
		batch = batch[:0]
	}

	for {
		select {
		case o, ok := <-w.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, o)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes pending outcomes and stops the writer.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
	return nil
}
