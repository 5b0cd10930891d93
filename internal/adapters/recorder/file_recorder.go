// Package recorder journals raw wire frames to disk so a session can be
// replayed through the pipeline after the fact.
package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

const recordHeaderLen = 12

type Config struct {
	Dir          string `yaml:"dir"`
	MaxSizeBytes int64  `yaml:"max_size_bytes"`
	QueueDepth   int    `yaml:"queue_depth"`
}

func (c *Config) ApplyDefaults() {
	if c.MaxSizeBytes <= 0 {
		c.MaxSizeBytes = 256 << 20
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 1024
	}
}

func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("recorder dir is required")
	}
	return nil
}

type record struct {
	recvMicros int64
	frame      []byte
}

// FileRecorder appends frames off the hot path: Record copies the frame
// onto a bounded queue and a single writer goroutine drains it through a
// buffered file. When the queue is full or the size cap is reached the
// frame is counted as dropped; recording never stalls ingestion.
type FileRecorder struct {
	cfg Config

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	size   int64

	written atomic.Uint64
	dropped atomic.Uint64
	sizeHot atomic.Int64

	qmu    sync.RWMutex
	queue  chan record
	closed bool
	done   chan struct{}
}

func NewFileRecorder(cfg Config) (*FileRecorder, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.Dir, "session.rec")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &FileRecorder{
		cfg:    cfg,
		file:   f,
		writer: bufio.NewWriterSize(f, 1<<20),
		size:   stat.Size(),
		queue:  make(chan record, cfg.QueueDepth),
		done:   make(chan struct{}),
	}
	r.sizeHot.Store(r.size)
	go r.drain()
	return r, nil
}

// Record enqueues one frame. Returns false when the frame was dropped.
func (r *FileRecorder) Record(frame []byte, recvAt time.Time) bool {
	r.qmu.RLock()
	defer r.qmu.RUnlock()
	if r.closed || r.sizeHot.Load() >= r.cfg.MaxSizeBytes {
		r.dropped.Add(1)
		return false
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	select {
	case r.queue <- record{recvMicros: recvAt.UnixMicro(), frame: cp}:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

func (r *FileRecorder) drain() {
	defer close(r.done)
	for rec := range r.queue {
		r.write(rec)
		// flush when the burst is over so Iterate sees recent frames
		if len(r.queue) == 0 {
			r.mu.Lock()
			_ = r.writer.Flush()
			r.mu.Unlock()
		}
	}
	r.mu.Lock()
	_ = r.writer.Flush()
	r.mu.Unlock()
}

func (r *FileRecorder) write(rec record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size+recordHeaderLen+int64(len(rec.frame)) > r.cfg.MaxSizeBytes {
		r.dropped.Add(1)
		r.sizeHot.Store(r.cfg.MaxSizeBytes)
		return
	}

	// record format: [8 bytes recv unix micros][4 bytes len][frame]
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(rec.recvMicros))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(rec.frame)))

	if _, err := r.writer.Write(hdr[:]); err != nil {
		r.dropped.Add(1)
		return
	}
	if _, err := r.writer.Write(rec.frame); err != nil {
		r.dropped.Add(1)
		return
	}
	r.size += recordHeaderLen + int64(len(rec.frame))
	r.sizeHot.Store(r.size)
	r.written.Add(1)
}

// Iterate replays the recorded session oldest first. A trailing partial
// record, left by an interrupted run, ends iteration without error.
func (r *FileRecorder) Iterate(fn func(recvAt time.Time, frame []byte) error) error {
	r.mu.Lock()
	if err := r.writer.Flush(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	f, err := os.Open(filepath.Join(r.cfg.Dir, "session.rec"))
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("recording header: %w", err)
		}
		recvAt := time.UnixMicro(int64(binary.BigEndian.Uint64(hdr[0:8])))
		l := binary.BigEndian.Uint32(hdr[8:12])

		frame := make([]byte, l)
		if _, err := io.ReadFull(br, frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("recording body: %w", err)
		}
		if err := fn(recvAt, frame); err != nil {
			return err
		}
	}
}

func (r *FileRecorder) Stats() ports.RecorderStats {
	return ports.RecorderStats{
		FramesWritten: r.written.Load(),
		FramesDropped: r.dropped.Load(),
		SizeBytes:     r.sizeHot.Load(),
	}
}

func (r *FileRecorder) Close() error {
	r.qmu.Lock()
	if r.closed {
		r.qmu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.qmu.Unlock()
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

var _ ports.Recorder = (*FileRecorder)(nil)
