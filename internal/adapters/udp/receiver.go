// Package udp receives telemetry datagrams from the upstream producer.
// The transport is unreliable and unordered by design; the receiver makes
// no attempt at retransmission or reordering.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

type Config struct {
	Addr            string `yaml:"addr"`
	ReadBufferBytes int    `yaml:"read_buffer_bytes"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":20777"
	}
	if c.ReadBufferBytes <= 0 {
		c.ReadBufferBytes = 2048
	}
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	return nil
}

// Receiver reads datagrams into a single reusable buffer and hands each
// frame to the handler synchronously, so decoding can borrow the buffer
// without a copy. The idle window is enforced with read deadlines; when it
// elapses the loop exits with ports.ErrIdleShutdown.
type Receiver struct {
	cfg Config
	pol ports.Policy
	obs ports.Observability

	mu      sync.Mutex
	conn    *net.UDPConn
	started bool
	err     error

	stopping atomic.Bool
	done     chan struct{}
}

func NewReceiver(cfg Config, pol ports.Policy, obs ports.Observability) (*Receiver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Receiver{
		cfg:  cfg,
		pol:  pol,
		obs:  obs,
		done: make(chan struct{}),
	}, nil
}

// Start binds the endpoint and launches the receive loop. A bind failure
// is returned directly: it is the one unrecoverable startup condition.
func (r *Receiver) Start(h ports.FrameHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("udp receiver already started")
	}

	addr, err := net.ResolveUDPAddr("udp", r.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", r.cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind %q: %w", r.cfg.Addr, err)
	}

	r.conn = conn
	r.started = true
	go r.loop(conn, h)
	return nil
}

func (r *Receiver) loop(conn *net.UDPConn, h ports.FrameHandler) {
	buf := make([]byte, r.cfg.ReadBufferBytes)
	retries := 0

	for {
		if r.pol.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(r.pol.IdleTimeout))
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if r.stopping.Load() {
				r.finish(nil)
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				r.finish(ports.ErrIdleShutdown)
				return
			}

			retries++
			if r.pol.MaxRecvRetries > 0 && retries > r.pol.MaxRecvRetries {
				r.finish(fmt.Errorf("%w: %v", ports.ErrTransportUnavailable, err))
				return
			}
			r.obs.LogError("udp_receive_failed", err, ports.Field{Key: "retry", Value: retries})
			if r.pol.RetryBackoff > 0 {
				time.Sleep(r.pol.RetryBackoff)
			}
			continue
		}

		retries = 0
		h(buf[:n], time.Now())
	}
}

func (r *Receiver) finish(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	close(r.done)
}

func (r *Receiver) Stop() error {
	r.mu.Lock()
	conn := r.conn
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}
	if r.stopping.Swap(true) {
		<-r.done
		return nil
	}
	if conn != nil {
		_ = conn.Close()
	}
	<-r.done
	return nil
}

func (r *Receiver) Done() <-chan struct{} { return r.done }

func (r *Receiver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Addr reports the bound endpoint, useful when configured with port 0.
func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

var _ ports.Receiver = (*Receiver)(nil)
