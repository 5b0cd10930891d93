// Package publisher pushes pipeline snapshots to live viewers over
// websockets and serves the latest snapshot over plain HTTP. The live
// view is a lossy boundary: a viewer that cannot keep up misses
// snapshots, it never slows the pipeline down.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

type Config struct {
	Addr        string        `yaml:"addr"`
	ClientDepth int           `yaml:"client_depth"`
	PingPeriod  time.Duration `yaml:"ping_period"`
	WriteWait   time.Duration `yaml:"write_wait"`

	// Interval paces the snapshot publish loop in the runtime.
	Interval time.Duration `yaml:"interval"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":9000"
	}
	if c.Interval <= 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.ClientDepth <= 0 {
		c.ClientDepth = 8
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 30 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 5 * time.Second
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// WSPublisher fans the current snapshot out to connected viewers. Each
// client gets a bounded send queue; a full queue drops the snapshot for
// that client only.
type WSPublisher struct {
	cfg Config
	obs ports.Observability

	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte
	addr    net.Addr
	closed  bool
}

func NewWSPublisher(cfg Config, obs ports.Observability) (*WSPublisher, error) {
	cfg.ApplyDefaults()

	p := &WSPublisher{
		cfg:     cfg,
		obs:     obs,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/live", p.handleLive)
	mux.HandleFunc("/snapshot", p.handleSnapshot)
	p.server = &http.Server{Handler: mux}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		// Viewers are optional; ingestion must not die because a port
		// is taken.
		return nil, err
	}
	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.LogError("live_view_server_stopped", err)
		}
	}()
	obs.LogInfo("live_view_listening", ports.Field{Key: "addr", Value: ln.Addr().String()})
	p.mu.Lock()
	p.addr = ln.Addr()
	p.mu.Unlock()
	return p, nil
}

func (p *WSPublisher) Name() string { return "websocket" }

// Publish encodes the snapshot once and offers it to every client.
func (p *WSPublisher) Publish(snap domain.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("publisher closed")
	}
	p.latest = payload

	for c := range p.clients {
		select {
		case c.send <- payload:
		default:
			// slow viewer, skip this snapshot for it
		}
	}
	p.obs.SetGauge("pitwall_connected_viewers", float64(len(p.clients)))
	return nil
}

func (p *WSPublisher) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.obs.LogError("live_view_upgrade_failed", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, p.cfg.ClientDepth)}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.clients[c] = struct{}{}
	if p.latest != nil {
		c.send <- p.latest
	}
	p.mu.Unlock()

	go p.writeLoop(c)
	go p.readLoop(c)
}

func (p *WSPublisher) writeLoop(c *client) {
	ticker := time.NewTicker(p.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				p.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.drop(c)
				return
			}
		}
	}
}

// readLoop discards inbound messages; its job is noticing disconnects.
func (p *WSPublisher) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			p.drop(c)
			c.conn.Close()
			return
		}
	}
}

func (p *WSPublisher) drop(c *client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, c)
	p.obs.SetGauge("pitwall_connected_viewers", float64(len(p.clients)))
}

func (p *WSPublisher) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	payload := p.latest
	p.mu.Unlock()

	if payload == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// Addr reports the bound listen address.
func (p *WSPublisher) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

func (p *WSPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for c := range p.clients {
		c.conn.Close()
		delete(p.clients, c)
	}
	p.mu.Unlock()

	return p.server.Shutdown(ctx)
}

var _ ports.SnapshotPublisher = (*WSPublisher)(nil)
