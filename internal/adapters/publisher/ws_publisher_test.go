package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}

func startPublisher(t *testing.T, cfg Config) *WSPublisher {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	p, err := NewWSPublisher(cfg, nopObs{})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return p
}

func sampleSnapshot(seq uint32) domain.Snapshot {
	return domain.Snapshot{
		Timestamp:     time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC),
		ThroughputPPS: 480,
		LatencyP50Ms:  1.2,
		LatencyP99Ms:  6.5,
		RingOccupancy: int(seq),
		Counters:      domain.Counters{Processed: uint64(seq)},
	}
}

func TestLiveViewerReceivesSnapshots(t *testing.T) {
	p := startPublisher(t, Config{})

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+p.Addr().String()+"/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := p.Publish(sampleSnapshot(7)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got domain.Snapshot
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RingOccupancy != 7 || got.Counters.Processed != 7 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestNewViewerGetsLatestSnapshotOnConnect(t *testing.T) {
	p := startPublisher(t, Config{})

	if err := p.Publish(sampleSnapshot(3)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+p.Addr().String()+"/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got domain.Snapshot
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RingOccupancy != 3 {
		t.Fatalf("expected replayed latest snapshot, got %+v", got)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	p := startPublisher(t, Config{})

	resp, err := http.Get("http://" + p.Addr().String() + "/snapshot")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("before first publish want 204, got %d", resp.StatusCode)
	}

	if err := p.Publish(sampleSnapshot(9)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	resp, err = http.Get("http://" + p.Addr().String() + "/snapshot")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var got domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RingOccupancy != 9 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSlowViewerDoesNotBlockPublish(t *testing.T) {
	p := startPublisher(t, Config{ClientDepth: 1})

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+p.Addr().String()+"/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	// The viewer never reads; its queue fills and further snapshots are
	// skipped for it without stalling the publisher.

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			if err := p.Publish(sampleSnapshot(uint32(i))); err != nil {
				t.Errorf("publish %d: %v", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("publish stalled on a slow viewer")
	}
}

func TestPublishAfterClose(t *testing.T) {
	p := startPublisher(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Publish(sampleSnapshot(1)); err == nil {
		t.Fatal("publish after close must fail")
	}
}
