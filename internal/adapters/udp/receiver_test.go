package udp

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}

func startReceiver(t *testing.T, pol ports.Policy, h ports.FrameHandler) *Receiver {
	t.Helper()
	r, err := NewReceiver(Config{Addr: "127.0.0.1:0"}, pol, nopObs{})
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	if err := r.Start(h); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func TestReceiverDeliversFrames(t *testing.T) {
	var mu sync.Mutex
	var got [][]byte
	r := startReceiver(t, ports.Policy{IdleTimeout: 5 * time.Second}, func(frame []byte, recvAt time.Time) {
		if recvAt.IsZero() {
			t.Error("zero receive timestamp")
		}
		cp := make([]byte, len(frame))
		copy(cp, frame)
		mu.Lock()
		got = append(got, cp)
		mu.Unlock()
	})

	conn, err := net.Dial("udp", r.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, w := range want {
		if _, err := conn.Write(w); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == len(want) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("received %d of %d frames", n, len(want))
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, w := range want {
		if string(got[i]) != string(w) {
			t.Fatalf("frame %d: got %q want %q", i, got[i], w)
		}
	}
}

func TestReceiverIdleShutdown(t *testing.T) {
	r := startReceiver(t, ports.Policy{IdleTimeout: 50 * time.Millisecond}, func([]byte, time.Time) {})

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not shut down after idle window")
	}
	if !errors.Is(r.Err(), ports.ErrIdleShutdown) {
		t.Fatalf("want ErrIdleShutdown, got %v", r.Err())
	}
}

func TestReceiverStopIsClean(t *testing.T) {
	r := startReceiver(t, ports.Policy{IdleTimeout: time.Minute}, func([]byte, time.Time) {})

	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after Stop")
	}
	if r.Err() != nil {
		t.Fatalf("clean stop must not report an error, got %v", r.Err())
	}
	// Stop is idempotent.
	if err := r.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestReceiverBindFailureIsFatal(t *testing.T) {
	first := startReceiver(t, ports.Policy{IdleTimeout: time.Minute}, func([]byte, time.Time) {})

	second, err := NewReceiver(Config{Addr: first.Addr().String()}, ports.Policy{}, nopObs{})
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	if err := second.Start(func([]byte, time.Time) {}); err == nil {
		_ = second.Stop()
		t.Fatal("expected bind error on occupied endpoint")
	}
}

func TestReceiverStartTwice(t *testing.T) {
	r := startReceiver(t, ports.Policy{IdleTimeout: time.Minute}, func([]byte, time.Time) {})
	if err := r.Start(func([]byte, time.Time) {}); err == nil {
		t.Fatal("second Start must fail")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Addr != ":20777" {
		t.Fatalf("default addr: %q", c.Addr)
	}
	if c.ReadBufferBytes != 2048 {
		t.Fatalf("default read buffer: %d", c.ReadBufferBytes)
	}
}
