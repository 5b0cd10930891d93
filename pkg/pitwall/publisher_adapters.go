package pitwall

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelPublisherClosed is returned when a channel publisher is
// published to after being closed.
var ErrChannelPublisherClosed = errors.New("pitwall: channel publisher closed")

// SnapshotFunc consumes one published snapshot.
type SnapshotFunc func(Snapshot) error

// NewCallbackPublisher adapts a function into a full SnapshotPublisher so
// callers can plug arbitrary consumers without defining structs.
func NewCallbackPublisher(name string, fn SnapshotFunc) SnapshotPublisher {
	if name == "" {
		name = "callback"
	}
	return &callbackPublisher{name: name, fn: fn}
}

// NewChannelPublisher exposes snapshots via a channel; it returns the
// publisher, the read-only channel, and a close function for shutdown.
// Publishing never blocks: when the channel is full the snapshot is
// dropped, matching the lossy live-view contract.
func NewChannelPublisher(name string, buffer int) (SnapshotPublisher, <-chan Snapshot, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)
	p := &channelPublisher{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return p, ch, func() { p.close() }
}

type callbackPublisher struct {
	name string
	fn   SnapshotFunc
}

func (p *callbackPublisher) Publish(snap Snapshot) error {
	if p.fn == nil {
		return fmt.Errorf("callback publisher %q: nil handler", p.name)
	}
	return p.fn(snap)
}

func (p *callbackPublisher) Name() string                { return p.name }
func (p *callbackPublisher) Close(context.Context) error { return nil }

type channelPublisher struct {
	name   string
	ch     chan Snapshot
	closed chan struct{}
	once   sync.Once
}

func (p *channelPublisher) Publish(snap Snapshot) error {
	select {
	case <-p.closed:
		return ErrChannelPublisherClosed
	default:
	}

	select {
	case p.ch <- snap:
	default:
		// consumer behind; newer snapshot supersedes this one anyway
	}
	return nil
}

func (p *channelPublisher) Name() string { return p.name }

func (p *channelPublisher) Close(context.Context) error {
	p.close()
	return nil
}

func (p *channelPublisher) close() {
	p.once.Do(func() {
		close(p.closed)
		close(p.ch)
	})
}
