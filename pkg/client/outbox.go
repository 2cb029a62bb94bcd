package client

import (
	"context"
	"errors"
	"sync"

	"github.com/aeolun/neighborchat/pkg/protocol"
)

// ErrOutboxClosed is returned when sending to an outbox whose connection cycle has ended
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox is the bounded FIFO queue between producers and the write loop of
// one connection cycle. A full outbox blocks producers; nothing is dropped.
type Outbox struct {
	ch        chan protocol.Packet
	done      chan struct{}
	closeOnce sync.Once
	metrics   *Metrics
}

// NewOutbox creates an outbox holding up to size packets
func NewOutbox(size int, metrics *Metrics) *Outbox {
	if size < 1 {
		size = 1
	}
	return &Outbox{
		ch:      make(chan protocol.Packet, size),
		done:    make(chan struct{}),
		metrics: metrics,
	}
}

// Send enqueues p, blocking while the outbox is full. It fails with
// ErrOutboxClosed once the cycle ends, or with ctx.Err().
func (o *Outbox) Send(ctx context.Context, p protocol.Packet) error {
	if p == nil {
		return protocol.ErrNilPacket
	}

	// Check closed first so a closed outbox with free space never accepts
	select {
	case <-o.done:
		return ErrOutboxClosed
	default:
	}

	select {
	case o.ch <- p:
		o.metrics.RecordOutboxDepth(len(o.ch))
		return nil
	case <-o.done:
		return ErrOutboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the outbox. Blocked and future senders get ErrOutboxClosed;
// packets still queued are discarded with the cycle.
func (o *Outbox) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
		o.metrics.RecordOutboxDepth(0)
	})
}

// Len returns the number of queued packets
func (o *Outbox) Len() int {
	return len(o.ch)
}

// Cap returns the outbox capacity
func (o *Outbox) Cap() int {
	return cap(o.ch)
}
