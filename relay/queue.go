// Package relay moves frames from the upstream daemon to the
// broadcaster: a reconnecting ingest loop feeding a FIFO queue.
package relay

import (
	"context"
	"fmt"
	"sync/atomic"
)

// OverflowPolicy selects what Push does when the queue is full.
type OverflowPolicy string

const (
	// DropOldest evicts the oldest queued frame to make room, so a
	// stalled broadcaster can never stall ingestion.
	DropOldest OverflowPolicy = "drop_oldest"
	// Block makes Push wait for room, trading ingestion stalls for
	// zero frame loss between queue and broadcaster.
	Block OverflowPolicy = "block"
)

// ParseOverflowPolicy validates a policy name from configuration.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case DropOldest, Block:
		return OverflowPolicy(s), nil
	}
	return "", fmt.Errorf("relay: unknown overflow policy %q", s)
}

// Queue is the FIFO handoff between the single ingest producer and the
// single broadcast consumer. Capacity and overflow behavior are fixed
// at construction; insertion order is delivery order.
type Queue struct {
	ch      chan []byte
	policy  OverflowPolicy
	dropped atomic.Uint64
}

func NewQueue(size int, policy OverflowPolicy) *Queue {
	return &Queue{
		ch:     make(chan []byte, size),
		policy: policy,
	}
}

// Push enqueues a frame. Under DropOldest it never blocks; under Block
// it waits for room or context cancellation.
func (q *Queue) Push(ctx context.Context, frame []byte) error {
	if q.policy == Block {
		select {
		case q.ch <- frame:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case q.ch <- frame:
			return nil
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Pop dequeues the oldest frame, blocking until one is available or
// ctx is cancelled.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-q.ch:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of queued frames.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped reports frames evicted under the DropOldest policy.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
