// SPDX-License-Identifier: LGPL-3.0-or-later

// Package memory implements a process-local transport.Transport used
// for tests and the ping-pong scenario. A shared Fabric maps each topic
// to an ordered queue of payloads; Publish appends, Poll drains the
// subscriber's own cursor into that queue. This is stronger than the
// transport contract requires (no loss, no duplication, FIFO per
// topic) — which the contract explicitly permits.
package memory

import (
	"context"
	"sync"
)

// Fabric is the shared, process-wide routing table backing every
// in-memory Transport that points at it. Tests create one Fabric per
// simulated network and one Transport per simulated node.
type Fabric struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

// NewFabric creates an empty routing fabric.
func NewFabric() *Fabric {
	return &Fabric{queues: make(map[string][][]byte)}
}

func (f *Fabric) publish(topic string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[topic] = append(f.queues[topic], payload)
}

// drain returns everything queued for topic since cursor and the new
// cursor value.
func (f *Fabric) drain(topic string, cursor int) ([][]byte, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queues[topic]
	if cursor >= len(q) {
		return nil, cursor
	}
	out := make([][]byte, len(q)-cursor)
	copy(out, q[cursor:])
	return out, len(q)
}

// Transport is a transport.Transport backed by a shared Fabric. Each
// Transport instance tracks its own per-topic read cursor, so two
// Transports over the same Fabric act like two independent
// subscribers.
type Transport struct {
	fabric *Fabric

	mu          sync.Mutex
	subscribed  map[string]bool
	cursors     map[string]int
	// DropPublishesTo, when set, drops the first N publishes to the
	// named topic — used by tests to exercise the SDS retransmit path
	// (spec §8 property 4) without a custom Transport.
	DropPublishesTo map[string]int

	// DuplicateDeliveries, when true, enqueues every published payload
	// twice — used by tests to exercise SDS deduplication (spec §8
	// property 3 and scenario S3).
	DuplicateDeliveries bool
}

// New creates a Transport over fabric.
func New(fabric *Fabric) *Transport {
	return &Transport{
		fabric:          fabric,
		subscribed:      make(map[string]bool),
		cursors:         make(map[string]int),
		DropPublishesTo: make(map[string]int),
	}
}

func (t *Transport) Publish(_ context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	if remaining, ok := t.DropPublishesTo[topic]; ok && remaining > 0 {
		t.DropPublishesTo[topic] = remaining - 1
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.fabric.publish(topic, payload)
	if t.DuplicateDeliveries {
		t.fabric.publish(topic, payload)
	}
	return nil
}

func (t *Transport) Subscribe(_ context.Context, topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribed[topic] = true
	if _, ok := t.cursors[topic]; !ok {
		t.cursors[topic] = 0
	}
	return nil
}

func (t *Transport) Poll(_ context.Context, topic string) ([][]byte, error) {
	t.mu.Lock()
	if !t.subscribed[topic] {
		// Not yet subscribed: nothing has been delivered for this
		// topic to this subscriber. Matches the contract that
		// subscribe must precede delivery, without treating an
		// early poll as an error.
		t.mu.Unlock()
		return nil, nil
	}
	cursor := t.cursors[topic]
	t.mu.Unlock()

	payloads, newCursor := t.fabric.drain(topic, cursor)

	t.mu.Lock()
	t.cursors[topic] = newCursor
	t.mu.Unlock()

	return payloads, nil
}
