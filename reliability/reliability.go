// SPDX-License-Identifier: LGPL-3.0-or-later

// Package reliability wraps a transport.Transport with at-least-once
// delivery: receiver-side deduplication, acknowledgement, and bounded
// retransmission. It turns the transport's best-effort, unordered,
// possibly-duplicated delivery into a contract an application can
// build a task exchange on top of.
//
// The retransmit sweep is driven by the caller via Tick, not an
// internal goroutine — the node this package serves is
// single-threaded-cooperative, and every suspension point belongs to
// the caller's own loop.
package reliability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/waku-a2a/agent/a2a"
	"github.com/waku-a2a/agent/internal/logger"
	"github.com/waku-a2a/agent/internal/metrics"
	"github.com/waku-a2a/agent/reliability/store"
	"github.com/waku-a2a/agent/transport"
)

// Config holds the SDS tunables.
type Config struct {
	AckTimeout  time.Duration
	MaxAttempts int
	// AckTopicPrefix is the <prefix> in "<prefix>/ack/{message_id}/proto".
	AckTopicPrefix string
	// Logger receives a Warn on every retransmit and undelivered
	// message; defaults to logger.Nop.
	Logger logger.Logger
}

// DefaultConfig returns the default reliability tunables for the given
// topic prefix: a 10s ack timeout and 3 delivery attempts.
func DefaultConfig(topicPrefix string) Config {
	return Config{
		AckTimeout:     10 * time.Second,
		MaxAttempts:    3,
		AckTopicPrefix: topicPrefix,
		Logger:         logger.Nop,
	}
}

func (c Config) ackTopic(messageID string) string {
	return fmt.Sprintf("%s/ack/%s/proto", c.AckTopicPrefix, messageID)
}

type pendingEntry struct {
	topic             string
	messageID         string
	payload           []byte
	ackTopic          string
	attemptsRemaining int
	lastAttempt       time.Time
}

// Layer is the reliability wrapper around a single Transport.
// Layer owns its dedup set and pending-ack table exclusively; it is
// not safe to share one Layer's ack topics across two logical nodes.
type Layer struct {
	transport transport.Transport
	dedup     store.DedupStore
	config    Config

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

// New creates a Layer over transport using dedup as its dedup store.
func New(tr transport.Transport, dedup store.DedupStore, config Config) *Layer {
	if config.Logger == nil {
		config.Logger = logger.Nop
	}
	return &Layer{
		transport: tr,
		dedup:     dedup,
		config:    config,
		pending:   make(map[string]*pendingEntry),
	}
}

// PublishReliable publishes payload on topic under messageID, and
// subscribes to that message's ack topic so a later Tick can observe
// the acknowledgement. It returns once the initial publish and ack
// subscription succeed; the send itself is not yet confirmed — call
// Tick until it reports the id acked or undelivered.
func (l *Layer) PublishReliable(ctx context.Context, topic, messageID string, payload []byte) error {
	ackTopic := l.config.ackTopic(messageID)
	if err := l.transport.Subscribe(ctx, ackTopic); err != nil {
		return err
	}
	if err := l.transport.Publish(ctx, topic, payload); err != nil {
		return err
	}

	l.mu.Lock()
	l.pending[messageID] = &pendingEntry{
		topic:             topic,
		messageID:         messageID,
		payload:           payload,
		ackTopic:          ackTopic,
		attemptsRemaining: l.config.MaxAttempts - 1,
		lastAttempt:       time.Now(),
	}
	l.mu.Unlock()
	return nil
}

// Pending reports whether messageID is still awaiting an ack.
func (l *Layer) Pending(messageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.pending[messageID]
	return ok
}

// Tick inspects every pending send: entries whose ack topic has
// delivered a matching Ack are removed and counted as acked; entries
// whose ack_timeout has elapsed are re-published with one fewer
// attempt remaining; entries that reach zero attempts without an ack
// are removed and returned as undelivered. An ack observed for an id
// no longer pending (attempts exhausted, or a duplicate ack for an
// id already acked) is simply discarded — edge case (a) and (b) in
// the reliability layer's contract.
func (l *Layer) Tick(ctx context.Context) (acked []string, undelivered []string, err error) {
	l.mu.Lock()
	entries := make([]*pendingEntry, 0, len(l.pending))
	for _, e := range l.pending {
		entries = append(entries, e)
	}
	l.mu.Unlock()

	for _, e := range entries {
		gotAck, err := l.pollAck(ctx, e)
		if err != nil {
			return acked, undelivered, err
		}
		if gotAck {
			l.mu.Lock()
			delete(l.pending, e.messageID)
			l.mu.Unlock()
			acked = append(acked, e.messageID)
			continue
		}

		if time.Since(e.lastAttempt) < l.config.AckTimeout {
			continue
		}

		if e.attemptsRemaining <= 0 {
			l.mu.Lock()
			delete(l.pending, e.messageID)
			l.mu.Unlock()
			undelivered = append(undelivered, e.messageID)
			metrics.Undelivered.Inc()
			l.config.Logger.Warn("reliability.undelivered",
				logger.String("message_id", e.messageID), logger.String("topic", e.topic))
			continue
		}

		if err := l.transport.Publish(ctx, e.topic, e.payload); err != nil {
			return acked, undelivered, err
		}
		l.mu.Lock()
		e.attemptsRemaining--
		e.lastAttempt = time.Now()
		l.mu.Unlock()
		metrics.Retransmits.Inc()
		l.config.Logger.Warn("reliability.retransmit",
			logger.String("message_id", e.messageID), logger.Int("attempts_remaining", e.attemptsRemaining))
	}
	return acked, undelivered, nil
}

func (l *Layer) pollAck(ctx context.Context, e *pendingEntry) (bool, error) {
	payloads, err := l.transport.Poll(ctx, e.ackTopic)
	if err != nil {
		return false, err
	}
	for _, p := range payloads {
		env, err := a2a.Decode(p)
		if err != nil {
			continue
		}
		if env.Type == a2a.EnvelopeAck && env.Ack != nil && env.Ack.MessageID == e.messageID {
			return true, nil
		}
	}
	return false, nil
}

// SendAck publishes a one-shot Ack envelope for messageID. It is not
// retransmitted: the sender's retry loop compensates for a lost ack,
// so duplicate acks for the same id are expected and harmless.
func (l *Layer) SendAck(ctx context.Context, messageID string) error {
	payload, err := a2a.Encode(a2a.Envelope{
		Type: a2a.EnvelopeAck,
		Ack:  &a2a.AckPayload{MessageID: messageID},
	})
	if err != nil {
		return fmt.Errorf("reliability: encode ack: %w", err)
	}
	if err := l.transport.Publish(ctx, l.config.ackTopic(messageID), payload); err != nil {
		return err
	}
	metrics.AcksSent.Inc()
	return nil
}

// PollDedup polls topic and returns each payload at most once: a
// payload whose envelope carries a message id already recorded in the
// dedup store is discarded, covering a transport that delivers the
// same payload k times. Envelopes with no message id concept (no
// Task/EncryptedTask — e.g. AgentCard, Ack) pass through undeduped,
// since this layer is not the authority on their own idempotence.
func (l *Layer) PollDedup(ctx context.Context, topic string) ([][]byte, error) {
	payloads, err := l.transport.Poll(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(payloads))
	for _, p := range payloads {
		env, err := a2a.Decode(p)
		if err != nil {
			continue
		}
		id, err := a2a.MessageID(env)
		if err != nil {
			out = append(out, p)
			continue
		}
		seen, err := l.dedup.Contains(ctx, id)
		if err != nil {
			return out, err
		}
		if seen {
			metrics.DuplicatesSuppressed.Inc()
			continue
		}
		if err := l.dedup.Add(ctx, id); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
