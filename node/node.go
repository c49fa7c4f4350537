// Copyright (C) 2026 waku-a2a contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package node is the top-level orchestrator binding an agent's
// identity, a transport, and the reliability layer into the five
// public operations an application drives: Announce, Discover,
// SendTask, PollTasks, Respond. It is a library, not a service binary
// — wiring an HTTP listener or CLI around it is left to the caller.
package node

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/waku-a2a/agent/a2a"
	"github.com/waku-a2a/agent/crypto"
	"github.com/waku-a2a/agent/identity"
	"github.com/waku-a2a/agent/internal/logger"
	"github.com/waku-a2a/agent/internal/metrics"
	"github.com/waku-a2a/agent/reliability"
	"github.com/waku-a2a/agent/reliability/store"
	"github.com/waku-a2a/agent/transport"
)

func encryptedLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// ErrUndelivered is returned by SendTask/Respond when the reliability
// layer exhausts its retry budget without observing an ack.
var ErrUndelivered = errors.New("reliability.undelivered")

// Config holds the construction-time options for a Node. Zero values
// are replaced with spec-mandated defaults in New.
type Config struct {
	// TopicPrefix replaces "/waku-a2a" in every derived topic. The
	// structure after it is invariant.
	TopicPrefix string

	// Encrypted, when true, generates an X25519 AgentIdentity and
	// advertises it via the card's intro bundle; SendTask encrypts
	// whenever the recipient's card also advertises one.
	Encrypted bool

	AckTimeout       time.Duration
	MaxAttempts      int
	SessionCacheSize int

	// DiscoveryPollInterval paces the Discover drain loop and the
	// SendTask/Respond ack-wait loop. It has no effect on wire
	// behavior, only on how promptly this process notices results.
	DiscoveryPollInterval time.Duration

	// DedupStore backs the reliability layer's task dedup set.
	// AgentCard envelopes on the discovery topic carry no message id
	// and are never recorded in it. Defaults to an in-memory store.
	DedupStore store.DedupStore

	// Logger receives drop/undelivered/retransmit diagnostics from
	// this node and the reliability layer it owns. Defaults to
	// logger.Nop.
	Logger logger.Logger

	Name         string
	Description  string
	Version      string
	Capabilities []string
}

func (c *Config) setDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.SessionCacheSize <= 0 {
		c.SessionCacheSize = MinSessionCacheSize
	}
	if c.DiscoveryPollInterval <= 0 {
		c.DiscoveryPollInterval = 20 * time.Millisecond
	}
	if c.DedupStore == nil {
		c.DedupStore = store.NewMemoryStore()
	}
	if c.Logger == nil {
		c.Logger = logger.Nop
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

// InboundTask pairs a decoded Task with the peer pubkey it was read
// from (ack'd and, if encrypted, already opened).
type InboundTask struct {
	Task *a2a.Task
	From string
}

// Node is the orchestrator for one agent identity. It owns its
// identity, transport, and reliability-layer instances exclusively —
// two logical nodes in one process must not share a transport.
type Node struct {
	identity      *identity.Identity
	agentIdentity *crypto.AgentIdentity
	encrypted     bool
	config        Config

	transport   transport.Transport
	reliability *reliability.Layer
	sessions    *sessionCache

	mu                  sync.Mutex
	discoverySubscribed bool
	inboxSubscribed     bool
	knownCards          map[string]a2a.AgentCard // pubkey hex -> card
	respondedTerminal   map[string]a2a.TaskState // task id -> terminal state already sent
}

// New constructs a Node over id and tr. If cfg.Encrypted is set, a
// fresh X25519 AgentIdentity is generated for the encryption layer.
func New(id *identity.Identity, tr transport.Transport, cfg Config) (*Node, error) {
	cfg.setDefaults()

	n := &Node{
		identity:          id,
		encrypted:         cfg.Encrypted,
		config:            cfg,
		transport:         tr,
		sessions:          newSessionCache(cfg.SessionCacheSize),
		knownCards:        make(map[string]a2a.AgentCard),
		respondedTerminal: make(map[string]a2a.TaskState),
	}
	n.reliability = reliability.New(tr, cfg.DedupStore, reliability.Config{
		AckTimeout:     cfg.AckTimeout,
		MaxAttempts:    cfg.MaxAttempts,
		AckTopicPrefix: ackTopicPrefix(cfg.TopicPrefix),
		Logger:         cfg.Logger,
	})

	if cfg.Encrypted {
		agentIdentity, err := crypto.GenerateIdentity()
		if err != nil {
			return nil, fmt.Errorf("node: generate encryption identity: %w", err)
		}
		n.agentIdentity = agentIdentity
	}
	return n, nil
}

// Card returns this node's current AgentCard.
func (n *Node) Card() a2a.AgentCard {
	card := a2a.AgentCard{
		Name:         n.config.Name,
		Description:  n.config.Description,
		Version:      n.config.Version,
		Capabilities: n.config.Capabilities,
		PublicKey:    n.identity.PublicKeyHex(),
	}
	if n.encrypted {
		bundle := crypto.NewIntroBundle(n.agentIdentity)
		card.IntroBundle = &bundle
	}
	return card
}

// Announce publishes this node's AgentCard to the discovery topic.
// Discovery is periodic by design, so this is not a reliable publish.
func (n *Node) Announce(ctx context.Context) error {
	if err := n.ensureDiscoverySubscribed(ctx); err != nil {
		return err
	}
	card := n.Card()
	payload, err := a2a.Encode(a2a.Envelope{Type: a2a.EnvelopeAgentCard, AgentCard: &card})
	if err != nil {
		return fmt.Errorf("node: encode agent card: %w", err)
	}
	return n.transport.Publish(ctx, discoveryTopic(n.config.TopicPrefix), payload)
}

// Discover subscribes to the discovery topic if needed, drains it for
// timeout, and returns every AgentCard seen keyed by public key (last
// writer wins on a duplicate key within the window). The node's own
// card is excluded.
func (n *Node) Discover(ctx context.Context, timeout time.Duration) (map[string]a2a.AgentCard, error) {
	if err := n.ensureDiscoverySubscribed(ctx); err != nil {
		return nil, err
	}

	self := n.identity.PublicKeyHex()
	found := make(map[string]a2a.AgentCard)
	deadline := time.Now().Add(timeout)
	for {
		payloads, err := n.reliability.PollDedup(ctx, discoveryTopic(n.config.TopicPrefix))
		if err != nil {
			return found, err
		}
		for _, p := range payloads {
			env, err := a2a.Decode(p)
			if err != nil || env.Type != a2a.EnvelopeAgentCard || env.AgentCard == nil {
				continue
			}
			if env.AgentCard.PublicKey == self {
				continue
			}
			found[env.AgentCard.PublicKey] = *env.AgentCard
		}
		if !time.Now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		case <-time.After(n.config.DiscoveryPollInterval):
		}
	}

	n.mu.Lock()
	for k, v := range found {
		n.knownCards[k] = v
	}
	n.mu.Unlock()
	return found, nil
}

// LearnCard registers a peer's AgentCard directly, without waiting for
// it to appear on the discovery topic. SendTask and Respond consult
// this cache to decide whether a recipient supports encryption, so a
// card obtained out-of-band (a shared link, a prior session, a
// directory service outside this package) is enough to reach a peer
// this node has never seen announce.
func (n *Node) LearnCard(card a2a.AgentCard) {
	n.mu.Lock()
	n.knownCards[card.PublicKey] = card
	n.mu.Unlock()
}

// SendTask constructs a fresh Task addressed to toPubkeyHex, wraps it
// as EncryptedTask when the recipient's cached card supports
// encryption, and publishes it reliably. It returns once the
// reliability layer reports success or ErrUndelivered.
func (n *Node) SendTask(ctx context.Context, toPubkeyHex string, message a2a.Message) (string, error) {
	toPubkeyHex, err := identity.NormalizePubKeyHex(toPubkeyHex)
	if err != nil {
		return "", err
	}

	task, err := a2a.NewTask(n.identity.PublicKeyHex(), toPubkeyHex, message)
	if err != nil {
		return "", err
	}

	payload, err := n.buildOutboundPayload(task, toPubkeyHex)
	if err != nil {
		return "", err
	}
	wireID, err := wireMessageID(payload)
	if err != nil {
		return "", err
	}

	topic := inboxTopic(n.config.TopicPrefix, toPubkeyHex)
	if err := n.reliability.PublishReliable(ctx, topic, wireID, payload); err != nil {
		return "", err
	}
	if err := n.driveUntilResolved(ctx, wireID); err != nil {
		return task.ID, err
	}
	return task.ID, nil
}

// wireMessageID decodes payload back into an envelope and derives the
// reliability layer's message id from it the same way the receiver
// will — a2a.MessageID(env), not task.ID directly. For a plaintext
// Task envelope the two coincide; for an EncryptedTask, the task id is
// sealed inside the ciphertext and unavailable to the receiver without
// decrypting, so both sides key off the ciphertext hash instead.
func wireMessageID(payload []byte) (string, error) {
	env, err := a2a.Decode(payload)
	if err != nil {
		return "", fmt.Errorf("node: decode outbound payload: %w", err)
	}
	return a2a.MessageID(env)
}

// PollTasks polls this node's own inbox topic, opens and decodes each
// envelope, acknowledges every task successfully surfaced, and drops
// anything that fails codec validation or decryption.
func (n *Node) PollTasks(ctx context.Context) ([]InboundTask, error) {
	if err := n.ensureInboxSubscribed(ctx); err != nil {
		return nil, err
	}
	topic := inboxTopic(n.config.TopicPrefix, n.identity.PublicKeyHex())
	payloads, err := n.reliability.PollDedup(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make([]InboundTask, 0, len(payloads))
	for _, p := range payloads {
		env, err := a2a.Decode(p)
		if err != nil {
			metrics.TasksDropped.WithLabelValues("codec").Inc()
			n.config.Logger.Warn("protocol.invalid", logger.String("reason", "codec"), logger.Err(err))
			continue
		}
		task, err := n.openInbound(env)
		if err != nil {
			reason := dropReason(err)
			metrics.TasksDropped.WithLabelValues(reason).Inc()
			n.config.Logger.Warn("protocol.invalid", logger.String("reason", reason), logger.Err(err))
			continue
		}
		if messageID, idErr := a2a.MessageID(env); idErr == nil {
			_ = n.reliability.SendAck(ctx, messageID) // best-effort, sender's retry compensates
		}
		metrics.TasksReceived.WithLabelValues(encryptedLabel(env.Type == a2a.EnvelopeEncryptedTask)).Inc()
		out = append(out, InboundTask{Task: task, From: task.From})
	}
	return out, nil
}

// Respond publishes a terminal task update to task.From. terminalState
// must be one of completed/failed/cancelled, and neither the supplied
// task snapshot nor this node's own record of task.ID may already be
// terminal — covering both a caller-visible stale task and a node that
// has already resolved this id itself.
func (n *Node) Respond(ctx context.Context, task *a2a.Task, result a2a.Message, terminalState a2a.TaskState) error {
	if !terminalState.IsTerminal() {
		return fmt.Errorf("%w: %q is not a terminal state", a2a.ErrIllegalStateTransition, terminalState)
	}
	if task.State.IsTerminal() {
		return fmt.Errorf("%w: task %s is already in terminal state %q", a2a.ErrIllegalStateTransition, task.ID, task.State)
	}

	n.mu.Lock()
	if prev, already := n.respondedTerminal[task.ID]; already {
		n.mu.Unlock()
		return fmt.Errorf("%w: task %s was already resolved to %q", a2a.ErrIllegalStateTransition, task.ID, prev)
	}
	n.respondedTerminal[task.ID] = terminalState
	n.mu.Unlock()

	updated := *task
	updated.State = terminalState
	updated.Result = &result

	payload, err := n.buildOutboundPayload(&updated, updated.From)
	if err != nil {
		return err
	}
	wireID, err := wireMessageID(payload)
	if err != nil {
		return err
	}
	topic := inboxTopic(n.config.TopicPrefix, updated.From)
	if err := n.reliability.PublishReliable(ctx, topic, wireID, payload); err != nil {
		return err
	}
	return n.driveUntilResolved(ctx, wireID)
}

func (n *Node) ensureDiscoverySubscribed(ctx context.Context) error {
	n.mu.Lock()
	if n.discoverySubscribed {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	if err := n.transport.Subscribe(ctx, discoveryTopic(n.config.TopicPrefix)); err != nil {
		return err
	}
	n.mu.Lock()
	n.discoverySubscribed = true
	n.mu.Unlock()
	return nil
}

func (n *Node) ensureInboxSubscribed(ctx context.Context) error {
	n.mu.Lock()
	if n.inboxSubscribed {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	topic := inboxTopic(n.config.TopicPrefix, n.identity.PublicKeyHex())
	if err := n.transport.Subscribe(ctx, topic); err != nil {
		return err
	}
	n.mu.Lock()
	n.inboxSubscribed = true
	n.mu.Unlock()
	return nil
}

// buildOutboundPayload encodes task as a plaintext Task envelope
// unless this node is encrypted and the recipient's cached card
// advertises an intro bundle, in which case it seals the task under
// the peer's derived session key instead.
func (n *Node) buildOutboundPayload(task *a2a.Task, toPubkeyHex string) ([]byte, error) {
	n.mu.Lock()
	card, known := n.knownCards[toPubkeyHex]
	n.mu.Unlock()

	if !n.encrypted || !known || !card.SupportsEncryption() {
		metrics.TasksSent.WithLabelValues(encryptedLabel(false)).Inc()
		return a2a.Encode(a2a.Envelope{Type: a2a.EnvelopeTask, Task: task})
	}

	sessionKey, err := n.sessionFor(card.IntroBundle.X25519PublicKey)
	if err != nil {
		return nil, err
	}

	taskBytes, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("node: marshal task for encryption: %w", err)
	}

	ad := []byte(toPubkeyHex + "|" + crypto.CiphersuiteX25519ChaCha20Poly1305)
	nonce, ciphertext, err := crypto.Seal(sessionKey, ad, taskBytes)
	if err != nil {
		return nil, err
	}

	metrics.TasksSent.WithLabelValues(encryptedLabel(true)).Inc()
	return a2a.Encode(a2a.Envelope{Type: a2a.EnvelopeEncryptedTask, EncryptedTask: &a2a.EncryptedTaskBundle{
		SenderX25519Pub: n.agentIdentity.PublicBytes(),
		Nonce:           nonce,
		Ciphertext:      ciphertext,
		AssociatedData:  ad,
	}})
}

// openInbound decodes a Task envelope directly, or opens an
// EncryptedTask under the session derived from the sender's advertised
// X25519 key and this node's own AgentIdentity.
func (n *Node) openInbound(env a2a.Envelope) (*a2a.Task, error) {
	switch env.Type {
	case a2a.EnvelopeTask:
		if env.Task == nil {
			return nil, fmt.Errorf("%w: task envelope missing task", a2a.ErrMalformed)
		}
		return env.Task, nil
	case a2a.EnvelopeEncryptedTask:
		if !n.encrypted {
			return nil, fmt.Errorf("%w: encrypted task received without an encryption identity", a2a.ErrInvariant)
		}
		b := env.EncryptedTask
		sessionKey, err := n.sessionFor(b.SenderX25519Pub)
		if err != nil {
			return nil, err
		}
		plaintext, err := crypto.Open(sessionKey, b.AssociatedData, b.Nonce, b.Ciphertext)
		if err != nil {
			return nil, err
		}
		var task a2a.Task
		if err := json.Unmarshal(plaintext, &task); err != nil {
			return nil, fmt.Errorf("%w: decrypted task: %v", a2a.ErrMalformed, err)
		}
		return &task, nil
	default:
		return nil, fmt.Errorf("%w: unexpected envelope type %q on a task inbox", a2a.ErrInvariant, env.Type)
	}
}

// dropReason classifies an openInbound failure for the tasks_dropped_total
// label: crypto auth failures are distinguished from codec/invariant
// violations since only the former indicates a wrong or stale session key.
func dropReason(err error) string {
	if errors.Is(err, crypto.ErrAuth) {
		return "crypto"
	}
	return "codec"
}

func (n *Node) sessionFor(peerX25519Pub []byte) ([]byte, error) {
	cacheKey := hex.EncodeToString(peerX25519Pub)
	if key, ok := n.sessions.get(cacheKey); ok {
		return key, nil
	}
	key, err := n.agentIdentity.DeriveSession(peerX25519Pub)
	if err != nil {
		return nil, err
	}
	n.sessions.put(cacheKey, key)
	return key, nil
}

// driveUntilResolved ticks the reliability layer until messageID is
// acked or reported undelivered, bounded by max_attempts*ack_timeout.
func (n *Node) driveUntilResolved(ctx context.Context, messageID string) error {
	for {
		acked, undelivered, err := n.reliability.Tick(ctx)
		if err != nil {
			return err
		}
		for _, id := range acked {
			if id == messageID {
				return nil
			}
		}
		for _, id := range undelivered {
			if id == messageID {
				return fmt.Errorf("%w(%s)", ErrUndelivered, messageID)
			}
		}
		if !n.reliability.Pending(messageID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.config.DiscoveryPollInterval):
		}
	}
}
