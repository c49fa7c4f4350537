// SPDX-License-Identifier: LGPL-3.0-or-later

package rest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// pushChannels holds one WebSocket connection per subscribed topic,
// each feeding a buffer that Poll drains alongside the REST GET. Each
// connection is a one-way server-to-client push: this package only
// reads from it, Publish always goes over the REST POST.
type pushChannels struct {
	wsBaseURL   string
	dialTimeout time.Duration

	mu     sync.Mutex
	conns  map[string]*websocket.Conn
	queues map[string][][]byte
}

func newPushChannels(wsBaseURL string) *pushChannels {
	return &pushChannels{
		wsBaseURL:   wsBaseURL,
		dialTimeout: 10 * time.Second,
		conns:       make(map[string]*websocket.Conn),
		queues:      make(map[string][][]byte),
	}
}

func (p *pushChannels) ensureConnected(ctx context.Context, topic string) {
	p.mu.Lock()
	if _, ok := p.conns[topic]; ok {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	dialer := &websocket.Dialer{HandshakeTimeout: p.dialTimeout}
	endpoint := p.wsBaseURL + "/relay/v1/auto/messages/" + url.PathEscape(topic) + "/ws"
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		// No push channel for this topic; Poll falls back to REST GET.
		return
	}

	p.mu.Lock()
	p.conns[topic] = conn
	p.mu.Unlock()

	go p.readLoop(topic, conn)
}

func (p *pushChannels) readLoop(topic string, conn *websocket.Conn) {
	defer func() {
		p.mu.Lock()
		if p.conns[topic] == conn {
			delete(p.conns, topic)
		}
		p.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg relayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(msg.Payload)
		if err != nil {
			continue
		}
		p.mu.Lock()
		p.queues[topic] = append(p.queues[topic], raw)
		p.mu.Unlock()
	}
}

func (p *pushChannels) drain(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.queues[topic]
	p.queues[topic] = nil
	return out
}

func (p *pushChannels) closeAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for topic, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, topic)
	}
	return firstErr
}
