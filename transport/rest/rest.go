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

// Package rest implements transport.Transport against a relay's REST
// API (POST /relay/v1/auto/messages, GET
// /relay/v1/auto/messages/{topic}), with an optional WebSocket push
// channel layered on top for lower-latency delivery. The push channel
// is an additive optimization: Poll always issues the REST GET too, so
// a lost or never-established WebSocket connection degrades silently
// to pure polling.
package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/waku-a2a/agent/internal/metrics"
	"github.com/waku-a2a/agent/transport"
)

// relayMessage is the Waku REST schema's WakuMessage: contentTopic and
// a base64 payload, carried alongside a timestamp and version this
// package always sets to 0 (no message versioning in v1).
type relayMessage struct {
	ContentTopic string `json:"contentTopic"`
	Payload      string `json:"payload"`
	Timestamp    int64  `json:"timestamp"`
	Version      int    `json:"version"`
}

// Transport is a transport.Transport backed by a relay's REST API.
type Transport struct {
	baseURL    string
	httpClient *http.Client

	mu         sync.Mutex
	subscribed map[string]bool

	push *pushChannels
}

// New creates a Transport against baseURL (e.g. "https://relay.example.com")
// using a default 30s-timeout HTTP client. The WebSocket push
// enrichment is disabled; use NewWithPush to enable it.
func New(baseURL string) *Transport {
	return NewWithClient(baseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewWithClient creates a Transport with a caller-supplied HTTP client,
// for custom timeouts, TLS config, or transport-level retries.
func NewWithClient(baseURL string, httpClient *http.Client) *Transport {
	return &Transport{
		baseURL:    baseURL,
		httpClient: httpClient,
		subscribed: make(map[string]bool),
	}
}

// NewWithPush creates a Transport that also attempts a WebSocket push
// channel for every subscribed topic, dialed against wsBaseURL (e.g.
// "wss://relay.example.com"). A push channel that never connects, or
// disconnects later, does not affect Publish/Poll correctness — Poll
// always falls back to the REST GET.
func NewWithPush(baseURL, wsBaseURL string) *Transport {
	t := New(baseURL)
	t.push = newPushChannels(wsBaseURL)
	return t
}

func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	body := relayMessage{
		ContentTopic: topic,
		Payload:      base64.StdEncoding.EncodeToString(payload),
		Timestamp:    time.Now().UnixNano(),
		Version:      0,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("rest: marshal publish request: %w", err)
	}

	endpoint := t.baseURL + "/relay/v1/auto/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		metrics.TransportErrors.WithLabelValues("unavailable").Inc()
		return fmt.Errorf("%w: %s", transport.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.TransportErrors.WithLabelValues("unavailable").Inc()
		return fmt.Errorf("%w: %s", transport.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.TransportErrors.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: relay returned %d: %s", transport.ErrRejected, resp.StatusCode, respBody)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, topic string) error {
	t.mu.Lock()
	t.subscribed[topic] = true
	t.mu.Unlock()

	if t.push != nil {
		// Best-effort: a failed dial leaves Poll relying on the REST
		// GET alone, per the package-level contract.
		t.push.ensureConnected(ctx, topic)
	}
	return nil
}

func (t *Transport) Poll(ctx context.Context, topic string) ([][]byte, error) {
	t.mu.Lock()
	subscribed := t.subscribed[topic]
	t.mu.Unlock()
	if !subscribed {
		return nil, nil
	}

	var out [][]byte
	if t.push != nil {
		out = append(out, t.push.drain(topic)...)
	}

	polled, err := t.pollREST(ctx, topic)
	if err != nil {
		return out, err
	}
	return append(out, polled...), nil
}

func (t *Transport) pollREST(ctx context.Context, topic string) ([][]byte, error) {
	endpoint := t.baseURL + "/relay/v1/auto/messages/" + url.PathEscape(topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		metrics.TransportErrors.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: %s", transport.ErrUnavailable, err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.TransportErrors.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: %s", transport.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.TransportErrors.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: relay returned %d: %s", transport.ErrRejected, resp.StatusCode, respBody)
	}

	var decoded []relayMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		metrics.TransportErrors.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: decode poll response: %s", transport.ErrUnavailable, err)
	}

	out := make([][]byte, 0, len(decoded))
	for _, m := range decoded {
		raw, err := base64.StdEncoding.DecodeString(m.Payload)
		if err != nil {
			continue // malformed relay entry, drop rather than fail the whole poll
		}
		out = append(out, raw)
	}
	return out, nil
}

// Close releases any open push connections.
func (t *Transport) Close() error {
	if t.push == nil {
		return nil
	}
	return t.push.closeAll()
}
