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

// Package metrics exposes the node's Prometheus instrumentation: tasks
// sent and received, acknowledgements, retransmits, undelivered
// sends, and inbound payloads dropped for each reason. Every node in
// one process shares this package's Registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "waku_a2a"

// Registry is the registry every metric in this package registers
// into. The metric vars below are registered at package
// initialization, so replacing Registry afterwards does not move them;
// tests read the package vars directly and compare values before and
// after the action under test.
var Registry = prometheus.NewRegistry()

var (
	// TasksSent counts SendTask/Respond publishes, labeled by whether
	// the payload went out as EncryptedTask or plaintext Task.
	TasksSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "sent_total",
			Help:      "Total number of tasks published to a peer's inbox.",
		},
		[]string{"encrypted"},
	)

	// TasksReceived counts tasks PollTasks successfully surfaced to
	// the application.
	TasksReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "received_total",
			Help:      "Total number of tasks surfaced by PollTasks.",
		},
		[]string{"encrypted"},
	)

	// TasksDropped counts inbound payloads PollTasks could not
	// surface, labeled by why: crypto for AEAD authentication
	// failures, codec for everything else (invariant violations included).
	TasksDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "dropped_total",
			Help:      "Total number of inbound payloads dropped without reaching the application.",
		},
		[]string{"reason"},
	)

	// AcksSent counts one-shot acknowledgements published by the
	// reliability layer.
	AcksSent = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reliability",
			Name:      "acks_sent_total",
			Help:      "Total number of acknowledgements published.",
		},
	)

	// Retransmits counts reliability-layer retries issued by Tick.
	Retransmits = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reliability",
			Name:      "retransmits_total",
			Help:      "Total number of retransmissions issued after an ack_timeout elapsed.",
		},
	)

	// Undelivered counts pending sends that exhausted max_attempts
	// without an observed ack.
	Undelivered = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reliability",
			Name:      "undelivered_total",
			Help:      "Total number of sends abandoned after exhausting max_attempts.",
		},
	)

	// DuplicatesSuppressed counts payloads PollDedup discarded because
	// their message id had already been seen.
	DuplicatesSuppressed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reliability",
			Name:      "duplicates_suppressed_total",
			Help:      "Total number of duplicate deliveries discarded by PollDedup.",
		},
	)

	// TransportErrors counts Publish/Poll failures, labeled by the
	// transport.Err* sentinel they map to.
	TransportErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Total number of transport-level publish/poll failures.",
		},
		[]string{"kind"},
	)
)

// Handler serves this package's Registry in Prometheus exposition
// format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
