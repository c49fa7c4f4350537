// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, TasksSent)
	assert.NotNil(t, TasksReceived)
	assert.NotNil(t, TasksDropped)
	assert.NotNil(t, AcksSent)
	assert.NotNil(t, Retransmits)
	assert.NotNil(t, Undelivered)
	assert.NotNil(t, DuplicatesSuppressed)
	assert.NotNil(t, TransportErrors)
}

func TestRetransmitsCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(Retransmits)
	Retransmits.Inc()
	after := testutil.ToFloat64(Retransmits)
	assert.Equal(t, before+1, after)
}

func TestTasksDroppedLabelsByReason(t *testing.T) {
	before := testutil.ToFloat64(TasksDropped.WithLabelValues("codec"))
	TasksDropped.WithLabelValues("codec").Inc()
	after := testutil.ToFloat64(TasksDropped.WithLabelValues("codec"))
	assert.Equal(t, before+1, after)
}
