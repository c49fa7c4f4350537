// SPDX-License-Identifier: LGPL-3.0-or-later

package a2a

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskState is a node in the task lifecycle DAG:
// submitted -> working -> {input_required <-> working} -> {completed|failed|cancelled}.
type TaskState string

const (
	TaskSubmitted     TaskState = "submitted"
	TaskWorking       TaskState = "working"
	TaskInputRequired TaskState = "input_required"
	TaskCompleted     TaskState = "completed"
	TaskFailed        TaskState = "failed"
	TaskCancelled     TaskState = "cancelled"
)

// IsTerminal reports whether a task in this state is immutable.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

func (s TaskState) valid() bool {
	switch s {
	case TaskSubmitted, TaskWorking, TaskInputRequired, TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Task is the unit of work exchanged between two agents.
type Task struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	State   TaskState `json:"state"`
	Message Message   `json:"message"`
	Result  *Message  `json:"result"`
}

// NewTask constructs a Task in state submitted with a fresh v4 UUID.
// It enforces the from != to invariant at construction time.
func NewTask(from, to string, message Message) (*Task, error) {
	if from == to {
		return nil, fmt.Errorf("%w: from and to must differ, both are %q", ErrInvariant, from)
	}
	return &Task{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		State:   TaskSubmitted,
		Message: message,
	}, nil
}

// ErrIllegalStateTransition is returned by respond() when terminalState
// is not terminal, or the task is already in a terminal state.
var ErrIllegalStateTransition = fmt.Errorf("invariant.state: illegal task state transition")
