// Package tasks provides task queue management using Asynq
package tasks

import (
	"errors"
	"fmt"
	"time"
)

const (
	// TypeTargetSync is the task type for target synchronization runs
	TypeTargetSync = "target:sync"
	// QueueSync is the queue all sync tasks are routed through
	QueueSync = "sync"
)

// ErrTargetNameRequired is returned when a payload has no target name
var ErrTargetNameRequired = errors.New("target name is required")

// TaskPayload represents the payload for a target sync task
type TaskPayload struct {
	TargetName string    `json:"target_name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Validate checks that the payload identifies a target
func (p TaskPayload) Validate() error {
	if p.TargetName == "" {
		return ErrTargetNameRequired
	}

	return nil
}

// UniqueID returns a unique identifier for this task.
// A second enqueue for the same target collides on this ID and is
// dropped, so at most one sync per target is in flight at a time.
func (p TaskPayload) UniqueID() string {
	return fmt.Sprintf("%s:%s", TypeTargetSync, p.TargetName)
}

// QueueName returns the queue name for this task payload
func (p TaskPayload) QueueName() string {
	return QueueSync
}
