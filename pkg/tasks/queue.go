package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// QueueManager manages task queuing
type QueueManager struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewQueueManager creates a new queue manager
func NewQueueManager(redisOpt *asynq.RedisClientOpt) *QueueManager {
	return &QueueManager{
		client:    asynq.NewClient(*redisOpt),
		inspector: asynq.NewInspector(*redisOpt),
	}
}

// EnqueueSync enqueues a target sync task
func (q *QueueManager) EnqueueSync(ctx context.Context, payload TaskPayload, opts ...asynq.Option) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeTargetSync, data)

	// Default options. Retries stay off because the sync itself already
	// retries transient API failures internally; a failed run is picked
	// up again on the next schedule tick.
	defaultOpts := []asynq.Option{
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(payload.QueueName()),
		asynq.MaxRetry(0),
		asynq.Timeout(30 * time.Minute),
	}

	allOpts := defaultOpts
	allOpts = append(allOpts, opts...)

	_, err = q.client.EnqueueContext(ctx, task, allOpts...)

	return err
}

// IsTaskPendingOrRunning checks if a task is pending or running
func (q *QueueManager) IsTaskPendingOrRunning(task TaskPayload) (bool, error) {
	info, err := q.inspector.GetTaskInfo(task.QueueName(), task.UniqueID())
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return info.State == asynq.TaskStatePending ||
		info.State == asynq.TaskStateActive ||
		info.State == asynq.TaskStateRetry, nil
}

// GetQueueStats returns queue statistics
func (q *QueueManager) GetQueueStats(queueName string) (*asynq.QueueInfo, error) {
	return q.inspector.GetQueueInfo(queueName)
}

// Close closes the queue manager
func (q *QueueManager) Close() error {
	return q.client.Close()
}

// IsNotFound reports whether the inspector error means the task or
// queue simply does not exist yet.
func IsNotFound(err error) bool {
	if errors.Is(err, asynq.ErrQueueNotFound) || errors.Is(err, asynq.ErrTaskNotFound) {
		return true
	}

	// Inspector methods that predate the exported sentinels still leak
	// internal string errors, so match the message as well.
	return strings.Contains(err.Error(), "NOT_FOUND") ||
		strings.Contains(err.Error(), "does not exist")
}
