package tasks

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload TaskPayload
		wantErr error
	}{
		{
			name:    "valid payload",
			payload: TaskPayload{TargetName: "linkedin:123"},
		},
		{
			name:    "missing target name",
			payload: TaskPayload{},
			wantErr: ErrTargetNameRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTaskPayloadUniqueID(t *testing.T) {
	p := TaskPayload{TargetName: "linkedin:123"}
	assert.Equal(t, "target:sync:linkedin:123", p.UniqueID())

	// Same target always produces the same ID so duplicate enqueues collide.
	other := TaskPayload{TargetName: "linkedin:123", EnqueuedAt: time.Now()}
	assert.Equal(t, p.UniqueID(), other.UniqueID())

	assert.NotEqual(t, p.UniqueID(), TaskPayload{TargetName: "facebook:123"}.UniqueID())
}

func TestTaskPayloadQueueName(t *testing.T) {
	// All targets share the sync queue so processing stays sequential.
	assert.Equal(t, QueueSync, TaskPayload{TargetName: "linkedin:123"}.QueueName())
	assert.Equal(t, QueueSync, TaskPayload{TargetName: "facebook:456"}.QueueName())
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	enqueued := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	p := TaskPayload{TargetName: "linkedin:123", EnqueuedAt: enqueued}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded TaskPayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, p.TargetName, decoded.TargetName)
	assert.True(t, p.EnqueuedAt.Equal(decoded.EnqueuedAt))
}
