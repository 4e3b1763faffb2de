package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	data, err := json.Marshal(JobPayload{JobID: id, CreatedAt: created})
	require.NoError(t, err)

	payload, err := ParsePayload(data)
	require.NoError(t, err)
	assert.Equal(t, id, payload.JobID)
	assert.True(t, created.Equal(payload.CreatedAt))
}

func TestParsePayloadInvalid(t *testing.T) {
	_, err := ParsePayload([]byte("not json"))
	assert.Error(t, err)
}

func TestNewRequiresRedis(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)

	_, err = NewWorker(&WorkerConfig{}, nil)
	assert.Error(t, err)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(&Config{RedisURL: "://bad"})
	assert.Error(t, err)
}
