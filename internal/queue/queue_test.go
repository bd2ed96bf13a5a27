package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type payload struct {
	Date  string `json:"date"`
	Group string `json:"group"`
}

func TestMessageCodec(t *testing.T) {
	msg, err := NewMessage("record.submitted", payload{Date: "2024-01-02", Group: "kalp-1"})
	require.NoError(t, err)

	var p payload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, "kalp-1", p.Group)
}

func roundTrip(t *testing.T, q Queue) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	sent, err := NewMessage("students.dedupe", map[string]string{"by": "admin|ops"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, sent))

	select {
	case got := <-msgs:
		assert.Equal(t, sent.Type, got.Type)
		assert.JSONEq(t, string(sent.Body), string(got.Body))
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestInMemoryRoundTrip(t *testing.T) {
	roundTrip(t, NewInMemory(4))
}

func TestInMemoryConsumeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()
	_, open := <-msgs
	assert.False(t, open)
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	key := "attendancehub:test:" + t.Name()
	require.NoError(t, client.Del(context.Background(), key).Err())

	roundTrip(t, NewRedisQueue(client, key, zap.NewNop()))
}
