package notify

import (
	"context"
	"testing"
	"time"

	"facewatch/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	last, err := s.LastSent(ctx, "telegram")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	at := time.Unix(1700000000, 0)
	require.NoError(t, s.MarkSent(ctx, "telegram", at))
	last, _ = s.LastSent(ctx, "telegram")
	assert.True(t, last.Equal(at))

	other, _ := s.LastSent(ctx, "mqtt")
	assert.True(t, other.IsZero())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "facewatch:notify:", time.Hour)
	ctx := context.Background()

	last, err := s.LastSent(ctx, "telegram")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	at := time.Unix(1700000000, 123)
	require.NoError(t, s.MarkSent(ctx, "telegram", at))

	last, err = s.LastSent(ctx, "telegram")
	require.NoError(t, err)
	assert.True(t, last.Equal(at))
	assert.True(t, mr.Exists("facewatch:notify:telegram:last_sent"))
	assert.Equal(t, time.Hour, mr.TTL("facewatch:notify:telegram:last_sent"))
}

func TestRedisStore_SharedBetweenChannels(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "facewatch:notify:", time.Hour)
	clock := &fakeClock{t: time.Unix(2000, 0)}

	first := &fakeTransport{}
	second := &fakeTransport{}
	a := NewChannel(first, 5*time.Second, store, nil, logger.NewNop()).WithClock(clock.now)
	b := NewChannel(second, 5*time.Second, store, nil, logger.NewNop()).WithClock(clock.now)

	assert.Equal(t, OutcomeSent, a.Deliver(context.Background(), Notification{}))
	clock.advance(2 * time.Second)
	// same transport name, so the second process sees the first one's send
	assert.Equal(t, OutcomeSkipped, b.Deliver(context.Background(), Notification{}))
	assert.Equal(t, 0, second.attempts())
}
