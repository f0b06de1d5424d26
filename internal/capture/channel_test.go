package capture

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameChannel_EmptyGet(t *testing.T) {
	ch := NewFrameChannel()
	f, ok := ch.Get()
	assert.False(t, ok)
	assert.Nil(t, f)
	assert.Equal(t, 0, ch.Len())
}

func TestFrameChannel_LatestWins(t *testing.T) {
	ch := NewFrameChannel()
	for i := 1; i <= 5; i++ {
		ch.Put(&Frame{CameraID: 1, Seq: uint64(i)})
		assert.Equal(t, 1, ch.Len())
	}

	f, ok := ch.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(5), f.Seq)

	_, ok = ch.Get()
	assert.False(t, ok, "slot must be cleared by Get")

	stats := ch.Stats()
	assert.Equal(t, uint64(5), stats.Published)
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(4), stats.Dropped)
	assert.Equal(t, uint64(0), stats.ConsecutiveDrops)
}

func TestFrameChannel_Drain(t *testing.T) {
	ch := NewFrameChannel()
	ch.Put(&Frame{Seq: 1})
	ch.Drain()
	_, ok := ch.Get()
	assert.False(t, ok)
}

func TestFrameChannel_ConcurrentPutNeverGoesBackwards(t *testing.T) {
	ch := NewFrameChannel()
	const n = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			ch.Put(&Frame{Seq: uint64(i)})
		}
	}()

	var last uint64
	for last < n {
		if f, ok := ch.Get(); ok {
			require.Greater(t, f.Seq, last)
			last = f.Seq
		}
	}
	wg.Wait()
}
