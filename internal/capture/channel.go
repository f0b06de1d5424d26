package capture

import "sync"

// ChannelStats are counters for one FrameChannel.
type ChannelStats struct {
	Published        uint64 `json:"published"`
	Delivered        uint64 `json:"delivered"`
	Dropped          uint64 `json:"dropped"`
	ConsecutiveDrops uint64 `json:"consecutive_drops"`
}

// FrameChannel is a capacity-1 latest-wins slot. Put never blocks; an
// unread frame is replaced and counted as dropped. Get never blocks.
type FrameChannel struct {
	mu    sync.Mutex
	frame *Frame
	stats ChannelStats
}

func NewFrameChannel() *FrameChannel {
	return &FrameChannel{}
}

// Put stores f, discarding any unread frame.
func (c *FrameChannel) Put(f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frame != nil {
		c.stats.Dropped++
		c.stats.ConsecutiveDrops++
	}
	c.frame = f
	c.stats.Published++
}

// Get returns the buffered frame and clears the slot; ok is false when empty.
func (c *FrameChannel) Get() (*Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frame == nil {
		return nil, false
	}
	f := c.frame
	c.frame = nil
	c.stats.Delivered++
	c.stats.ConsecutiveDrops = 0
	return f, true
}

// Drain discards any buffered frame.
func (c *FrameChannel) Drain() {
	c.mu.Lock()
	c.frame = nil
	c.mu.Unlock()
}

// Len is 1 when a frame is waiting and 0 otherwise.
func (c *FrameChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return 0
	}
	return 1
}

func (c *FrameChannel) Stats() ChannelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
