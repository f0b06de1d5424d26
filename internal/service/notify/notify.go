package notify

import (
	"context"
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"
)

// Notification is one outgoing alert message.
type Notification struct {
	Event     model.AlertEvent
	Text      string
	ImagePath string
}

// Transport delivers notifications to a remote service. Implementations must
// connect lazily so Send can be the first call.
type Transport interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Fallback records notifications that could not be delivered.
type Fallback interface {
	Record(text, imagePath string) (string, error)
}

// Outcome is the result of one delivery attempt.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Channel rate-limits one transport. The lock is held across the interval
// check, the send and the timestamp update, so last-sent has a single writer.
type Channel struct {
	transport Transport
	limits    Store
	interval  time.Duration
	fallback  Fallback
	logger    *logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

// NewChannel wraps transport with a minimum interval between successful sends.
// A nil store keeps the state in memory.
func NewChannel(transport Transport, interval time.Duration, limits Store, fallback Fallback, log *logger.Logger) *Channel {
	if limits == nil {
		limits = NewMemoryStore()
	}
	return &Channel{
		transport: transport,
		limits:    limits,
		interval:  interval,
		fallback:  fallback,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (c *Channel) WithClock(now func() time.Time) *Channel {
	c.now = now
	return c
}

func (c *Channel) Name() string {
	return c.transport.Name()
}

// Deliver sends n unless the previous successful send was less than the
// interval ago. Skips leave the window untouched; failures are written to the
// fallback record and also leave it untouched.
func (c *Channel) Deliver(ctx context.Context, n Notification) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.transport.Name()
	now := c.now()

	last, err := c.limits.LastSent(ctx, name)
	if err != nil {
		c.logger.Warning("Rate limit state for %s unavailable, using local copy: %v", name, err)
		last = c.lastSent
	}

	if !last.IsZero() && now.Sub(last) < c.interval {
		c.logger.Info("Notification via %s skipped: last sent %s ago (minimum %s)",
			name, now.Sub(last).Round(time.Millisecond), c.interval)
		return OutcomeSkipped
	}

	if err := c.transport.Send(ctx, n); err != nil {
		derr := &model.DeliveryError{Channel: name, Err: err}
		c.logger.Error("%v", derr)
		if c.fallback != nil {
			if _, ferr := c.fallback.Record(n.Text, n.ImagePath); ferr != nil {
				c.logger.Error("Failed to record undelivered alert: %v", ferr)
			}
		}
		return OutcomeFailed
	}

	c.lastSent = now
	if err := c.limits.MarkSent(ctx, name, now); err != nil {
		c.logger.Warning("Failed to store rate limit state for %s: %v", name, err)
	}
	c.logger.Info("Notification sent via %s", name)
	return OutcomeSent
}
