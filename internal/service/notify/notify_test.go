package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"facewatch/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu    sync.Mutex
	calls []Notification
	err   error
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	return f.err
}

func (f *fakeTransport) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFallback struct {
	texts  []string
	images []string
}

func (f *fakeFallback) Record(text, imagePath string) (string, error) {
	f.texts = append(f.texts, text)
	f.images = append(f.images, imagePath)
	return "", nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestChannel(tr Transport, fb Fallback) (*Channel, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ch := NewChannel(tr, 5*time.Second, nil, fb, logger.NewNop()).WithClock(clock.now)
	return ch, clock
}

func TestChannel_SkipsWithinInterval(t *testing.T) {
	tr := &fakeTransport{}
	ch, clock := newTestChannel(tr, nil)

	assert.Equal(t, OutcomeSent, ch.Deliver(context.Background(), Notification{Text: "t=0"}))
	clock.advance(3 * time.Second)
	assert.Equal(t, OutcomeSkipped, ch.Deliver(context.Background(), Notification{Text: "t=3"}))
	assert.Equal(t, 1, tr.attempts())
}

func TestChannel_SendsAfterInterval(t *testing.T) {
	tr := &fakeTransport{}
	ch, clock := newTestChannel(tr, nil)

	assert.Equal(t, OutcomeSent, ch.Deliver(context.Background(), Notification{Text: "t=0"}))
	clock.advance(6 * time.Second)
	assert.Equal(t, OutcomeSent, ch.Deliver(context.Background(), Notification{Text: "t=6"}))
	assert.Equal(t, 2, tr.attempts())
}

func TestChannel_SkipDoesNotResetWindow(t *testing.T) {
	tr := &fakeTransport{}
	ch, clock := newTestChannel(tr, nil)

	ch.Deliver(context.Background(), Notification{})
	clock.advance(4 * time.Second)
	assert.Equal(t, OutcomeSkipped, ch.Deliver(context.Background(), Notification{}))
	clock.advance(time.Second)
	// 5s after the last successful send, not after the skip
	assert.Equal(t, OutcomeSent, ch.Deliver(context.Background(), Notification{}))
}

func TestChannel_FailureRecordsFallbackAndKeepsWindow(t *testing.T) {
	tr := &fakeTransport{err: errors.New("network unreachable")}
	fb := &fakeFallback{}
	ch, clock := newTestChannel(tr, fb)

	out := ch.Deliver(context.Background(), Notification{Text: "Face detected!", ImagePath: "/shots/a.jpg"})
	assert.Equal(t, OutcomeFailed, out)
	require.Len(t, fb.texts, 1)
	assert.Equal(t, "Face detected!", fb.texts[0])
	assert.Equal(t, "/shots/a.jpg", fb.images[0])

	// a failure does not start the interval
	clock.advance(time.Second)
	tr.err = nil
	assert.Equal(t, OutcomeSent, ch.Deliver(context.Background(), Notification{Text: "retry"}))
	assert.Equal(t, 2, tr.attempts())
}

func TestChannel_ConcurrentDeliveriesSerialize(t *testing.T) {
	tr := &fakeTransport{}
	ch, _ := newTestChannel(tr, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.Deliver(context.Background(), Notification{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, tr.attempts())
}

type brokenStore struct{}

func (brokenStore) LastSent(context.Context, string) (time.Time, error) {
	return time.Time{}, errors.New("store down")
}
func (brokenStore) MarkSent(context.Context, string, time.Time) error {
	return errors.New("store down")
}

func TestChannel_StoreFailureFallsBackToLocalState(t *testing.T) {
	tr := &fakeTransport{}
	clock := &fakeClock{t: time.Unix(1000, 0)}
	ch := NewChannel(tr, 5*time.Second, brokenStore{}, nil, logger.NewNop()).WithClock(clock.now)

	assert.Equal(t, OutcomeSent, ch.Deliver(context.Background(), Notification{}))
	clock.advance(time.Second)
	assert.Equal(t, OutcomeSkipped, ch.Deliver(context.Background(), Notification{}))
}
