package alert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"facewatch/internal/dto"
	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/service/notify"
	"facewatch/internal/service/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegFrame = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0xFF, 0xD9}

type memoryRepo struct {
	mu     sync.Mutex
	events []model.AlertEvent
	err    error
}

func (m *memoryRepo) Append(_ context.Context, e *model.AlertEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.events = append(m.events, *e)
	return int64(len(m.events)), nil
}

func (m *memoryRepo) Query(context.Context, *dto.AlertFilters) ([]model.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AlertEvent(nil), m.events...), nil
}

func (m *memoryRepo) Count(context.Context, *dto.AlertFilters) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events), nil
}

func (m *memoryRepo) Stats(context.Context) (*dto.AlertStats, error) { return &dto.AlertStats{}, nil }
func (m *memoryRepo) DeleteAll(context.Context) error                { return nil }

type scriptedTransport struct {
	mu    sync.Mutex
	sent  int
	err   error
	texts []string
}

func (s *scriptedTransport) Name() string { return "scripted" }

func (s *scriptedTransport) Send(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	s.texts = append(s.texts, n.Text)
	return s.err
}

type recordingPlayer struct {
	played []string
	err    error
}

func (p *recordingPlayer) Play(path string) error {
	p.played = append(p.played, path)
	return p.err
}

type fixture struct {
	dispatcher *Dispatcher
	repo       *memoryRepo
	transport  *scriptedTransport
	player     *recordingPlayer
	shotDir    string
	fallback   *storage.FallbackStore
	clock      time.Time
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		repo:      &memoryRepo{},
		transport: &scriptedTransport{},
		player:    &recordingPlayer{},
		shotDir:   filepath.Join(root, "screenshots"),
		fallback:  storage.NewFallbackStore(filepath.Join(root, "failed")),
		clock:     time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local),
	}
	log := logger.NewNop()
	ch := notify.NewChannel(f.transport, 5*time.Second, nil, f.fallback, log).WithClock(func() time.Time { return f.clock })

	f.dispatcher = NewDispatcher(storage.NewScreenshotStore(f.shotDir), f.player, []Notifier{ch}, f.repo, log, opts).
		WithClock(func() time.Time { return f.clock })
	return f
}

func allOn() Options {
	return Options{AlertsEnabled: true, ScreenshotsEnabled: true, SoundEnabled: true, SoundPath: "/sounds/alert.wav"}
}

func TestTrigger_KnownFace(t *testing.T) {
	f := newFixture(t, allOn())
	age := 31
	gender := model.GenderFemale

	ev := f.dispatcher.Trigger(context.Background(), AlertRequest{
		CameraID: 1, CameraName: "Lobby", FaceName: "Alice", Confidence: 0.82,
		Age: &age, Gender: &gender, Frame: jpegFrame,
	})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "Alice", ev.FaceName)
	assert.InDelta(t, 0.82, ev.Confidence, 1e-9)
	assert.Equal(t, int64(1), ev.RecordID)

	require.NotEmpty(t, ev.ScreenshotPath)
	assert.Equal(t, filepath.Join(f.shotDir, "20260314_092653_cam1_Alice.jpg"), ev.ScreenshotPath)
	data, err := os.ReadFile(ev.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, jpegFrame, data)

	assert.Equal(t, 1, f.dispatcher.History().Len())
	assert.Len(t, f.repo.events, 1)
	assert.Equal(t, []string{"/sounds/alert.wav"}, f.player.played)
	require.Equal(t, 1, f.transport.sent)
	assert.Contains(t, f.transport.texts[0], "Name: Alice")
	assert.Contains(t, f.transport.texts[0], "Confidence: 82.0%")
}

func TestTrigger_ScreenshotsDisabled(t *testing.T) {
	f := newFixture(t, allOn())
	f.dispatcher.SetScreenshotsEnabled(false)

	ev := f.dispatcher.Trigger(context.Background(), AlertRequest{CameraID: 1, CameraName: "Lobby", FaceName: "Alice", Confidence: 0.9, Frame: jpegFrame})

	assert.Empty(t, ev.ScreenshotPath)
	assert.Equal(t, 1, f.dispatcher.History().Len())
	assert.Len(t, f.repo.events, 1)
	_, err := os.Stat(f.shotDir)
	assert.True(t, os.IsNotExist(err))
}

func TestTrigger_ScreenshotFailureDegrades(t *testing.T) {
	f := newFixture(t, allOn())

	// empty frame cannot be persisted
	ev := f.dispatcher.Trigger(context.Background(), AlertRequest{CameraID: 2, CameraName: "Gate", FaceName: "Bob", Confidence: 0.9})
	assert.Empty(t, ev.ScreenshotPath)
	assert.Equal(t, 1, f.dispatcher.History().Len())
	assert.Len(t, f.repo.events, 1)
}

func TestTrigger_TransportAlwaysFails(t *testing.T) {
	f := newFixture(t, allOn())
	f.transport.err = errors.New("connection refused")

	ev := f.dispatcher.Trigger(context.Background(), AlertRequest{CameraID: 1, CameraName: "Lobby", FaceName: "Alice", Confidence: 0.82, Frame: jpegFrame})

	recent := f.dispatcher.History().Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, ev.ID, recent[0].ID)
	assert.NotEmpty(t, recent[0].ScreenshotPath)

	data, err := os.ReadFile(f.fallback.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Face detected! | Name: Alice")

	copies, err := os.ReadDir(filepath.Join(filepath.Dir(f.fallback.LogPath()), "images"))
	require.NoError(t, err)
	assert.Len(t, copies, 1)
	// the original screenshot is left in place
	_, err = os.Stat(ev.ScreenshotPath)
	assert.NoError(t, err)
}

func TestTrigger_RateLimitAcrossTriggers(t *testing.T) {
	f := newFixture(t, allOn())
	req := AlertRequest{CameraID: 1, CameraName: "Lobby", FaceName: "Alice", Confidence: 0.82, Frame: jpegFrame}

	f.dispatcher.Trigger(context.Background(), req)
	f.clock = f.clock.Add(3 * time.Second)
	f.dispatcher.Trigger(context.Background(), req)
	assert.Equal(t, 1, f.transport.sent)

	f.clock = f.clock.Add(3 * time.Second)
	f.dispatcher.Trigger(context.Background(), req)
	assert.Equal(t, 2, f.transport.sent)

	assert.Equal(t, 3, f.dispatcher.History().Len())
	assert.Len(t, f.repo.events, 3)
}

func TestTrigger_AlertsDisabledStillRecords(t *testing.T) {
	f := newFixture(t, allOn())
	f.dispatcher.SetAlertsEnabled(false)

	f.dispatcher.Trigger(context.Background(), AlertRequest{CameraID: 1, CameraName: "Lobby", FaceName: "Alice", Confidence: 0.8, Frame: jpegFrame})

	assert.Equal(t, 0, f.transport.sent)
	assert.Empty(t, f.player.played)
	assert.Equal(t, 1, f.dispatcher.History().Len())
	assert.Len(t, f.repo.events, 1)
}

func TestTrigger_SideChannelFailuresDoNotPropagate(t *testing.T) {
	f := newFixture(t, allOn())
	f.player.err = errors.New("no audio device")
	f.repo.err = errors.New("disk full")

	ev := f.dispatcher.Trigger(context.Background(), AlertRequest{CameraID: 1, CameraName: "Lobby", FaceName: "Alice", Confidence: 0.8, Frame: jpegFrame})
	assert.Equal(t, int64(0), ev.RecordID)
	assert.Equal(t, 1, f.dispatcher.History().Len())
	assert.Equal(t, 1, f.transport.sent)
}

func TestTrigger_NotifiesObservers(t *testing.T) {
	f := newFixture(t, allOn())
	var seen []string
	f.dispatcher.OnEvent(func(e model.AlertEvent) { seen = append(seen, e.FaceName) })

	f.dispatcher.Trigger(context.Background(), AlertRequest{CameraID: 1, FaceName: "Alice", Frame: jpegFrame})
	assert.Equal(t, []string{"Alice"}, seen)
}

func TestHistory_RecentNewestFirst(t *testing.T) {
	h := NewHistory()
	for _, name := range []string{"a", "b", "c"} {
		h.Append(model.AlertEvent{FaceName: name})
	}

	names := func(evs []model.AlertEvent) string {
		var parts []string
		for _, e := range evs {
			parts = append(parts, e.FaceName)
		}
		return strings.Join(parts, ",")
	}
	assert.Equal(t, "c,b,a", names(h.Recent(0)))
	assert.Equal(t, "c,b", names(h.Recent(2)))
	assert.Equal(t, "c,b,a", names(h.Recent(10)))

	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Recent(5))
}
