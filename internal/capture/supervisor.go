package capture

import (
	"fmt"
	"sync"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/model"
)

const (
	DefaultGracePeriod = 2 * time.Second
	DefaultRetryDelay  = time.Second
)

// SupervisorConfig tunes teardown and read-retry timing.
type SupervisorConfig struct {
	GracePeriod time.Duration
	RetryDelay  time.Duration
}

// Status is a point-in-time snapshot of one camera.
type Status struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Enabled        bool   `json:"enabled"`
	Running        bool   `json:"running"`
	State          State  `json:"state"`
	QueueDepth     int    `json:"queue_depth"`
	FramesCaptured uint64 `json:"frames_captured"`
	FramesDropped  uint64 `json:"frames_dropped"`
	LastError      string `json:"last_error,omitempty"`
}

// Supervisor owns one capture goroutine and frame slot per running camera.
type Supervisor struct {
	// lifecycle serializes start/stop so a camera is never captured by two goroutines
	lifecycle sync.Mutex

	mu      sync.RWMutex
	cameras map[int]config.Camera
	order   []int
	sources map[int]*source
	cycle   chan struct{}

	opener Opener
	logger *logger.Logger
	grace  time.Duration
	retry  time.Duration
}

// NewSupervisor validates the camera set and returns an idle supervisor.
func NewSupervisor(cameras []config.Camera, opener Opener, log *logger.Logger, cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	s := &Supervisor{
		sources: make(map[int]*source),
		opener:  opener,
		logger:  log,
		grace:   cfg.GracePeriod,
		retry:   cfg.RetryDelay,
	}
	if err := s.setCameras(cameras); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Supervisor) setCameras(cameras []config.Camera) error {
	if err := config.ValidateCameras(cameras); err != nil {
		return err
	}
	byID := make(map[int]config.Camera, len(cameras))
	order := make([]int, 0, len(cameras))
	for _, c := range cameras {
		byID[c.ID] = c
		order = append(order, c.ID)
	}

	s.mu.Lock()
	s.cameras = byID
	s.order = order
	s.mu.Unlock()
	return nil
}

// Cameras returns the configured cameras in configuration order.
func (s *Supervisor) Cameras() []config.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]config.Camera, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cameras[id])
	}
	return out
}

// Camera returns the configuration for id.
func (s *Supervisor) Camera(id int) (config.Camera, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cameras[id]
	return c, ok
}

// SetCameras replaces the whole camera set. Running cameras that were removed
// or whose configuration changed are stopped; nothing is started.
func (s *Supervisor) SetCameras(cameras []config.Camera) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := config.ValidateCameras(cameras); err != nil {
		return err
	}
	next := make(map[int]config.Camera, len(cameras))
	for _, c := range cameras {
		next[c.ID] = c
	}

	s.mu.RLock()
	var stale []int
	for id, src := range s.sources {
		if c, ok := next[id]; !ok || !sameCamera(c, src.cam) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.teardown(id)
	}

	s.logger.Info("Camera configuration reloaded: %d camera(s), %d stopped", len(cameras), len(stale))
	return s.setCameras(cameras)
}

func sameCamera(a, b config.Camera) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Source == b.Source &&
		a.IsEnabled() == b.IsEnabled() && a.Resolution == b.Resolution &&
		a.FPS == b.FPS && a.Rotation == b.Rotation
}

// StartAll starts every enabled camera under a fresh stop cycle and returns
// how many were started.
func (s *Supervisor) StartAll() int {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopAllLocked()

	s.mu.Lock()
	s.cycle = make(chan struct{})
	s.mu.Unlock()

	started := 0
	for _, cam := range s.Cameras() {
		if !cam.IsEnabled() {
			continue
		}
		s.spawn(cam)
		started++
	}
	s.logger.Info("Started %d camera(s)", started)
	return started
}

// StopAll stops every camera. It returns within roughly one grace period even
// if some capture goroutines are stuck in device I/O.
func (s *Supervisor) StopAll() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopAllLocked()
}

func (s *Supervisor) stopAllLocked() {
	s.mu.Lock()
	if s.cycle != nil {
		close(s.cycle)
		s.cycle = nil
	}
	sources := make(map[int]*source, len(s.sources))
	for id, src := range s.sources {
		sources[id] = src
		src.signal()
	}
	s.mu.Unlock()

	if len(sources) == 0 {
		return
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	expired := false
	for id, src := range sources {
		if expired {
			select {
			case <-src.done:
			default:
				s.logger.Warning("Camera %d did not stop within %s, continuing", id, s.grace)
			}
			continue
		}
		select {
		case <-src.done:
		case <-timer.C:
			expired = true
			s.logger.Warning("Camera %d did not stop within %s, continuing", id, s.grace)
		}
	}

	s.mu.Lock()
	for id, src := range sources {
		src.channel.Drain()
		if s.sources[id] == src {
			delete(s.sources, id)
		}
	}
	s.mu.Unlock()

	s.logger.Info("Stopped %d camera(s)", len(sources))
}

// StartCamera starts one camera, restarting it if it is already running.
// Unknown or disabled cameras yield a *model.ConfigurationError.
func (s *Supervisor) StartCamera(id int) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	cam, ok := s.Camera(id)
	if !ok {
		return &model.ConfigurationError{Op: fmt.Sprintf("start camera %d", id), Err: model.ErrUnknownCamera}
	}
	if !cam.IsEnabled() {
		return &model.ConfigurationError{Op: fmt.Sprintf("start camera %d", id), Err: model.ErrCameraDisabled}
	}

	s.teardown(id)

	s.mu.Lock()
	if s.cycle == nil {
		s.cycle = make(chan struct{})
	}
	s.mu.Unlock()

	s.spawn(cam)
	return nil
}

// StopCamera stops one camera. Stopping a camera that is not running is a no-op.
func (s *Supervisor) StopCamera(id int) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if _, ok := s.Camera(id); !ok {
		return &model.ConfigurationError{Op: fmt.Sprintf("stop camera %d", id), Err: model.ErrUnknownCamera}
	}
	s.teardown(id)
	return nil
}

// spawn must be called with lifecycle held.
func (s *Supervisor) spawn(cam config.Camera) {
	src := newSource(cam, s.logger)

	s.mu.Lock()
	cycle := s.cycle
	s.sources[cam.ID] = src
	s.mu.Unlock()

	go src.run(s.opener, cycle, s.retry)
}

// teardown signals, joins with the grace period, drains and forgets a camera.
// Must be called with lifecycle held.
func (s *Supervisor) teardown(id int) {
	s.mu.RLock()
	src, ok := s.sources[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	src.signal()
	select {
	case <-src.done:
	case <-time.After(s.grace):
		// The wedged goroutine keeps the device until its blocking read returns.
		s.logger.Warning("Camera %d did not stop within %s, continuing", id, s.grace)
	}

	src.channel.Drain()

	s.mu.Lock()
	if s.sources[id] == src {
		delete(s.sources, id)
	}
	s.mu.Unlock()
	s.logger.Info("Camera %d stopped", id)
}

// LatestFrame takes the newest unread frame for a camera, if any.
func (s *Supervisor) LatestFrame(id int) (*Frame, bool) {
	s.mu.RLock()
	src, ok := s.sources[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return src.channel.Get()
}

// Status reports the state of one camera.
func (s *Supervisor) Status(id int) (Status, error) {
	s.mu.RLock()
	cam, ok := s.cameras[id]
	src := s.sources[id]
	s.mu.RUnlock()

	if !ok {
		return Status{}, &model.ConfigurationError{Op: fmt.Sprintf("status of camera %d", id), Err: model.ErrUnknownCamera}
	}

	st := Status{
		ID:      cam.ID,
		Name:    cam.Name,
		Enabled: cam.IsEnabled(),
		State:   StateStopped,
	}
	if src == nil {
		return st, nil
	}

	state, lastErr := src.snapshot()
	stats := src.channel.Stats()
	st.State = state
	st.Running = state == StateRunning
	st.QueueDepth = src.channel.Len()
	st.FramesCaptured = src.captured.Load()
	st.FramesDropped = stats.Dropped
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	return st, nil
}

// Statuses reports every configured camera in configuration order.
func (s *Supervisor) Statuses() []Status {
	cams := s.Cameras()
	out := make([]Status, 0, len(cams))
	for _, c := range cams {
		if st, err := s.Status(c.ID); err == nil {
			out = append(out, st)
		}
	}
	return out
}
