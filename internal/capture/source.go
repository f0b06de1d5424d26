package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/model"
)

// Opener opens the capture device for a camera.
type Opener interface {
	Open(cam config.Camera) (Device, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(cam config.Camera) (Device, error)

func (f OpenerFunc) Open(cam config.Camera) (Device, error) { return f(cam) }

// State is the user-visible camera state.
type State string

const (
	StateRunning State = "Running"
	StateStopped State = "Stopped"
	StateError   State = "Error"
)

// source is one camera's capture goroutine together with its frame slot.
type source struct {
	cam     config.Camera
	channel *FrameChannel
	logger  *logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	captured atomic.Uint64
	mu       sync.Mutex
	state    State
	lastErr  error
}

func newSource(cam config.Camera, log *logger.Logger) *source {
	return &source{
		cam:     cam,
		channel: NewFrameChannel(),
		logger:  log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   StateRunning,
	}
}

// signal asks the capture loop to exit. Safe to call more than once.
func (s *source) signal() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *source) setState(state State, err error) {
	s.mu.Lock()
	s.state = state
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
}

func (s *source) snapshot() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

// run is the capture loop. It exits on either stop signal or when the device
// cannot be opened, and always releases the device.
func (s *source) run(opener Opener, cycle <-chan struct{}, retryDelay time.Duration) {
	defer close(s.done)

	dev, err := opener.Open(s.cam)
	if err != nil {
		derr := &model.DeviceError{CameraID: s.cam.ID, Op: "open " + string(s.cam.Source), Err: err}
		s.logger.Error("Camera %d (%s): %v", s.cam.ID, s.cam.Name, derr)
		s.setState(StateError, derr)
		return
	}
	defer func() {
		if err := dev.Close(); err != nil {
			s.logger.Warning("Camera %d: failed to release device: %v", s.cam.ID, err)
		}
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateStopped
		}
		s.mu.Unlock()
	}()

	if err := dev.Configure(s.cam.Resolution.Width, s.cam.Resolution.Height, s.cam.FPS); err != nil {
		s.logger.Warning("Camera %d: could not apply %dx%d@%d: %v", s.cam.ID,
			s.cam.Resolution.Width, s.cam.Resolution.Height, s.cam.FPS, err)
	}

	s.logger.Info("Camera %d (%s) capturing from %s", s.cam.ID, s.cam.Name, s.cam.Source)

	var seq uint64
	for {
		select {
		case <-s.stop:
			return
		case <-cycle:
			return
		default:
		}

		data, err := dev.Read()
		if err != nil {
			s.setState(StateRunning, &model.DeviceError{CameraID: s.cam.ID, Op: "read", Err: err})
			s.logger.Warning("Camera %d: failed to read frame, retrying in %s: %v", s.cam.ID, retryDelay, err)
			select {
			case <-s.stop:
				return
			case <-cycle:
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		seq++
		s.channel.Put(&Frame{
			CameraID:   s.cam.ID,
			Seq:        seq,
			CapturedAt: time.Now(),
			Data:       data,
		})
		s.captured.Add(1)
	}
}
