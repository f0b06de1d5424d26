package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"facewatch/internal/logger"
)

var ErrNotInitialized = errors.New("audio system not initialized")

// Player plays a sound file without blocking the caller.
type Player interface {
	Play(path string) error
}

// System is the process-wide audio subsystem. The host calls Init once at
// startup and Shutdown once at exit; repeated calls are no-ops.
type System struct {
	command string
	logger  *logger.Logger

	initOnce     sync.Once
	shutdownOnce sync.Once

	mu      sync.Mutex
	ready   bool
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewSystem returns an uninitialized audio system that plays files through
// the external command (for example "aplay" or "paplay").
func NewSystem(command string, log *logger.Logger) *System {
	return &System{command: command, logger: log}
}

// Init prepares the system for playback.
func (s *System) Init() error {
	var err error
	s.initOnce.Do(func() {
		if s.command == "" {
			err = fmt.Errorf("audio: no player command configured")
			return
		}
		if _, lookErr := exec.LookPath(s.command); lookErr != nil {
			s.logger.Warning("Sound player %q not found in PATH: %v", s.command, lookErr)
		}
		s.mu.Lock()
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.ready = true
		s.mu.Unlock()
		s.logger.Info("Audio system initialized (player: %s)", s.command)
	})
	return err
}

// Shutdown stops any sounds still playing and waits for the players to exit.
func (s *System) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		wasReady := s.ready
		s.ready = false
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()

		s.running.Wait()
		if wasReady {
			s.logger.Info("Audio system shut down")
		}
	})
}

// Play starts the player for path and returns once it is running.
func (s *System) Play(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return ErrNotInitialized
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio: sound file: %w", err)
	}

	cmd := exec.CommandContext(s.ctx, s.command, path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start %s: %w", s.command, err)
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		if err := cmd.Wait(); err != nil && s.ctx.Err() == nil {
			s.logger.Warning("Sound player exited with error: %v", err)
		}
	}()
	return nil
}
