package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"facewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCameras_Defaults(t *testing.T) {
	cams, err := ParseCameras([]byte(`
cameras:
  - id: 1
    name: Lobby
    source: 0
    rotate: 90
  - id: 2
    source: rtsp://cam/stream
    enabled: false
    resolution: {width: 1280, height: 720}
    fps: 15
`))
	require.NoError(t, err)
	require.Len(t, cams, 2)

	lobby := cams[0]
	assert.Equal(t, "Lobby", lobby.Name)
	assert.True(t, lobby.IsEnabled())
	assert.Equal(t, DefaultWidth, lobby.Resolution.Width)
	assert.Equal(t, DefaultHeight, lobby.Resolution.Height)
	assert.Equal(t, DefaultFPS, lobby.FPS)
	assert.Equal(t, 90, lobby.Rotation)
	idx, ok := lobby.Source.DeviceIndex()
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	second := cams[1]
	assert.Equal(t, "Camera 2", second.Name)
	assert.False(t, second.IsEnabled())
	assert.Equal(t, 1280, second.Resolution.Width)
	assert.Equal(t, 15, second.FPS)
	_, ok = second.Source.DeviceIndex()
	assert.False(t, ok)
}

func TestParseCameras_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate id", "cameras:\n  - {id: 1, source: 0}\n  - {id: 1, source: 1}\n"},
		{"zero id", "cameras:\n  - {id: 0, source: 0}\n"},
		{"bad rotation", "cameras:\n  - {id: 1, source: 0, rotate: 45}\n"},
		{"missing source", "cameras:\n  - {id: 1}\n"},
		{"negative fps", "cameras:\n  - {id: 1, source: 0, fps: -5}\n"},
		{"malformed", "cameras: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCameras([]byte(tt.yaml))
			require.Error(t, err)
			var cfgErr *model.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %T", err)
		})
	}
}

func TestLoadCameras_MissingFile(t *testing.T) {
	_, err := LoadCameras(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_FromEnvironment(t *testing.T) {
	dir := t.TempDir()
	camPath := filepath.Join(dir, "cameras.yaml")
	require.NoError(t, os.WriteFile(camPath, []byte("cameras:\n  - {id: 7, name: Door, source: /dev/video2}\n"), 0644))

	t.Setenv("CAMERA_CONFIG", camPath)
	t.Setenv("PORT", "9090")
	t.Setenv("RECOGNITION_THRESHOLD", "0.75")
	t.Setenv("PROCESSING_INTERVAL", "250ms")
	t.Setenv("TELEGRAM_RATE_LIMIT", "10")
	t.Setenv("SCREENSHOTS_ENABLED", "false")
	t.Setenv("DETECTOR_ARGS", "--model buffalo_l")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 0.75, cfg.RecognitionThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.ProcessingInterval)
	assert.Equal(t, 10*time.Second, cfg.Telegram.RateLimit)
	assert.False(t, cfg.ScreenshotsEnabled)
	assert.Equal(t, []string{"--model", "buffalo_l"}, cfg.DetectorArgs)
	require.Len(t, cfg.Cameras, 1)
	assert.Equal(t, "Door", cfg.Cameras[0].Name)
}

func TestGetEnvAsDuration_FallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, 3*time.Second, getEnvAsDuration("SOME_DURATION", 3*time.Second))
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("CAMERA_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick interval", func(c *Config) { c.TickInterval = 0 }},
		{"negative tick interval", func(c *Config) { c.TickInterval = -time.Second }},
		{"negative processing interval", func(c *Config) { c.ProcessingInterval = -time.Millisecond }},
		{"negative recognition threshold", func(c *Config) { c.RecognitionThreshold = -0.5 }},
		{"recognition threshold above one", func(c *Config) { c.RecognitionThreshold = 1.2 }},
		{"detection threshold above one", func(c *Config) { c.DetectionThreshold = 2 }},
		{"zero grace period", func(c *Config) { c.StopGracePeriod = 0 }},
		{"zero retry delay", func(c *Config) { c.ReadRetryDelay = 0 }},
		{"zero detector timeout", func(c *Config) { c.DetectorTimeout = 0 }},
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"negative rate limit", func(c *Config) { c.MQTT.RateLimit = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *model.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %T", err)
		})
	}
}

func TestValidate_BoundaryValuesAccepted(t *testing.T) {
	cfg := validConfig(t)
	cfg.RecognitionThreshold = 0
	cfg.ProcessingInterval = 0
	assert.NoError(t, cfg.Validate())

	cfg.RecognitionThreshold = 1
	assert.NoError(t, cfg.Validate())
}

func TestLoad_RejectsInvalidTiming(t *testing.T) {
	t.Setenv("CAMERA_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("TICK_INTERVAL", "0")

	_, err := Load()
	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "TICK_INTERVAL")
}

func TestLoad_RejectsNegativeThreshold(t *testing.T) {
	t.Setenv("CAMERA_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("RECOGNITION_THRESHOLD", "-0.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECOGNITION_THRESHOLD")
}
