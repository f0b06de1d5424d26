package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"facewatch/internal/model"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             int
	Password         string
	CameraConfigPath string
	Cameras          []Camera

	KnownFacesDir string
	ScreenshotDir string
	FallbackDir   string
	DatabasePath  string
	PostgresDSN   string // when set, alert logs go to Postgres instead of SQLite
	LogDirectory  string
	LogLevel      string

	RecognitionThreshold float64
	DetectionThreshold   float64
	ProcessingInterval   time.Duration // minimum time between detection runs per camera
	TickInterval         time.Duration // pipeline driver cadence
	StopGracePeriod      time.Duration
	ReadRetryDelay       time.Duration

	AlertsEnabled      bool
	ScreenshotsEnabled bool
	AlertSound         string
	SoundPlayer        string

	DetectorCommand string
	DetectorArgs    []string
	DetectorTimeout time.Duration

	Telegram  TelegramConfig
	MQTT      MQTTConfig
	RedisAddr string // shared rate-limit state; in-memory when empty
}

type TelegramConfig struct {
	Enabled   bool
	BotToken  string
	ChatID    string
	APIURL    string
	RateLimit time.Duration
}

type MQTTConfig struct {
	Broker    string
	ClientID  string
	Topic     string
	Username  string
	Password  string
	RateLimit time.Duration
}

// Load reads configuration from the environment (and an optional .env file)
// and the camera list from the YAML file at CAMERA_CONFIG.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnvAsInt("PORT", 8080),
		Password:         getEnv("PASSWORD", "facewatch"),
		CameraConfigPath: getEnv("CAMERA_CONFIG", filepath.Join(".", "config", "cameras.yaml")),

		KnownFacesDir: getEnv("KNOWN_FACES_DIR", filepath.Join(".", "data", "known_faces")),
		ScreenshotDir: getEnv("SCREENSHOT_DIR", filepath.Join(".", "data", "screenshots")),
		FallbackDir:   getEnv("FALLBACK_DIR", filepath.Join(".", "data", "failed_alerts")),
		DatabasePath:  getEnv("DATABASE_PATH", filepath.Join(".", "data", "face_logs.db")),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		RecognitionThreshold: getEnvAsFloat("RECOGNITION_THRESHOLD", 0.5),
		DetectionThreshold:   getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
		ProcessingInterval:   getEnvAsDuration("PROCESSING_INTERVAL", 500*time.Millisecond),
		TickInterval:         getEnvAsDuration("TICK_INTERVAL", 30*time.Millisecond),
		StopGracePeriod:      getEnvAsDuration("STOP_GRACE_PERIOD", 2*time.Second),
		ReadRetryDelay:       getEnvAsDuration("READ_RETRY_DELAY", time.Second),

		AlertsEnabled:      getEnvAsBool("ALERTS_ENABLED", true),
		ScreenshotsEnabled: getEnvAsBool("SCREENSHOTS_ENABLED", true),
		AlertSound:         getEnv("ALERT_SOUND", ""),
		SoundPlayer:        getEnv("SOUND_PLAYER", "aplay"),

		DetectorCommand: getEnv("DETECTOR_COMMAND", filepath.Join(".", "scripts", "face_worker.py")),
		DetectorArgs:    getEnvAsList("DETECTOR_ARGS", nil),
		DetectorTimeout: getEnvAsDuration("DETECTOR_TIMEOUT", 5*time.Second),

		Telegram: TelegramConfig{
			Enabled:   getEnvAsBool("TELEGRAM_ENABLED", false),
			BotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
			APIURL:    getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			RateLimit: getEnvAsDuration("TELEGRAM_RATE_LIMIT", 5*time.Second),
		},
		MQTT: MQTTConfig{
			Broker:    getEnv("MQTT_BROKER", ""),
			ClientID:  getEnv("MQTT_CLIENT_ID", "facewatch"),
			Topic:     getEnv("MQTT_TOPIC", "facewatch/alerts"),
			Username:  getEnv("MQTT_USERNAME", ""),
			Password:  getEnv("MQTT_PASSWORD", ""),
			RateLimit: getEnvAsDuration("MQTT_RATE_LIMIT", 5*time.Second),
		},
		RedisAddr: getEnv("REDIS_ADDR", ""),
	}

	if _, err := os.Stat(cfg.CameraConfigPath); err == nil {
		cameras, err := LoadCameras(cfg.CameraConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Cameras = cameras
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the value ranges the runtime depends on.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be within 1-65535, got %d", c.Port))
	}
	if c.RecognitionThreshold < 0 || c.RecognitionThreshold > 1 {
		errs = append(errs, fmt.Errorf("RECOGNITION_THRESHOLD must be within [0, 1], got %g", c.RecognitionThreshold))
	}
	if c.DetectionThreshold < 0 || c.DetectionThreshold > 1 {
		errs = append(errs, fmt.Errorf("DETECTION_THRESHOLD must be within [0, 1], got %g", c.DetectionThreshold))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval))
	}
	if c.ProcessingInterval < 0 {
		errs = append(errs, fmt.Errorf("PROCESSING_INTERVAL must not be negative, got %s", c.ProcessingInterval))
	}
	if c.StopGracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("STOP_GRACE_PERIOD must be positive, got %s", c.StopGracePeriod))
	}
	if c.ReadRetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("READ_RETRY_DELAY must be positive, got %s", c.ReadRetryDelay))
	}
	if c.DetectorTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DETECTOR_TIMEOUT must be positive, got %s", c.DetectorTimeout))
	}
	if c.Telegram.RateLimit < 0 || c.MQTT.RateLimit < 0 {
		errs = append(errs, errors.New("notification rate limits must not be negative"))
	}

	if len(errs) > 0 {
		return &model.ConfigurationError{Op: "validate config", Err: errors.Join(errs...)}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("500ms") or plain seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.Fields(value)
}
