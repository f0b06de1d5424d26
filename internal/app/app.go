package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"facewatch/internal/capture"
	"facewatch/internal/config"
	"facewatch/internal/device"
	"facewatch/internal/logger"
	"facewatch/internal/repository"
	"facewatch/internal/repository/postgres"
	"facewatch/internal/repository/sqlite"
	"facewatch/internal/routes"
	"facewatch/internal/service/ai"
	"facewatch/internal/service/alert"
	"facewatch/internal/service/audio"
	"facewatch/internal/service/faces"
	"facewatch/internal/service/notify"
	"facewatch/internal/service/overlay"
	"facewatch/internal/service/pipeline"
	"facewatch/internal/service/recognition"
	"facewatch/internal/service/storage"
	"facewatch/internal/service/websocket"

	"github.com/go-redis/redis/v8"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived component of the server.
type App struct {
	config *config.Config
	logger *logger.Logger

	stores     *Stores
	redis      *redis.Client
	mqtt       *notify.MQTT
	detector   *ai.PythonDetector
	audio      *audio.System
	supervisor *capture.Supervisor
	gallery    *recognition.Gallery
	matcher    *recognition.Matcher
	faces      *faces.Service
	dispatcher *alert.Dispatcher
	driver     *pipeline.Driver
	hub        *websocket.HubService
	server     *http.Server
}

// Stores are the persistent stores: SQLite always (known faces, and alerts
// unless Postgres is configured), Postgres for alerts when POSTGRES_DSN is set.
type Stores struct {
	SQLite     *sqlite.DB
	Postgres   *postgres.AlertRepository
	Alerts     repository.AlertRepository
	KnownFaces repository.KnownFaceRepository
}

// OpenStores opens the configured databases.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Stores{
		SQLite:     db,
		Alerts:     sqlite.NewAlertRepository(db),
		KnownFaces: sqlite.NewKnownFaceRepository(db),
	}
	if cfg.PostgresDSN != "" {
		pg, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		s.Postgres = pg
		s.Alerts = pg
		log.Info("Alert log stored in Postgres")
	}
	return s, nil
}

func (s *Stores) Close() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
	s.SQLite.Close()
}

// NewDetector builds the detector worker client from configuration.
func NewDetector(cfg *config.Config, log *logger.Logger) *ai.PythonDetector {
	return ai.NewPythonDetector(ai.DetectorConfig{
		Command:  cfg.DetectorCommand,
		Args:     cfg.DetectorArgs,
		Timeout:  cfg.DetectorTimeout,
		MinScore: cfg.DetectionThreshold,
	}, log)
}

// New wires the application. Nothing is started until Run.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	stores, err := OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log, stores: stores}

	supervisor, err := capture.NewSupervisor(cfg.Cameras, device.NewOpener(), log, capture.SupervisorConfig{
		GracePeriod: cfg.StopGracePeriod,
		RetryDelay:  cfg.ReadRetryDelay,
	})
	if err != nil {
		stores.Close()
		return nil, err
	}
	a.supervisor = supervisor

	a.detector = NewDetector(cfg, log)
	a.gallery = recognition.NewGallery()
	a.matcher = recognition.NewMatcher(cfg.RecognitionThreshold)
	a.faces = faces.NewService(a.detector, stores.KnownFaces, a.gallery, cfg.KnownFacesDir, log)
	a.hub = websocket.NewHubService(log)
	a.audio = audio.NewSystem(cfg.SoundPlayer, log)

	var limits notify.Store
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warning("Redis at %s unreachable, rate limits stay local: %v", cfg.RedisAddr, err)
		}
		limits = notify.NewRedisStore(a.redis, "facewatch:notify:", 24*time.Hour)
	}

	fallback := storage.NewFallbackStore(cfg.FallbackDir)
	var notifiers []alert.Notifier
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tg := notify.NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		notifiers = append(notifiers, notify.NewChannel(tg, cfg.Telegram.RateLimit, limits, fallback, log))
		log.Info("Telegram notifications enabled (minimum interval %s)", cfg.Telegram.RateLimit)
	}
	if cfg.MQTT.Broker != "" {
		a.mqtt = notify.NewMQTT(notify.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      1,
		})
		notifiers = append(notifiers, notify.NewChannel(a.mqtt, cfg.MQTT.RateLimit, limits, fallback, log))
		log.Info("MQTT notifications enabled on %s (minimum interval %s)", cfg.MQTT.Topic, cfg.MQTT.RateLimit)
	}

	a.dispatcher = alert.NewDispatcher(storage.NewScreenshotStore(cfg.ScreenshotDir), a.audio, notifiers, stores.Alerts, log, alert.Options{
		AlertsEnabled:      cfg.AlertsEnabled,
		ScreenshotsEnabled: cfg.ScreenshotsEnabled,
		SoundEnabled:       cfg.AlertSound != "",
		SoundPath:          cfg.AlertSound,
	})
	a.dispatcher.OnEvent(a.hub.BroadcastAlert)

	a.driver = pipeline.NewDriver(a.supervisor, a.detector, a.matcher, a.gallery, overlay.NewAnnotator(),
		a.dispatcher, a.hub, cfg.ProcessingInterval, log)

	router := routes.SetupRoutes(routes.Dependencies{
		Cameras:       a.supervisor,
		Frames:        a.driver,
		History:       a.dispatcher.History(),
		Alerts:        stores.Alerts,
		Switches:      a.dispatcher,
		Threshold:     a.matcher,
		Interval:      a.driver,
		Faces:         a.faces,
		Hub:           a.hub,
		Logger:        log,
		Password:      cfg.Password,
		CameraConfig:  cfg.CameraConfigPath,
		ScreenshotDir: cfg.ScreenshotDir,
		LogDir:        cfg.LogDirectory,
	})
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Run starts capture, the pipeline and the HTTP server and blocks until ctx
// is cancelled or the server fails. Everything is stopped before it returns.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if err := a.audio.Init(); err != nil {
		a.logger.Warning("Audio disabled: %v", err)
	}
	if _, err := a.faces.Sync(ctx); err != nil {
		a.logger.Error("Known faces not loaded: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hub.Run(runCtx)
	a.supervisor.StartAll()

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		a.driver.Run(runCtx, a.config.TickInterval)
	}()

	a.logger.Info("facewatch listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Cameras: %d, known faces: %d, threshold: %.2f", len(a.config.Cameras), a.gallery.Len(), a.matcher.Threshold())

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-serverErr:
		runErr = err
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	cancel()
	<-pipelineDone
	a.supervisor.StopAll()
	return runErr
}

func (a *App) close() {
	a.audio.Shutdown()
	if err := a.detector.Close(); err != nil {
		a.logger.Warning("Detector worker shutdown: %v", err)
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	a.stores.Close()
	a.logger.Sync()
}
