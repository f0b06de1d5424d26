package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/repository"
	"facewatch/internal/service/audio"
	"facewatch/internal/service/notify"

	"github.com/google/uuid"
)

// AlertRequest describes one accepted recognition.
type AlertRequest struct {
	CameraID   int
	CameraName string
	FaceName   string
	Confidence float64
	Age        *int
	Gender     *model.Gender
	Frame      []byte
}

// Screenshots persists alert frames.
type Screenshots interface {
	Save(frame []byte, cameraID int, faceName string, ts time.Time) (string, error)
}

// Notifier is a rate-limited remote notification channel.
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, n notify.Notification) notify.Outcome
}

// Options are the initial switch positions and the alert sound.
type Options struct {
	AlertsEnabled      bool
	ScreenshotsEnabled bool
	SoundEnabled       bool
	SoundPath          string
}

// Dispatcher turns accepted recognitions into alert events and fans them out
// to screenshot, history, sound, remote notification and the alert log.
type Dispatcher struct {
	screenshots Screenshots
	player      audio.Player
	notifiers   []Notifier
	store       repository.AlertRepository
	history     *History
	logger      *logger.Logger
	soundPath   string

	alertsEnabled      atomic.Bool
	screenshotsEnabled atomic.Bool
	soundEnabled       atomic.Bool

	now   func() time.Time
	newID func() string

	observersMu sync.RWMutex
	observers   []func(model.AlertEvent)
}

// NewDispatcher wires the side channels. Any of screenshots, player and store
// may be nil, in which case that step is skipped.
func NewDispatcher(screenshots Screenshots, player audio.Player, notifiers []Notifier,
	store repository.AlertRepository, log *logger.Logger, opts Options) *Dispatcher {
	d := &Dispatcher{
		screenshots: screenshots,
		player:      player,
		notifiers:   notifiers,
		store:       store,
		history:     NewHistory(),
		logger:      log,
		soundPath:   opts.SoundPath,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	d.alertsEnabled.Store(opts.AlertsEnabled)
	d.screenshotsEnabled.Store(opts.ScreenshotsEnabled)
	d.soundEnabled.Store(opts.SoundEnabled)
	return d
}

// WithClock replaces the time source.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// OnEvent registers fn to be called after every Trigger.
func (d *Dispatcher) OnEvent(fn func(model.AlertEvent)) {
	d.observersMu.Lock()
	d.observers = append(d.observers, fn)
	d.observersMu.Unlock()
}

func (d *Dispatcher) History() *History { return d.history }

func (d *Dispatcher) AlertsEnabled() bool          { return d.alertsEnabled.Load() }
func (d *Dispatcher) SetAlertsEnabled(v bool)      { d.alertsEnabled.Store(v) }
func (d *Dispatcher) ScreenshotsEnabled() bool     { return d.screenshotsEnabled.Load() }
func (d *Dispatcher) SetScreenshotsEnabled(v bool) { d.screenshotsEnabled.Store(v) }
func (d *Dispatcher) SoundEnabled() bool           { return d.soundEnabled.Load() }
func (d *Dispatcher) SetSoundEnabled(v bool)       { d.soundEnabled.Store(v) }

// Trigger records and announces one alert. It always returns the event; side
// channel failures are logged and never propagate.
func (d *Dispatcher) Trigger(ctx context.Context, req AlertRequest) model.AlertEvent {
	alertsOn := d.alertsEnabled.Load()
	screenshotsOn := d.screenshotsEnabled.Load()
	soundOn := d.soundEnabled.Load()

	event := model.AlertEvent{
		ID:         d.newID(),
		CameraID:   req.CameraID,
		CameraName: req.CameraName,
		FaceName:   req.FaceName,
		Confidence: req.Confidence,
		Timestamp:  d.now(),
		Age:        req.Age,
		Gender:     req.Gender,
	}

	if screenshotsOn && d.screenshots != nil {
		path, err := d.screenshots.Save(req.Frame, req.CameraID, req.FaceName, event.Timestamp)
		if err != nil {
			var perr *model.PersistenceError
			if !errors.As(err, &perr) {
				err = &model.PersistenceError{Op: "save screenshot", Err: err}
			}
			d.logger.Error("Screenshot for %s on camera %d not saved: %v", req.FaceName, req.CameraID, err)
		} else {
			event.ScreenshotPath = path
		}
	}

	d.history.Append(event)

	if alertsOn && soundOn && d.player != nil && d.soundPath != "" {
		if err := d.player.Play(d.soundPath); err != nil {
			d.logger.Warning("Failed to play alert sound: %v", err)
		}
	}

	if alertsOn && len(d.notifiers) > 0 {
		n := notify.Notification{Event: event, Text: event.Message(), ImagePath: event.ScreenshotPath}
		for _, ch := range d.notifiers {
			if out := ch.Deliver(ctx, n); out == notify.OutcomeFailed {
				d.logger.Warning("Alert %s: delivery via %s failed, saved locally", event.ID, ch.Name())
			}
		}
	}

	if d.store != nil {
		id, err := d.store.Append(ctx, &event)
		if err != nil {
			d.logger.Error("Failed to log alert %s: %v", event.ID, err)
		} else {
			event.RecordID = id
		}
	}

	d.logger.Info("Alert: %s on camera %d (%s), confidence %.2f", event.FaceName, event.CameraID, event.CameraName, event.Confidence)

	d.observersMu.RLock()
	observers := d.observers
	d.observersMu.RUnlock()
	for _, fn := range observers {
		fn(event)
	}
	return event
}
