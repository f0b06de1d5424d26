package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"facewatch/internal/dto"
	"facewatch/internal/logger"
)

// AlertSwitches are the runtime toggles of the alert dispatcher.
type AlertSwitches interface {
	AlertsEnabled() bool
	SetAlertsEnabled(bool)
	ScreenshotsEnabled() bool
	SetScreenshotsEnabled(bool)
	SoundEnabled() bool
	SetSoundEnabled(bool)
}

type ThresholdSetter interface {
	Threshold() float64
	SetThreshold(float64)
}

type IntervalSetter interface {
	Interval() time.Duration
	SetInterval(time.Duration)
}

func currentSettings(sw AlertSwitches, th ThresholdSetter, iv IntervalSetter) dto.Settings {
	return dto.Settings{
		AlertsEnabled:        sw.AlertsEnabled(),
		ScreenshotsEnabled:   sw.ScreenshotsEnabled(),
		SoundEnabled:         sw.SoundEnabled(),
		RecognitionThreshold: th.Threshold(),
		ProcessingIntervalMs: iv.Interval().Milliseconds(),
	}
}

// maxIntervalMs is the largest interval that still fits in a time.Duration.
const maxIntervalMs = math.MaxInt64 / int64(time.Millisecond)

// SettingsHandler serves GET (current values) and POST (partial update) on /api/settings.
// Changes apply from the next alert or tick onwards.
func SettingsHandler(sw AlertSwitches, th ThresholdSetter, iv IntervalSetter, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet, http.MethodPost) {
			return
		}
		if r.Method == http.MethodGet {
			writeJSON(w, logger, http.StatusOK, currentSettings(sw, th, iv))
			return
		}

		var update dto.SettingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, logger, http.StatusBadRequest, "invalid settings payload")
			return
		}
		if update.RecognitionThreshold != nil && (*update.RecognitionThreshold < 0 || *update.RecognitionThreshold > 1) {
			writeError(w, logger, http.StatusBadRequest, "recognition_threshold must be within [0, 1]")
			return
		}
		if update.ProcessingIntervalMs != nil && (*update.ProcessingIntervalMs < 0 || *update.ProcessingIntervalMs > maxIntervalMs) {
			writeError(w, logger, http.StatusBadRequest, "processing_interval_ms out of range")
			return
		}

		if update.AlertsEnabled != nil {
			sw.SetAlertsEnabled(*update.AlertsEnabled)
		}
		if update.ScreenshotsEnabled != nil {
			sw.SetScreenshotsEnabled(*update.ScreenshotsEnabled)
		}
		if update.SoundEnabled != nil {
			sw.SetSoundEnabled(*update.SoundEnabled)
		}
		if update.RecognitionThreshold != nil {
			th.SetThreshold(*update.RecognitionThreshold)
		}
		if update.ProcessingIntervalMs != nil {
			iv.SetInterval(time.Duration(*update.ProcessingIntervalMs) * time.Millisecond)
		}

		settings := currentSettings(sw, th, iv)
		logger.Info("Settings updated: %+v", settings)
		writeJSON(w, logger, http.StatusOK, settings)
	}
}
