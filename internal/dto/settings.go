package dto

// Settings are the runtime-adjustable switches exposed to the UI.
type Settings struct {
	AlertsEnabled        bool    `json:"alerts_enabled"`
	ScreenshotsEnabled   bool    `json:"screenshots_enabled"`
	SoundEnabled         bool    `json:"sound_enabled"`
	RecognitionThreshold float64 `json:"recognition_threshold"`
	ProcessingIntervalMs int64   `json:"processing_interval_ms"`
}

// SettingsUpdate carries optional changes; nil fields are left as they are.
type SettingsUpdate struct {
	AlertsEnabled        *bool    `json:"alerts_enabled,omitempty"`
	ScreenshotsEnabled   *bool    `json:"screenshots_enabled,omitempty"`
	SoundEnabled         *bool    `json:"sound_enabled,omitempty"`
	RecognitionThreshold *float64 `json:"recognition_threshold,omitempty"`
	ProcessingIntervalMs *int64   `json:"processing_interval_ms,omitempty"`
}
