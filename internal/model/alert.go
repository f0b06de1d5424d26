package model

import (
	"fmt"
	"strings"
	"time"
)

// AlertEvent is an immutable record of one triggered alert.
type AlertEvent struct {
	ID             string    `json:"id"`
	RecordID       int64     `json:"record_id,omitempty"`
	CameraID       int       `json:"camera_id"`
	CameraName     string    `json:"camera_name"`
	FaceName       string    `json:"face_name"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
	Age            *int      `json:"age,omitempty"`
	Gender         *Gender   `json:"gender,omitempty"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
}

// Message renders the event as the human readable notification text.
func (e AlertEvent) Message() string {
	var b strings.Builder
	b.WriteString("Face detected!\n")
	fmt.Fprintf(&b, "Name: %s\n", e.FaceName)
	if e.Age != nil {
		fmt.Fprintf(&b, "Age: ~%d years\n", *e.Age)
	}
	if e.Gender != nil {
		fmt.Fprintf(&b, "Gender: %s\n", *e.Gender)
	}
	fmt.Fprintf(&b, "Camera: %s\n", e.CameraName)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n", e.Confidence*100)
	fmt.Fprintf(&b, "Time: %s", e.Timestamp.Format("2006-01-02 15:04:05"))
	return b.String()
}
