package dto

import "time"

// AlertFilters narrow an alert log query. Zero values mean "no filter".
type AlertFilters struct {
	CameraID int
	FaceName string
	Start    time.Time
	End      time.Time
	Limit    int
	Offset   int
}

// AlertStats summarizes the alert log.
type AlertStats struct {
	Total     int            `json:"total"`
	PerCamera map[string]int `json:"per_camera"`
	PerFace   map[string]int `json:"per_face"`
}
