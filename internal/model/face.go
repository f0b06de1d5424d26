package model

import "time"

// Gender is the detector's gender estimate.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// BoundingBox is a face rectangle in pixel coordinates (x1,y1 top-left, x2,y2 bottom-right).
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the box width.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the box height.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Point is a facial keypoint.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// DetectedFace is one face returned by the detector for a single frame.
// Age and Gender are nil when the detector did not estimate them.
type DetectedFace struct {
	Box            BoundingBox `json:"box"`
	Keypoints      []Point     `json:"keypoints,omitempty"`
	DetectionScore float64     `json:"detection_score"`
	Embedding      []float32   `json:"-"`
	Age            *int        `json:"age,omitempty"`
	Gender         *Gender     `json:"gender,omitempty"`
	Crop           []byte      `json:"-"`
}

// KnownFace is a gallery entry.
type KnownFace struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Embedding []float32 `json:"-"`
	ImagePath string    `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
}

// FaceAnnotation is a labeled box drawn on a displayed frame.
type FaceAnnotation struct {
	Box   BoundingBox
	Label string
	Known bool
}
