package capture

import "time"

// Frame is one JPEG-encoded, already rotated frame from a camera.
type Frame struct {
	CameraID   int
	Seq        uint64
	CapturedAt time.Time
	Data       []byte
}

// Device is an opened capture device. Read blocks until a frame is available
// and returns it JPEG-encoded with the camera's rotation applied.
type Device interface {
	Configure(width, height, fps int) error
	Read() ([]byte, error)
	Close() error
}
