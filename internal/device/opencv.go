package device

import (
	"errors"
	"fmt"
	"strings"

	"facewatch/internal/capture"
	"facewatch/internal/config"

	"gocv.io/x/gocv"
)

// Opener opens OpenCV captures for device indexes and paths/URIs, and UDP
// JPEG listeners for udp:// sources.
type Opener struct{}

func NewOpener() *Opener {
	return &Opener{}
}

func (o *Opener) Open(cam config.Camera) (capture.Device, error) {
	src := string(cam.Source)
	if strings.HasPrefix(src, "udp://") {
		return ListenUDP(strings.TrimPrefix(src, "udp://"), cam.Rotation)
	}
	return OpenVideoCapture(cam.Source, cam.Rotation)
}

// VideoCapture is a gocv-backed capture device.
type VideoCapture struct {
	vc       *gocv.VideoCapture
	frame    gocv.Mat
	rotation int
}

// OpenVideoCapture opens a device index when the source parses as an integer,
// otherwise a file path or stream URI.
func OpenVideoCapture(source config.Source, rotation int) (*VideoCapture, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, ok := source.DeviceIndex(); ok {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(string(source))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture %s is not opened", source)
	}

	return &VideoCapture{vc: vc, frame: gocv.NewMat(), rotation: rotation}, nil
}

// Configure requests a capture mode; drivers may clamp to the nearest one.
func (d *VideoCapture) Configure(width, height, fps int) error {
	d.vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	d.vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	d.vc.Set(gocv.VideoCaptureFPS, float64(fps))

	gotW := int(d.vc.Get(gocv.VideoCaptureFrameWidth))
	gotH := int(d.vc.Get(gocv.VideoCaptureFrameHeight))
	if gotW != width || gotH != height {
		return fmt.Errorf("device uses %dx%d", gotW, gotH)
	}
	return nil
}

func (d *VideoCapture) Read() ([]byte, error) {
	if ok := d.vc.Read(&d.frame); !ok {
		return nil, errors.New("read returned no frame")
	}
	if d.frame.Empty() {
		return nil, errors.New("empty frame")
	}
	return encodeRotated(d.frame, d.rotation)
}

func (d *VideoCapture) Close() error {
	d.frame.Close()
	return d.vc.Close()
}

// RotateFlag maps a clockwise rotation in degrees to the OpenCV flag.
// ok is false for 0 (no rotation needed) and unsupported values.
func RotateFlag(rotation int) (gocv.RotateFlag, bool) {
	switch rotation {
	case 90:
		return gocv.Rotate90Clockwise, true
	case 180:
		return gocv.Rotate180Clockwise, true
	case 270:
		return gocv.Rotate90CounterClockwise, true
	}
	return 0, false
}

// encodeRotated applies the rotation and returns the frame as JPEG.
func encodeRotated(frame gocv.Mat, rotation int) ([]byte, error) {
	src := frame
	if flag, ok := RotateFlag(rotation); ok {
		rotated := gocv.NewMat()
		defer rotated.Close()
		gocv.Rotate(frame, &rotated, flag)
		src = rotated
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, src)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// RotateJPEG decodes, rotates and re-encodes a JPEG frame.
func RotateJPEG(data []byte, rotation int) ([]byte, error) {
	if _, ok := RotateFlag(rotation); !ok {
		return data, nil
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("decoded frame is empty")
	}
	return encodeRotated(mat, rotation)
}
