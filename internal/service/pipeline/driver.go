package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"facewatch/internal/capture"
	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/service/alert"
	"facewatch/internal/service/recognition"
)

// DefaultCadence is the tick period used when none is configured.
const DefaultCadence = 30 * time.Millisecond

// Frames is the capture side: the configured cameras and their latest frames.
type Frames interface {
	Cameras() []config.Camera
	LatestFrame(id int) (*capture.Frame, bool)
}

type Detector interface {
	Detect(ctx context.Context, image []byte) ([]model.DetectedFace, error)
}

type Annotator interface {
	Annotate(img []byte, faces []model.FaceAnnotation) ([]byte, error)
}

type Dispatcher interface {
	Trigger(ctx context.Context, req alert.AlertRequest) model.AlertEvent
}

// Viewer receives every displayed frame, raw or annotated.
type Viewer interface {
	BroadcastFrame(cameraID int, frame []byte)
}

// Driver pulls the newest frame of every camera on each tick, forwards it to
// viewers, and runs recognition at most once per processing interval per camera.
type Driver struct {
	frames     Frames
	detector   Detector
	matcher    *recognition.Matcher
	gallery    *recognition.Gallery
	annotator  Annotator
	dispatcher Dispatcher
	viewer     Viewer
	logger     *logger.Logger

	interval atomic.Int64
	now      func() time.Time

	mu            sync.Mutex
	lastProcessed map[int]time.Time
	displayed     map[int][]byte
}

func NewDriver(frames Frames, detector Detector, matcher *recognition.Matcher, gallery *recognition.Gallery,
	annotator Annotator, dispatcher Dispatcher, viewer Viewer, interval time.Duration, log *logger.Logger) *Driver {
	d := &Driver{
		frames:        frames,
		detector:      detector,
		matcher:       matcher,
		gallery:       gallery,
		annotator:     annotator,
		dispatcher:    dispatcher,
		viewer:        viewer,
		logger:        log,
		now:           time.Now,
		lastProcessed: make(map[int]time.Time),
		displayed:     make(map[int][]byte),
	}
	d.interval.Store(int64(interval))
	return d
}

// WithClock replaces the time source.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

func (d *Driver) Interval() time.Duration { return time.Duration(d.interval.Load()) }

// SetInterval changes the minimum time between recognition runs per camera.
func (d *Driver) SetInterval(interval time.Duration) {
	if interval < 0 {
		interval = 0
	}
	d.interval.Store(int64(interval))
	d.logger.Info("Processing interval set to %s", interval)
}

// LatestDisplayed returns the last frame forwarded for a camera.
func (d *Driver) LatestDisplayed(cameraID int) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame, ok := d.displayed[cameraID]
	return frame, ok
}

// Run calls Tick every cadence until ctx is done. A non-positive cadence
// falls back to DefaultCadence.
func (d *Driver) Run(ctx context.Context, cadence time.Duration) {
	if cadence <= 0 {
		d.logger.Warning("Invalid pipeline cadence %s, using %s", cadence, DefaultCadence)
		cadence = DefaultCadence
	}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	d.logger.Info("Pipeline started - tick every %s, recognition every %s", cadence, d.Interval())
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Pipeline stopped")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick processes each configured camera once. A missing frame is normal.
func (d *Driver) Tick(ctx context.Context) {
	for _, cam := range d.frames.Cameras() {
		frame, ok := d.frames.LatestFrame(cam.ID)
		if !ok {
			continue
		}
		d.display(cam.ID, frame.Data)

		now := d.now()
		if !d.due(cam.ID, now) {
			continue
		}
		d.process(ctx, cam, frame, now)
	}
}

func (d *Driver) due(cameraID int, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastProcessed[cameraID]
	return !ok || now.Sub(last) >= d.Interval()
}

func (d *Driver) display(cameraID int, frame []byte) {
	d.mu.Lock()
	d.displayed[cameraID] = frame
	d.mu.Unlock()
	if d.viewer != nil {
		d.viewer.BroadcastFrame(cameraID, frame)
	}
}

func (d *Driver) process(ctx context.Context, cam config.Camera, frame *capture.Frame, now time.Time) {
	faces, err := d.detector.Detect(ctx, frame.Data)
	if err != nil {
		var merr *model.ModelError
		if !errors.As(err, &merr) {
			err = &model.ModelError{Op: "detect", Err: err}
		}
		d.logger.Error("Camera %d: %v", cam.ID, err)
		faces = nil
	}

	type match struct {
		face  model.DetectedFace
		name  string
		score float64
	}
	var (
		matches     []match
		annotations = make([]model.FaceAnnotation, 0, len(faces))
		gallery     = d.gallery.Snapshot()
	)
	for _, face := range faces {
		known, score := d.matcher.Match(face.Embedding, gallery)
		if known == nil {
			annotations = append(annotations, model.FaceAnnotation{Box: face.Box, Label: "Unknown"})
			continue
		}
		annotations = append(annotations, model.FaceAnnotation{
			Box:   face.Box,
			Label: fmt.Sprintf("%s (%.2f)", known.Name, score),
			Known: true,
		})
		matches = append(matches, match{face: face, name: known.Name, score: score})
	}

	annotated := frame.Data
	if len(annotations) > 0 && d.annotator != nil {
		if img, err := d.annotator.Annotate(frame.Data, annotations); err != nil {
			d.logger.Warning("Camera %d: failed to annotate frame: %v", cam.ID, err)
		} else {
			annotated = img
		}
	}

	for _, m := range matches {
		d.dispatcher.Trigger(ctx, alert.AlertRequest{
			CameraID:   cam.ID,
			CameraName: cam.Name,
			FaceName:   m.name,
			Confidence: m.score,
			Age:        m.face.Age,
			Gender:     m.face.Gender,
			Frame:      annotated,
		})
	}

	d.display(cam.ID, annotated)

	d.mu.Lock()
	d.lastProcessed[cam.ID] = now
	d.mu.Unlock()
}
