package ai

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"

	"github.com/vmihailenco/msgpack/v5"
)

// maxResponseSize guards against a corrupted length prefix.
const maxResponseSize = 64 << 20

type detectRequest struct {
	Image    []byte  `msgpack:"image"`
	MinScore float64 `msgpack:"min_score"`
}

type detectResponse struct {
	Faces []wireFace `msgpack:"faces"`
	Error string     `msgpack:"error"`
}

type wireFace struct {
	BBox      [4]float32   `msgpack:"bbox"`
	Keypoints [][2]float32 `msgpack:"kps"`
	DetScore  float32      `msgpack:"det_score"`
	Embedding []float32    `msgpack:"embedding"`
	Age       *int         `msgpack:"age"`
	Gender    *string      `msgpack:"gender"`
	Crop      []byte       `msgpack:"crop"`
}

// PythonDetector runs face detection in a long-lived worker process. Each
// request and response is a 4-byte big-endian length followed by a msgpack body.
// The process is started lazily and restarted after any protocol failure.
type PythonDetector struct {
	command  string
	args     []string
	timeout  time.Duration
	minScore float64
	logger   *logger.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

// DetectorConfig describes how to launch the worker.
type DetectorConfig struct {
	Command  string
	Args     []string
	Timeout  time.Duration
	MinScore float64
}

func NewPythonDetector(cfg DetectorConfig, log *logger.Logger) *PythonDetector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &PythonDetector{
		command:  cfg.Command,
		args:     cfg.Args,
		timeout:  cfg.Timeout,
		minScore: cfg.MinScore,
		logger:   log,
	}
}

// Detect returns the faces found in a JPEG image.
func (d *PythonDetector) Detect(ctx context.Context, image []byte) ([]model.DetectedFace, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, &model.ModelError{Op: "start worker", Err: err}
	}

	payload, err := msgpack.Marshal(&detectRequest{Image: image, MinScore: d.minScore})
	if err != nil {
		return nil, &model.ModelError{Op: "encode request", Err: err}
	}

	type result struct {
		resp *detectResponse
		err  error
	}
	done := make(chan result, 1)
	stdin, stdout := d.stdin, d.stdout
	go func() {
		resp, err := roundTrip(stdin, stdout, payload)
		done <- result{resp, err}
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			d.resetLocked()
			return nil, &model.ModelError{Op: "detect", Err: r.err}
		}
		if r.resp.Error != "" {
			return nil, &model.ModelError{Op: "detect", Err: errors.New(r.resp.Error)}
		}
		return convertFaces(r.resp.Faces), nil
	case <-timer.C:
		d.resetLocked()
		return nil, &model.ModelError{Op: "detect", Err: fmt.Errorf("worker did not answer within %s", d.timeout)}
	case <-ctx.Done():
		d.resetLocked()
		return nil, &model.ModelError{Op: "detect", Err: ctx.Err()}
	}
}

func roundTrip(stdin io.Writer, stdout io.Reader, payload []byte) (*detectResponse, error) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := stdin.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := stdin.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	if _, err := io.ReadFull(stdout, header); err != nil {
		return nil, fmt.Errorf("failed to read response header: %w", err)
	}
	size := binary.BigEndian.Uint32(header)
	if size > maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(stdout, body); err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var resp detectResponse
	if err := msgpack.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

func (d *PythonDetector) ensureStarted() error {
	if d.stdin != nil && d.stdout != nil {
		return nil
	}
	if d.command == "" {
		return model.ErrWorkerStopped
	}

	cmd := exec.Command(d.command, d.args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", d.command, err)
	}

	d.cmd, d.stdin, d.stdout = cmd, stdin, stdout
	d.logger.Info("Face detector worker started (pid %d)", cmd.Process.Pid)
	return nil
}

// resetLocked kills the worker so the next Detect starts a fresh one.
func (d *PythonDetector) resetLocked() {
	if d.stdin != nil {
		d.stdin.Close()
	}
	if d.stdout != nil {
		d.stdout.Close()
	}
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
		go d.cmd.Wait()
		d.logger.Warning("Face detector worker (pid %d) stopped", d.cmd.Process.Pid)
	}
	d.cmd, d.stdin, d.stdout = nil, nil, nil
}

// Close stops the worker process.
func (d *PythonDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	return nil
}

func convertFaces(in []wireFace) []model.DetectedFace {
	faces := make([]model.DetectedFace, 0, len(in))
	for _, f := range in {
		face := model.DetectedFace{
			Box: model.BoundingBox{
				X1: int(f.BBox[0]), Y1: int(f.BBox[1]),
				X2: int(f.BBox[2]), Y2: int(f.BBox[3]),
			},
			DetectionScore: float64(f.DetScore),
			Embedding:      f.Embedding,
			Age:            f.Age,
			Gender:         parseGender(f.Gender),
			Crop:           f.Crop,
		}
		for _, kp := range f.Keypoints {
			face.Keypoints = append(face.Keypoints, model.Point{X: kp[0], Y: kp[1]})
		}
		faces = append(faces, face)
	}
	return faces
}

func parseGender(s *string) *model.Gender {
	if s == nil {
		return nil
	}
	var g model.Gender
	switch *s {
	case "M", "m", "Male", "male":
		g = model.GenderMale
	case "F", "f", "Female", "female":
		g = model.GenderFemale
	default:
		return nil
	}
	return &g
}
