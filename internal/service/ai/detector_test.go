package ai

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// MockCloser wraps a bytes.Buffer so in-memory buffers can stand in for process pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

func frameResponse(t *testing.T, resp detectResponse) *MockCloser {
	t.Helper()
	body, err := msgpack.Marshal(&resp)
	require.NoError(t, err)

	out := &MockCloser{Buffer: new(bytes.Buffer)}
	require.NoError(t, binary.Write(out, binary.BigEndian, uint32(len(body))))
	out.Write(body)
	return out
}

func newInjectedDetector(stdin io.WriteCloser, stdout io.ReadCloser) *PythonDetector {
	d := NewPythonDetector(DetectorConfig{Timeout: time.Second, MinScore: 0.5}, logger.NewNop())
	d.stdin = stdin
	d.stdout = stdout
	return d
}

func TestPythonDetector_Detect(t *testing.T) {
	age := 34
	gender := "F"
	stdin := &MockCloser{Buffer: new(bytes.Buffer)}
	stdout := frameResponse(t, detectResponse{Faces: []wireFace{{
		BBox:      [4]float32{10, 20, 110, 140},
		Keypoints: [][2]float32{{30, 50}, {80, 50}},
		DetScore:  0.93,
		Embedding: []float32{0.1, 0.2, 0.3},
		Age:       &age,
		Gender:    &gender,
		Crop:      []byte{0xFF, 0xD8},
	}}})

	d := newInjectedDetector(stdin, stdout)
	image := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	faces, err := d.Detect(context.Background(), image)
	require.NoError(t, err)
	require.Len(t, faces, 1)

	f := faces[0]
	assert.Equal(t, model.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 140}, f.Box)
	assert.Equal(t, 100, f.Box.Width())
	assert.InDelta(t, 0.93, f.DetectionScore, 1e-6)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, f.Embedding)
	require.NotNil(t, f.Age)
	assert.Equal(t, 34, *f.Age)
	require.NotNil(t, f.Gender)
	assert.Equal(t, model.GenderFemale, *f.Gender)
	assert.Len(t, f.Keypoints, 2)

	// request framing: 4-byte length then msgpack body carrying the image
	sent := stdin.Bytes()
	require.Greater(t, len(sent), 4)
	size := binary.BigEndian.Uint32(sent[:4])
	assert.Equal(t, int(size), len(sent)-4)
	var req detectRequest
	require.NoError(t, msgpack.Unmarshal(sent[4:], &req))
	assert.Equal(t, image, req.Image)
	assert.Equal(t, 0.5, req.MinScore)
}

func TestPythonDetector_WorkerErrorIsModelError(t *testing.T) {
	stdout := frameResponse(t, detectResponse{Error: "model not loaded"})
	d := newInjectedDetector(&MockCloser{Buffer: new(bytes.Buffer)}, stdout)

	_, err := d.Detect(context.Background(), []byte{1})
	var modelErr *model.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestPythonDetector_TruncatedResponseResetsWorker(t *testing.T) {
	stdout := &MockCloser{Buffer: bytes.NewBuffer([]byte{0, 0, 0, 10, 1, 2})}
	d := newInjectedDetector(&MockCloser{Buffer: new(bytes.Buffer)}, stdout)

	_, err := d.Detect(context.Background(), []byte{1})
	var modelErr *model.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Nil(t, d.stdin, "worker pipes are dropped after a protocol failure")

	// no command configured, so the restart fails cleanly
	_, err = d.Detect(context.Background(), []byte{1})
	assert.True(t, errors.Is(err, model.ErrWorkerStopped))
}

type blockingReader struct{ release chan struct{} }

func (b *blockingReader) Read(p []byte) (int, error) {
	<-b.release
	return 0, io.EOF
}

func (b *blockingReader) Close() error { return nil }

func TestPythonDetector_Timeout(t *testing.T) {
	stdout := &blockingReader{release: make(chan struct{})}
	defer close(stdout.release)

	d := newInjectedDetector(&MockCloser{Buffer: new(bytes.Buffer)}, stdout)
	d.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := d.Detect(context.Background(), []byte{1})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseGender(t *testing.T) {
	m, f, x := "M", "female", "?"
	assert.Equal(t, model.GenderMale, *parseGender(&m))
	assert.Equal(t, model.GenderFemale, *parseGender(&f))
	assert.Nil(t, parseGender(&x))
	assert.Nil(t, parseGender(nil))
}
