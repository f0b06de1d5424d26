package faces

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/repository/sqlite"
	"facewatch/internal/service/recognition"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}

// fakeDetector returns the embedding registered for the exact image bytes.
type fakeDetector struct {
	byImage map[string][]float32
	err     error
	calls   int
}

func (f *fakeDetector) Detect(_ context.Context, image []byte) ([]model.DetectedFace, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	emb, ok := f.byImage[string(image)]
	if !ok {
		return nil, nil
	}
	return []model.DetectedFace{{Embedding: emb, DetectionScore: 0.99}}, nil
}

func imageFor(tag byte) []byte {
	out := append([]byte(nil), jpeg...)
	return append(out[:len(out)-2], tag, 0xFF, 0xD9)
}

func newService(t *testing.T, det Detector) (*Service, *recognition.Gallery, string) {
	t.Helper()
	root := t.TempDir()
	db, err := sqlite.New(filepath.Join(root, "faces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gallery := recognition.NewGallery()
	dir := filepath.Join(root, "known")
	return NewService(det, sqlite.NewKnownFaceRepository(db), gallery, dir, logger.NewNop()), gallery, dir
}

func TestEnroll(t *testing.T) {
	alice := imageFor('a')
	det := &fakeDetector{byImage: map[string][]float32{string(alice): {1, 0, 0}}}
	svc, gallery, dir := newService(t, det)

	face, err := svc.Enroll(context.Background(), "Alice", alice)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Alice.jpg"), face.ImagePath)
	assert.Equal(t, []string{"Alice"}, gallery.Names())

	stored, err := os.ReadFile(face.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, alice, stored)

	_, err = svc.Enroll(context.Background(), "Alice", alice)
	assert.ErrorIs(t, err, model.ErrDuplicateFace)
}

func TestEnroll_NoFace(t *testing.T) {
	svc, gallery, dir := newService(t, &fakeDetector{})

	_, err := svc.Enroll(context.Background(), "Nobody", imageFor('n'))
	assert.ErrorIs(t, err, model.ErrNoFaceFound)
	assert.Equal(t, 0, gallery.Len())
	_, statErr := os.Stat(filepath.Join(dir, "Nobody.jpg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnroll_DetectorFailure(t *testing.T) {
	svc, _, _ := newService(t, &fakeDetector{err: errors.New("worker crashed")})

	_, err := svc.Enroll(context.Background(), "Alice", imageFor('a'))
	var merr *model.ModelError
	assert.ErrorAs(t, err, &merr)
}

func TestEnroll_InvalidName(t *testing.T) {
	svc, _, _ := newService(t, &fakeDetector{})
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		_, err := svc.Enroll(context.Background(), name, jpeg)
		assert.Error(t, err, name)
	}
}

func TestRemove(t *testing.T) {
	alice, bob := imageFor('a'), imageFor('b')
	det := &fakeDetector{byImage: map[string][]float32{string(alice): {1, 0}, string(bob): {0, 1}}}
	svc, gallery, _ := newService(t, det)

	a, err := svc.Enroll(context.Background(), "Alice", alice)
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), "Bob", bob)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), "Alice"))
	assert.Equal(t, []string{"Bob"}, gallery.Names())
	_, statErr := os.Stat(a.ImagePath)
	assert.True(t, os.IsNotExist(statErr))

	assert.ErrorIs(t, svc.Remove(context.Background(), "Alice"), model.ErrFaceNotFound)
}

func TestSync(t *testing.T) {
	alice, bob := imageFor('a'), imageFor('b')
	det := &fakeDetector{byImage: map[string][]float32{string(alice): {1, 0}, string(bob): {0, 1}}}
	svc, gallery, dir := newService(t, det)

	// Alice is enrolled and then her image disappears.
	a, err := svc.Enroll(context.Background(), "Alice", alice)
	require.NoError(t, err)
	require.NoError(t, os.Remove(a.ImagePath))

	// Bob and a faceless image are dropped into the directory directly.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bob.jpg"), bob, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Empty.jpg"), imageFor('e'), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	res, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Enrolled)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, []string{filepath.Join(dir, "Empty.jpg")}, res.Skipped)
	assert.Equal(t, []string{"Bob"}, gallery.Names())

	// a second sync finds nothing new
	calls := det.calls
	res, err = svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Enrolled)
	assert.Equal(t, calls+1, det.calls) // only the faceless image is retried
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.JPG"))
	assert.True(t, IsImageFile("b.png"))
	assert.False(t, IsImageFile("c.gif"))
}
