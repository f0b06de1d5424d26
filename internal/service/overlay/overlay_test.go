package overlay

import (
	"testing"

	"facewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func blankJPEG(t *testing.T) []byte {
	t.Helper()
	mat := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer mat.Close()
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	require.NoError(t, err)
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...)
}

func TestAnnotate_NoFacesReturnsInput(t *testing.T) {
	img := blankJPEG(t)
	out, err := NewAnnotator().Annotate(img, nil)
	require.NoError(t, err)
	assert.Equal(t, img, out)
}

func TestAnnotate_DrawsBoxes(t *testing.T) {
	img := blankJPEG(t)
	out, err := NewAnnotator().Annotate(img, []model.FaceAnnotation{
		{Box: model.BoundingBox{X1: 10, Y1: 10, X2: 60, Y2: 70}, Label: "Alice (82%)", Known: true},
		{Box: model.BoundingBox{X1: 80, Y1: 30, X2: 140, Y2: 100}, Label: "Unknown"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, img, out)

	mat, err := gocv.IMDecode(out, gocv.IMReadColor)
	require.NoError(t, err)
	defer mat.Close()
	assert.Equal(t, 160, mat.Cols())
	assert.Equal(t, 120, mat.Rows())
}

func TestAnnotate_RejectsGarbage(t *testing.T) {
	_, err := NewAnnotator().Annotate([]byte("not a jpeg"), []model.FaceAnnotation{{Label: "x"}})
	assert.Error(t, err)
}
