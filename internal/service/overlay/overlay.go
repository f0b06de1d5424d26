package overlay

import (
	"fmt"
	"image"
	"image/color"

	"facewatch/internal/model"

	"gocv.io/x/gocv"
)

var (
	knownColor   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	unknownColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// Annotator draws face boxes and labels onto JPEG frames.
type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Annotate draws each annotation on the image and returns a re-encoded JPEG buffer.
func (a *Annotator) Annotate(img []byte, faces []model.FaceAnnotation) ([]byte, error) {
	if len(faces) == 0 {
		return img, nil
	}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	for _, face := range faces {
		c := unknownColor
		if face.Known {
			c = knownColor
		}

		rect := image.Rect(face.Box.X1, face.Box.Y1, face.Box.X2, face.Box.Y2)
		if err := gocv.Rectangle(&mat, rect, c, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		y := face.Box.Y1 - 10
		if y < 15 {
			y = face.Box.Y2 + 20
		}
		if err := gocv.PutText(&mat, face.Label, image.Pt(face.Box.X1, y), gocv.FontHersheySimplex, 0.6, c, 2); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
