package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"facewatch/internal/model"
)

// ScreenshotStore writes alert frames to disk under deterministic names.
type ScreenshotStore struct {
	dir string
}

func NewScreenshotStore(dir string) *ScreenshotStore {
	return &ScreenshotStore{dir: dir}
}

func (s *ScreenshotStore) Dir() string {
	return s.dir
}

// ScreenshotName renders YYYYMMDD_HHMMSS_cam<id>_<face>.jpg.
func ScreenshotName(ts time.Time, cameraID int, faceName string) string {
	return fmt.Sprintf("%s_cam%d_%s.jpg", ts.Format("20060102_150405"), cameraID, sanitize(faceName))
}

// Save writes a JPEG frame and returns its path.
func (s *ScreenshotStore) Save(frame []byte, cameraID int, faceName string, ts time.Time) (string, error) {
	if len(frame) == 0 {
		return "", &model.PersistenceError{Op: "save screenshot", Err: fmt.Errorf("empty frame")}
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", &model.PersistenceError{Op: "create directory", Path: s.dir, Err: err}
	}

	fullpath := filepath.Join(s.dir, ScreenshotName(ts, cameraID, faceName))
	if err := os.WriteFile(fullpath, frame, 0644); err != nil {
		return "", &model.PersistenceError{Op: "save screenshot", Path: fullpath, Err: err}
	}
	return fullpath, nil
}

// sanitize keeps names usable as a single path element.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}
