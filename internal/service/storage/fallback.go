package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"facewatch/internal/model"

	"github.com/google/uuid"
)

// FallbackLogName is the append-only record of undelivered notifications.
const FallbackLogName = "failed_alerts.log"

// FallbackStore keeps notifications that could not be delivered: one line per
// message in failed_alerts.log and a copy of the screenshot under images/.
type FallbackStore struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func NewFallbackStore(dir string) *FallbackStore {
	return &FallbackStore{dir: dir, now: time.Now}
}

// LogPath is the location of the fallback record.
func (f *FallbackStore) LogPath() string {
	return filepath.Join(f.dir, FallbackLogName)
}

// Record appends text and, when imagePath is set, copies the image into the
// fallback directory. It returns the path of the copied image, if any.
func (f *FallbackStore) Record(text, imagePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", &model.PersistenceError{Op: "create directory", Path: f.dir, Err: err}
	}

	now := f.now()
	line := fmt.Sprintf("%s: %s\n", now.Format(time.ANSIC), strings.ReplaceAll(text, "\n", " | "))

	file, err := os.OpenFile(f.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", &model.PersistenceError{Op: "open fallback log", Path: f.LogPath(), Err: err}
	}
	if _, err := file.WriteString(line); err != nil {
		file.Close()
		return "", &model.PersistenceError{Op: "append fallback log", Path: f.LogPath(), Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &model.PersistenceError{Op: "close fallback log", Path: f.LogPath(), Err: err}
	}

	if imagePath == "" {
		return "", nil
	}

	imagesDir := filepath.Join(f.dir, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return "", &model.PersistenceError{Op: "create directory", Path: imagesDir, Err: err}
	}
	dst := filepath.Join(imagesDir, fmt.Sprintf("alert_%d_%s.jpg", now.Unix(), uuid.NewString()[:8]))
	if err := copyFile(imagePath, dst); err != nil {
		return "", &model.PersistenceError{Op: "copy screenshot", Path: dst, Err: err}
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
