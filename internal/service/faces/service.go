package faces

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/repository"
	"facewatch/internal/service/recognition"
)

// Detector finds faces and their embeddings in an encoded image.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]model.DetectedFace, error)
}

// SyncResult summarizes a directory scan.
type SyncResult struct {
	Enrolled int
	Removed  int
	Skipped  []string
}

// Service keeps the known-faces directory, the known_faces table and the
// in-memory gallery consistent. Every change rebuilds the gallery wholesale.
type Service struct {
	detector Detector
	repo     repository.KnownFaceRepository
	gallery  *recognition.Gallery
	dir      string
	logger   *logger.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewService(detector Detector, repo repository.KnownFaceRepository, gallery *recognition.Gallery, dir string, log *logger.Logger) *Service {
	return &Service{
		detector: detector,
		repo:     repo,
		gallery:  gallery,
		dir:      dir,
		logger:   log,
		now:      time.Now,
	}
}

func (s *Service) Dir() string { return s.dir }

// List returns the enrolled faces in gallery order.
func (s *Service) List() []model.KnownFace {
	return s.gallery.Snapshot()
}

// Sync reconciles the directory with the table: images without a row are
// enrolled, rows whose image is gone are dropped. The gallery is rebuilt after.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res SyncResult
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return res, &model.PersistenceError{Op: "create directory", Path: s.dir, Err: err}
	}

	images, err := s.scanDir()
	if err != nil {
		return res, err
	}

	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return res, &model.PersistenceError{Op: "load known faces", Err: err}
	}

	known := make(map[string]bool, len(rows))
	for _, row := range rows {
		if _, err := os.Stat(row.ImagePath); err != nil {
			if err := s.repo.DeleteByName(ctx, row.Name); err != nil {
				return res, &model.PersistenceError{Op: "remove stale face", Err: err}
			}
			s.logger.Info("Known face %s removed: image %s is gone", row.Name, row.ImagePath)
			res.Removed++
			continue
		}
		known[row.Name] = true
	}

	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if known[name] {
			continue
		}
		path := images[name]
		if err := s.enrollFile(ctx, name, path); err != nil {
			s.logger.Warning("Skipping known face image %s: %v", path, err)
			res.Skipped = append(res.Skipped, path)
			continue
		}
		res.Enrolled++
	}

	if err := s.rebuildLocked(ctx); err != nil {
		return res, err
	}
	s.logger.Info("Known faces synced: %d in gallery, %d enrolled, %d removed, %d skipped",
		s.gallery.Len(), res.Enrolled, res.Removed, len(res.Skipped))
	return res, nil
}

// scanDir maps name (file stem) to image path.
func (s *Service) scanDir() (map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &model.PersistenceError{Op: "read directory", Path: s.dir, Err: err}
	}
	out := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, dup := out[name]; dup {
			continue
		}
		out[name] = filepath.Join(s.dir, e.Name())
	}
	return out, nil
}

// IsImageFile reports whether a file name has a supported image extension.
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func (s *Service) enrollFile(ctx context.Context, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	face, err := s.embed(ctx, data)
	if err != nil {
		return err
	}
	_, err = s.repo.Insert(ctx, &model.KnownFace{
		Name:      name,
		Embedding: face.Embedding,
		ImagePath: path,
		CreatedAt: s.now(),
	})
	return err
}

// embed runs the detector and keeps the first face.
func (s *Service) embed(ctx context.Context, image []byte) (*model.DetectedFace, error) {
	faces, err := s.detector.Detect(ctx, image)
	if err != nil {
		var merr *model.ModelError
		if !errors.As(err, &merr) {
			err = &model.ModelError{Op: "detect", Err: err}
		}
		return nil, err
	}
	if len(faces) == 0 || len(faces[0].Embedding) == 0 {
		return nil, model.ErrNoFaceFound
	}
	return &faces[0], nil
}

// Enroll adds a face from an encoded image. The image is stored in the
// known-faces directory under the face's name.
func (s *Service) Enroll(ctx context.Context, name string, image []byte) (*model.KnownFace, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, &model.PersistenceError{Op: "look up face", Err: err}
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrDuplicateFace, name)
	}

	face, err := s.embed(ctx, image)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, &model.PersistenceError{Op: "create directory", Path: s.dir, Err: err}
	}
	path := filepath.Join(s.dir, name+extensionFor(image))
	if err := os.WriteFile(path, image, 0644); err != nil {
		return nil, &model.PersistenceError{Op: "save face image", Path: path, Err: err}
	}

	known := &model.KnownFace{
		Name:      name,
		Embedding: face.Embedding,
		ImagePath: path,
		CreatedAt: s.now(),
	}
	id, err := s.repo.Insert(ctx, known)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	known.ID = id

	if err := s.rebuildLocked(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("Enrolled known face %s", name)
	return known, nil
}

// Remove deletes a face's image and row and rebuilds the gallery.
func (s *Service) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	face, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return &model.PersistenceError{Op: "look up face", Err: err}
	}
	if face == nil {
		return fmt.Errorf("%w: %s", model.ErrFaceNotFound, name)
	}

	if err := os.Remove(face.ImagePath); err != nil && !os.IsNotExist(err) {
		return &model.PersistenceError{Op: "remove face image", Path: face.ImagePath, Err: err}
	}
	if err := s.repo.DeleteByName(ctx, name); err != nil {
		return &model.PersistenceError{Op: "remove face", Err: err}
	}

	if err := s.rebuildLocked(ctx); err != nil {
		return err
	}
	s.logger.Info("Removed known face %s", name)
	return nil
}

func (s *Service) rebuildLocked(ctx context.Context) error {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return &model.PersistenceError{Op: "load known faces", Err: err}
	}
	return s.gallery.Replace(rows)
}

// ValidateName rejects names that cannot be used as a single file name.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", model.ErrInvalidName, name)
	}
	return nil
}

func extensionFor(image []byte) string {
	if http.DetectContentType(image) == "image/png" {
		return ".png"
	}
	return ".jpg"
}
