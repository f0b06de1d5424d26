package recognition

import (
	"fmt"
	"sync"

	"facewatch/internal/model"
)

// Gallery holds the known faces as an ordered snapshot. Readers get the
// current snapshot; Replace swaps in a new one wholesale.
type Gallery struct {
	mu    sync.RWMutex
	faces []model.KnownFace
}

func NewGallery() *Gallery {
	return &Gallery{}
}

// Snapshot returns the current entries in insertion order. The slice must not be modified.
func (g *Gallery) Snapshot() []model.KnownFace {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.faces
}

// Replace installs a new set of faces. Names must be unique.
func (g *Gallery) Replace(faces []model.KnownFace) error {
	seen := make(map[string]bool, len(faces))
	for _, f := range faces {
		if seen[f.Name] {
			return fmt.Errorf("%w: %s", model.ErrDuplicateFace, f.Name)
		}
		seen[f.Name] = true
	}

	next := make([]model.KnownFace, len(faces))
	copy(next, faces)

	g.mu.Lock()
	g.faces = next
	g.mu.Unlock()
	return nil
}

func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.faces)
}

// Names lists the enrolled names in gallery order.
func (g *Gallery) Names() []string {
	faces := g.Snapshot()
	names := make([]string, len(faces))
	for i, f := range faces {
		names[i] = f.Name
	}
	return names
}
