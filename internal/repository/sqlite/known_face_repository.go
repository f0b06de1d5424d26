package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"strings"

	"facewatch/internal/model"
)

// KnownFaceRepository implements repository.KnownFaceRepository for SQLite.
type KnownFaceRepository struct {
	db *DB
}

// NewKnownFaceRepository creates a new SQLite known face repository.
func NewKnownFaceRepository(db *DB) *KnownFaceRepository {
	return &KnownFaceRepository{db: db}
}

// Insert stores a face. Names are unique.
func (r *KnownFaceRepository) Insert(ctx context.Context, face *model.KnownFace) (int64, error) {
	blob, err := encodeEmbedding(face.Embedding)
	if err != nil {
		return 0, err
	}

	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO known_faces (name, embedding, image_path, created_at)
		VALUES (?, ?, ?, ?)
	`, face.Name, blob, face.ImagePath, toUnix(face.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("%w: %s", model.ErrDuplicateFace, face.Name)
		}
		return 0, fmt.Errorf("failed to insert known face: %w", err)
	}

	return result.LastInsertId()
}

// GetAll returns every known face in insertion order.
func (r *KnownFaceRepository) GetAll(ctx context.Context) ([]model.KnownFace, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, name, embedding, image_path, created_at FROM known_faces ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query known faces: %w", err)
	}
	defer rows.Close()

	var faces []model.KnownFace
	for rows.Next() {
		face, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, *face)
	}
	return faces, rows.Err()
}

// GetByName returns the face enrolled under name, or nil if there is none.
func (r *KnownFaceRepository) GetByName(ctx context.Context, name string) (*model.KnownFace, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, embedding, image_path, created_at FROM known_faces WHERE name = ?
	`, name)

	face, err := scanFace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return face, err
}

// DeleteByName removes the face enrolled under name.
func (r *KnownFaceRepository) DeleteByName(ctx context.Context, name string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM known_faces WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete known face: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFace(s scanner) (*model.KnownFace, error) {
	var (
		face    model.KnownFace
		blob    []byte
		created float64
	)
	if err := s.Scan(&face.ID, &face.Name, &blob, &face.ImagePath, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan known face: %w", err)
	}

	emb, err := decodeEmbedding(blob)
	if err != nil {
		return nil, fmt.Errorf("known face %s: %w", face.Name, err)
	}
	face.Embedding = emb
	face.CreatedAt = fromUnix(created)
	return &face, nil
}

// Embeddings are stored as little-endian float32 arrays.
func encodeEmbedding(v []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has invalid length %d", len(blob))
	}
	v := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return v, nil
}
