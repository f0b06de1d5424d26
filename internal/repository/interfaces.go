package repository

import (
	"context"

	"facewatch/internal/dto"
	"facewatch/internal/model"
)

// AlertRepository is the persistent alert log.
type AlertRepository interface {
	// Create operations
	Append(ctx context.Context, event *model.AlertEvent) (int64, error)

	// Read operations
	Query(ctx context.Context, filter *dto.AlertFilters) ([]model.AlertEvent, error)
	Count(ctx context.Context, filter *dto.AlertFilters) (int, error)
	Stats(ctx context.Context) (*dto.AlertStats, error)

	// Delete operations
	DeleteAll(ctx context.Context) error
}

// KnownFaceRepository stores enrolled faces and their embeddings.
type KnownFaceRepository interface {
	// Create operations
	Insert(ctx context.Context, face *model.KnownFace) (int64, error)

	// Read operations
	GetAll(ctx context.Context) ([]model.KnownFace, error)
	GetByName(ctx context.Context, name string) (*model.KnownFace, error)

	// Delete operations
	DeleteByName(ctx context.Context, name string) error
}
