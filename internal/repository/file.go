package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/model"
)

// IFileRepository exposes the narrow file lookups the messaging core needs.
// File creation and pipeline status updates belong to the upload service.
type IFileRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]*model.File, error)
}

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) IFileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.File, error) {
	if len(ids) == 0 {
		return []*model.File{}, nil
	}
	var files []*model.File
	err := r.db.WithContext(ctx).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
