package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchpod/billing/internal/domain/repository"
)

type projectRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewProjectRepository creates a ProjectCounter backed by the shared
// projects table. The table is owned by the project service; this repository
// only counts rows.
func NewProjectRepository(db *gorm.DB, logger *zap.Logger) repository.ProjectCounter {
	return &projectRepository{
		db:     db,
		logger: logger,
	}
}

// CountByOwner returns how many projects the account currently owns
func (r *projectRepository) CountByOwner(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Table("projects").
		Where("owner_id = ? AND deleted_at IS NULL", accountID).
		Count(&count).Error

	if err != nil {
		r.logger.Error("Failed to count projects",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}

	return int(count), nil
}
