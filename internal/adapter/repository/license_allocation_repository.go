package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchpod/billing/internal/domain/repository"
)

type licenseAllocationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLicenseAllocationRepository creates an AllocatedDeploymentsLookup over
// the license_allocations table, which records deployment credits an account
// has committed to sub-licenses.
func NewLicenseAllocationRepository(db *gorm.DB, logger *zap.Logger) repository.AllocatedDeploymentsLookup {
	return &licenseAllocationRepository{
		db:     db,
		logger: logger,
	}
}

// AllocatedDeployments returns the sum of active allocations for an account
func (r *licenseAllocationRepository) AllocatedDeployments(ctx context.Context, accountID uuid.UUID) (int, error) {
	var total int64

	err := r.db.WithContext(ctx).
		Table("license_allocations").
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Select("COALESCE(SUM(deployments), 0)").
		Scan(&total).Error

	if err != nil {
		r.logger.Error("Failed to sum license allocations",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return 0, fmt.Errorf("failed to sum license allocations: %w", err)
	}

	return int(total), nil
}
