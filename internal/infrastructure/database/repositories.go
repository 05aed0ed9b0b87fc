package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchpod/billing/internal/adapter/repository"
	domainRepo "github.com/launchpod/billing/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Subscription domainRepo.SubscriptionRepository
	Projects     domainRepo.ProjectCounter
	Allocations  domainRepo.AllocatedDeploymentsLookup
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Subscription: repository.NewSubscriptionRepository(db, logger),
		Projects:     repository.NewProjectRepository(db, logger),
		Allocations:  repository.NewLicenseAllocationRepository(db, logger),
	}
}
