package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/launchpod/billing/internal/domain/errors"
	"github.com/launchpod/billing/internal/domain/model"
	"github.com/launchpod/billing/internal/domain/plan"
	"github.com/launchpod/billing/internal/domain/repository"
)

// SubscriptionSource provides the current entitlement snapshot for an
// account, creating the free-plan default when none exists.
type SubscriptionSource interface {
	GetOrCreateSubscription(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error)
}

// QuotaService gates resource consumption against the entitlement snapshot:
// a monthly rate limit that resets each calendar month, a lifetime credit
// pool that never resets, and a project cap counted by an external
// collaborator.
type QuotaService struct {
	subscriptions SubscriptionSource
	repo          repository.SubscriptionRepository
	projects      repository.ProjectCounter
	allocations   repository.AllocatedDeploymentsLookup
	catalog       *plan.Catalog
	locks         *AccountLocks
	logger        *zap.Logger
}

// NewQuotaService creates a new quota service instance. The locks instance
// must be the one shared with the subscription service.
func NewQuotaService(
	subscriptions SubscriptionSource,
	repo repository.SubscriptionRepository,
	projects repository.ProjectCounter,
	allocations repository.AllocatedDeploymentsLookup,
	catalog *plan.Catalog,
	locks *AccountLocks,
	logger *zap.Logger,
) *QuotaService {
	return &QuotaService{
		subscriptions: subscriptions,
		repo:          repo,
		projects:      projects,
		allocations:   allocations,
		catalog:       catalog,
		locks:         locks,
		logger:        logger,
	}
}

// ValidateProjectCreation checks the project cap.
func (s *QuotaService) ValidateProjectCreation(ctx context.Context, accountID uuid.UUID) error {
	sub, err := s.subscriptions.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return err
	}
	if sub.MaxProjects == plan.Unlimited {
		return nil
	}

	count, err := s.projects.CountByOwner(ctx, accountID)
	if err != nil {
		return err
	}
	if count >= sub.MaxProjects {
		return domainErrors.NewQuotaExceededError(domainErrors.LimitProjects, count, sub.MaxProjects)
	}

	return nil
}

// ValidateDeployment checks the lifetime credit pool first, then the monthly
// rate limit, each with its own error so callers can message them apart.
func (s *QuotaService) ValidateDeployment(ctx context.Context, accountID uuid.UUID) error {
	sub, unlock, err := s.lockAccountRecord(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.resetIfNewMonth(ctx, sub); err != nil {
		return err
	}

	return checkDeploymentGates(sub)
}

// IncrementDeploymentCount consumes one deployment: the reset check runs,
// both gates are re-evaluated under the account lock, and the monthly and
// lifetime counters advance together. The recheck makes the operation safe
// against a concurrent consumer that validated against the same snapshot.
func (s *QuotaService) IncrementDeploymentCount(ctx context.Context, accountID uuid.UUID) error {
	sub, unlock, err := s.lockAccountRecord(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.resetIfNewMonth(ctx, sub); err != nil {
		return err
	}

	if err := checkDeploymentGates(sub); err != nil {
		return err
	}

	sub.DeploymentsThisMonth++
	sub.TotalDeploymentsUsed++
	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Deployment counted",
		zap.String("account_id", accountID.String()),
		zap.Int("deployments_this_month", sub.DeploymentsThisMonth),
		zap.Int("total_deployments_used", sub.TotalDeploymentsUsed))

	return nil
}

// GetRemainingDeployments returns how many deployments remain this month,
// or -1 when the monthly cap is unlimited.
func (s *QuotaService) GetRemainingDeployments(ctx context.Context, accountID uuid.UUID) (int, error) {
	sub, unlock, err := s.lockAccountRecord(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if err := s.resetIfNewMonth(ctx, sub); err != nil {
		return 0, err
	}

	if sub.MaxDeploymentsPerMonth == plan.Unlimited {
		return plan.Unlimited, nil
	}
	remaining := sub.MaxDeploymentsPerMonth - sub.DeploymentsThisMonth
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// GetRemainingCredits returns how many lifetime deployment credits remain,
// or -1 when the pool is unlimited.
func (s *QuotaService) GetRemainingCredits(ctx context.Context, accountID uuid.UUID) (int, error) {
	sub, err := s.subscriptions.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return 0, err
	}

	if sub.MaxDeployments == plan.Unlimited {
		return plan.Unlimited, nil
	}
	remaining := sub.MaxDeployments - sub.TotalDeploymentsUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// GetRemainingProjects returns how many more projects the account may
// create, or -1 when the cap is unlimited.
func (s *QuotaService) GetRemainingProjects(ctx context.Context, accountID uuid.UUID) (int, error) {
	sub, err := s.subscriptions.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if sub.MaxProjects == plan.Unlimited {
		return plan.Unlimited, nil
	}

	count, err := s.projects.CountByOwner(ctx, accountID)
	if err != nil {
		return 0, err
	}
	remaining := sub.MaxProjects - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ValidatePlanDowngrade fails when already-committed usage would exceed the
// target plan's caps: allocated deployment credits against the monthly cap,
// and current project count against the project cap.
func (s *QuotaService) ValidatePlanDowngrade(ctx context.Context, accountID uuid.UUID, newPlanID string) error {
	newPlan, ok := s.catalog.Get(newPlanID)
	if !ok {
		return domainErrors.ErrPlanNotFound
	}

	if newPlan.MaxDeploymentsPerMonth != plan.Unlimited {
		allocated, err := s.allocations.AllocatedDeployments(ctx, accountID)
		if err != nil {
			return err
		}
		if allocated > newPlan.MaxDeploymentsPerMonth {
			return domainErrors.NewDowngradeBlockedError(newPlanID,
				domainErrors.LimitMonthlyDeployments, allocated, newPlan.MaxDeploymentsPerMonth)
		}
	}

	if newPlan.MaxProjects != plan.Unlimited {
		count, err := s.projects.CountByOwner(ctx, accountID)
		if err != nil {
			return err
		}
		if count > newPlan.MaxProjects {
			return domainErrors.NewDowngradeBlockedError(newPlanID,
				domainErrors.LimitProjects, count, newPlan.MaxProjects)
		}
	}

	return nil
}

// lockAccountRecord ensures the record exists, acquires the account lock,
// and re-reads the record under it. The get-or-create happens before locking
// because its create path takes the same lock.
func (s *QuotaService) lockAccountRecord(ctx context.Context, accountID uuid.UUID) (*model.Subscription, func(), error) {
	if _, err := s.subscriptions.GetOrCreateSubscription(ctx, accountID); err != nil {
		return nil, nil, err
	}

	unlock := s.locks.Lock(accountID)
	sub, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		unlock()
		return nil, nil, err
	}

	return sub, unlock, nil
}

// resetIfNewMonth zeroes the monthly counter when the calendar month has
// rolled over since the last reset, persisting immediately. Must run under
// the account lock.
func (s *QuotaService) resetIfNewMonth(ctx context.Context, sub *model.Subscription) error {
	now := time.Now()
	last := sub.DeploymentCountResetAt
	if last.Month() == now.Month() && last.Year() == now.Year() {
		return nil
	}

	sub.DeploymentsThisMonth = 0
	sub.DeploymentCountResetAt = now
	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Monthly deployment counter reset",
		zap.String("account_id", sub.AccountID.String()))

	return nil
}

// checkDeploymentGates evaluates the lifetime pool then the monthly limit.
func checkDeploymentGates(sub *model.Subscription) error {
	if sub.MaxDeployments != plan.Unlimited && sub.TotalDeploymentsUsed >= sub.MaxDeployments {
		return domainErrors.NewQuotaExceededError(domainErrors.LimitLifetimeDeployments,
			sub.TotalDeploymentsUsed, sub.MaxDeployments)
	}
	if sub.MaxDeploymentsPerMonth != plan.Unlimited && sub.DeploymentsThisMonth >= sub.MaxDeploymentsPerMonth {
		return domainErrors.NewQuotaExceededError(domainErrors.LimitMonthlyDeployments,
			sub.DeploymentsThisMonth, sub.MaxDeploymentsPerMonth)
	}
	return nil
}
