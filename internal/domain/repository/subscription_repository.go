package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/launchpod/billing/internal/domain/model"
)

// SubscriptionRepository stores one billing record per account. Lookups
// return (nil, nil) when no record matches.
type SubscriptionRepository interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error)
	GetByCustomerID(ctx context.Context, customerID string) (*model.Subscription, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	Create(ctx context.Context, sub *model.Subscription) error
	Save(ctx context.Context, sub *model.Subscription) error
}

// ProjectCounter reports how many projects an account currently owns.
// Project records live outside this service.
type ProjectCounter interface {
	CountByOwner(ctx context.Context, accountID uuid.UUID) (int, error)
}

// AllocatedDeploymentsLookup reports deployment credits an account has
// already committed elsewhere (for example to sub-licenses). Used only by
// downgrade validation.
type AllocatedDeploymentsLookup interface {
	AllocatedDeployments(ctx context.Context, accountID uuid.UUID) (int, error)
}
