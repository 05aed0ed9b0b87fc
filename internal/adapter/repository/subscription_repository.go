package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchpod/billing/internal/domain/model"
	"github.com/launchpod/billing/internal/domain/repository"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// GetByAccountID retrieves the subscription record for an account
func (r *subscriptionRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by account ID",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// GetByCustomerID retrieves the subscription by provider customer ID
func (r *subscriptionRepository) GetByCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("provider_customer_id = ?", customerID).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by customer ID",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// GetBySubscriptionID retrieves the subscription by provider subscription ID
func (r *subscriptionRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("provider_subscription_id = ?", subscriptionID).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by subscription ID",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// Create inserts a new subscription record
func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	err := r.db.WithContext(ctx).Create(sub).Error
	if err != nil {
		r.logger.Error("Failed to create subscription",
			zap.String("account_id", sub.AccountID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// Save persists all fields of an existing subscription record
func (r *subscriptionRepository) Save(ctx context.Context, sub *model.Subscription) error {
	err := r.db.WithContext(ctx).Save(sub).Error
	if err != nil {
		r.logger.Error("Failed to save subscription",
			zap.String("account_id", sub.AccountID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to save subscription: %w", err)
	}

	return nil
}
