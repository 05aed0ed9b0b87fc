package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErrors "github.com/launchpod/billing/internal/domain/errors"
	"github.com/launchpod/billing/internal/domain/model"
	"github.com/launchpod/billing/internal/domain/plan"
	"github.com/launchpod/billing/internal/domain/provider"
	"github.com/launchpod/billing/internal/domain/repository"
)

// DowngradeValidator pre-checks that a plan change will not retroactively
// violate committed usage. Implemented by the quota service and registered
// once at startup; this breaks the cycle between subscription and quota
// logic.
type DowngradeValidator interface {
	ValidatePlanDowngrade(ctx context.Context, accountID uuid.UUID, newPlanID string) error
}

// SubscriptionService owns the canonical local subscription record per
// account. It merges provider-reported facts from webhook events and applies
// explicit user actions, keeping status and entitlement snapshot consistent
// with the last reconciled provider event.
type SubscriptionService struct {
	repo               repository.SubscriptionRepository
	gateway            provider.PaymentGateway
	catalog            *plan.Catalog
	locks              *AccountLocks
	downgradeValidator DowngradeValidator
	logger             *zap.Logger
}

// NewSubscriptionService creates a new subscription service instance
func NewSubscriptionService(
	repo repository.SubscriptionRepository,
	gateway provider.PaymentGateway,
	catalog *plan.Catalog,
	locks *AccountLocks,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		repo:    repo,
		gateway: gateway,
		catalog: catalog,
		locks:   locks,
		logger:  logger,
	}
}

// RegisterDowngradeValidator wires the quota engine's downgrade pre-check.
// Called once during startup wiring, before the server accepts traffic.
func (s *SubscriptionService) RegisterDowngradeValidator(v DowngradeValidator) {
	s.downgradeValidator = v
}

// GetOrCreateSubscription returns the account's record, creating the
// free-plan default on first access.
func (s *SubscriptionService) GetOrCreateSubscription(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error) {
	sub, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	// Re-check under the lock so concurrent first accesses create one row.
	sub, err = s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	sub = model.NewFreeSubscription(accountID, s.catalog.Free())
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Created default free subscription",
		zap.String("account_id", accountID.String()))

	return sub, nil
}

// CreateCheckoutSession starts a hosted checkout for a paid plan, creating
// the provider customer on first purchase.
func (s *SubscriptionService) CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, email, name, planID, interval, successURL, cancelURL string) (*provider.SessionRef, error) {
	p, ok := s.catalog.Get(planID)
	if !ok {
		return nil, domainErrors.ErrPlanNotFound
	}
	if p.IsFree() {
		return nil, domainErrors.ErrPlanNotPurchasable
	}

	sub, err := s.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub.PlanID == planID && sub.Status == model.SubscriptionStatusActive {
		return nil, domainErrors.ErrAlreadyOnPlan
	}

	customer, err := s.gateway.CreateOrGetCustomer(ctx, accountID.String(), email, name)
	if err != nil {
		return nil, err
	}

	if sub.ProviderCustomerID != customer.ID {
		unlock := s.locks.Lock(accountID)
		sub, err = s.repo.GetByAccountID(ctx, accountID)
		if err == nil && sub != nil {
			sub.ProviderCustomerID = customer.ID
			err = s.repo.Save(ctx, sub)
		}
		unlock()
		if err != nil {
			return nil, err
		}
	}

	return s.gateway.CreateCheckoutSession(ctx, &provider.CheckoutSessionRequest{
		CustomerID: customer.ID,
		AccountID:  accountID.String(),
		PlanID:     planID,
		Interval:   interval,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
}

// CreatePortalSession starts a hosted billing-portal session for accounts
// with a provider customer on file.
func (s *SubscriptionService) CreatePortalSession(ctx context.Context, accountID uuid.UUID, returnURL string) (*provider.SessionRef, error) {
	sub, err := s.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub.ProviderCustomerID == "" {
		return nil, domainErrors.ErrNoCustomer
	}

	return s.gateway.CreatePortalSession(ctx, sub.ProviderCustomerID, returnURL)
}

// UpdateSubscription changes the account's plan. Downgrades are validated
// first; changing to the free plan is a scheduled cancellation so paid
// entitlements survive until the period truly ends.
func (s *SubscriptionService) UpdateSubscription(ctx context.Context, accountID uuid.UUID, newPlanID, newInterval string) (*model.Subscription, error) {
	newPlan, ok := s.catalog.Get(newPlanID)
	if !ok {
		return nil, domainErrors.ErrPlanNotFound
	}

	sub, err := s.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub.PlanID == newPlanID {
		return nil, domainErrors.ErrAlreadyOnPlan
	}
	if sub.ProviderSubscriptionID == nil {
		return nil, domainErrors.ErrNoActiveSubscription
	}

	if newPlan.IsFree() {
		return s.CancelSubscription(ctx, accountID, true)
	}

	current, _ := s.catalog.Get(sub.PlanID)
	if isLowerCap(newPlan.MaxDeploymentsPerMonth, current.MaxDeploymentsPerMonth) {
		if err := s.downgradeValidator.ValidatePlanDowngrade(ctx, accountID, newPlanID); err != nil {
			return nil, err
		}
	}

	psub, err := s.gateway.UpdateSubscription(ctx, *sub.ProviderSubscriptionID, newPlanID, newInterval)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	sub, err = s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.mergeProviderSubscription(sub, psub, newPlan)
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription plan changed",
		zap.String("account_id", accountID.String()),
		zap.String("plan_id", newPlanID),
		zap.String("interval", newInterval))

	return sub, nil
}

// CancelSubscription schedules or unschedules cancellation at period end.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, accountID uuid.UUID, cancelAtPeriodEnd bool) (*model.Subscription, error) {
	sub, err := s.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub.ProviderSubscriptionID == nil {
		return nil, domainErrors.ErrNoActiveSubscription
	}

	var psub *provider.Subscription
	if cancelAtPeriodEnd {
		// The record reverts to free when the period ends, so the downgrade
		// must be legal now.
		if err := s.downgradeValidator.ValidatePlanDowngrade(ctx, accountID, plan.FreeID); err != nil {
			return nil, err
		}
		psub, err = s.gateway.CancelSubscription(ctx, *sub.ProviderSubscriptionID, false)
	} else {
		psub, err = s.gateway.ReactivateSubscription(ctx, *sub.ProviderSubscriptionID)
	}
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	sub, err = s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sub.CancelAtPeriodEnd = psub.CancelAtPeriodEnd
	if cancelAtPeriodEnd {
		sub.CancelAt = psub.CancelAt
		sub.CanceledAt = psub.CanceledAt
	} else {
		sub.CancelAt = nil
		sub.CanceledAt = nil
	}

	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription cancellation updated",
		zap.String("account_id", accountID.String()),
		zap.Bool("cancel_at_period_end", cancelAtPeriodEnd))

	return sub, nil
}

// HandleCheckoutCompleted reconciles a completed checkout: the full provider
// subscription is fetched and merged into the local record. Reapplying the
// same event converges on the same record.
func (s *SubscriptionService) HandleCheckoutCompleted(ctx context.Context, event *provider.Event) error {
	payload := event.Checkout
	if payload == nil || payload.CustomerID == "" || payload.SubscriptionID == "" {
		s.logger.Warn("Checkout event missing customer or subscription id, dropping",
			zap.String("event_id", event.ID))
		return nil
	}

	sub, err := s.repo.GetByCustomerID(ctx, payload.CustomerID)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("Checkout completed for unknown customer, dropping",
			zap.String("event_id", event.ID),
			zap.String("customer_id", payload.CustomerID))
		return nil
	}

	psub, err := s.gateway.GetSubscription(ctx, payload.SubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to fetch provider subscription %s: %w", payload.SubscriptionID, err)
	}

	p, ok := s.catalog.Get(psub.PlanID)
	if !ok {
		// Metadata absent or stale: fall back to the lowest paid plan.
		p = s.catalog.LowestPaid()
	}

	unlock := s.locks.Lock(sub.AccountID)
	defer unlock()

	sub, err = s.repo.GetByAccountID(ctx, sub.AccountID)
	if err != nil {
		return err
	}
	s.mergeProviderSubscription(sub, psub, p)
	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Checkout reconciled",
		zap.String("account_id", sub.AccountID.String()),
		zap.String("plan_id", p.ID),
		zap.String("subscription_id", psub.ID))

	return nil
}

// HandleSubscriptionUpdated merges status, period dates and cancellation
// markers. Plan and entitlements are not touched here; plan changes arrive
// via checkout-completed or the explicit update path.
func (s *SubscriptionService) HandleSubscriptionUpdated(ctx context.Context, event *provider.Event) error {
	psub := event.Subscription
	if psub == nil || psub.ID == "" {
		s.logger.Warn("Subscription event missing id, dropping", zap.String("event_id", event.ID))
		return nil
	}

	sub, err := s.repo.GetBySubscriptionID(ctx, psub.ID)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("Subscription update for unknown subscription, dropping",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", psub.ID))
		return nil
	}

	unlock := s.locks.Lock(sub.AccountID)
	defer unlock()

	sub, err = s.repo.GetByAccountID(ctx, sub.AccountID)
	if err != nil {
		return err
	}

	sub.Status = model.StatusFromProvider(psub.Status)
	sub.CurrentPeriodStart = psub.CurrentPeriodStart
	sub.CurrentPeriodEnd = psub.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = psub.CancelAtPeriodEnd
	sub.CancelAt = psub.CancelAt
	sub.CanceledAt = psub.CanceledAt

	return s.repo.Save(ctx, sub)
}

// HandleSubscriptionDeleted reverts the record to the free plan.
func (s *SubscriptionService) HandleSubscriptionDeleted(ctx context.Context, event *provider.Event) error {
	psub := event.Subscription
	if psub == nil || psub.ID == "" {
		s.logger.Warn("Subscription event missing id, dropping", zap.String("event_id", event.ID))
		return nil
	}

	sub, err := s.repo.GetBySubscriptionID(ctx, psub.ID)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("Subscription deletion for unknown subscription, dropping",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", psub.ID))
		return nil
	}

	unlock := s.locks.Lock(sub.AccountID)
	defer unlock()

	sub, err = s.repo.GetByAccountID(ctx, sub.AccountID)
	if err != nil {
		return err
	}

	sub.RevertToFree(s.catalog.Free(), time.Now())
	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Subscription deleted, reverted to free plan",
		zap.String("account_id", sub.AccountID.String()),
		zap.String("subscription_id", psub.ID))

	return nil
}

// HandleInvoicePaymentFailed marks the record past due. Entitlements are
// untouched; grace period policy belongs to callers.
func (s *SubscriptionService) HandleInvoicePaymentFailed(ctx context.Context, event *provider.Event) error {
	payload := event.Invoice
	if payload == nil || payload.CustomerID == "" {
		s.logger.Warn("Invoice event missing customer id, dropping", zap.String("event_id", event.ID))
		return nil
	}

	sub, err := s.repo.GetByCustomerID(ctx, payload.CustomerID)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("Payment failure for unknown customer, dropping",
			zap.String("event_id", event.ID),
			zap.String("customer_id", payload.CustomerID))
		return nil
	}

	unlock := s.locks.Lock(sub.AccountID)
	defer unlock()

	sub, err = s.repo.GetByAccountID(ctx, sub.AccountID)
	if err != nil {
		return err
	}

	sub.Status = model.SubscriptionStatusPastDue
	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}

	s.logger.Warn("Invoice payment failed",
		zap.String("account_id", sub.AccountID.String()),
		zap.String("customer_id", payload.CustomerID),
		zap.Int64("amount_due", payload.AmountDue))

	return nil
}

// HandleInvoicePaymentSucceeded clears a past-due status and advances the
// period end when the invoice carries one.
func (s *SubscriptionService) HandleInvoicePaymentSucceeded(ctx context.Context, event *provider.Event) error {
	payload := event.Invoice
	if payload == nil || payload.CustomerID == "" {
		s.logger.Warn("Invoice event missing customer id, dropping", zap.String("event_id", event.ID))
		return nil
	}

	sub, err := s.repo.GetByCustomerID(ctx, payload.CustomerID)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("Payment success for unknown customer, dropping",
			zap.String("event_id", event.ID),
			zap.String("customer_id", payload.CustomerID))
		return nil
	}

	unlock := s.locks.Lock(sub.AccountID)
	defer unlock()

	sub, err = s.repo.GetByAccountID(ctx, sub.AccountID)
	if err != nil {
		return err
	}

	if sub.Status == model.SubscriptionStatusPastDue {
		sub.Status = model.SubscriptionStatusActive
	}
	if payload.PeriodEnd != nil {
		sub.CurrentPeriodEnd = payload.PeriodEnd
	}

	return s.repo.Save(ctx, sub)
}

// mergeProviderSubscription overwrites provider-sourced fields on the local
// record. Overwrites, not deltas, so replays and out-of-order events
// converge on the last processed state.
func (s *SubscriptionService) mergeProviderSubscription(sub *model.Subscription, psub *provider.Subscription, p plan.Config) {
	sub.ApplyPlan(p)

	subID := psub.ID
	sub.ProviderSubscriptionID = &subID
	if psub.PriceID != "" {
		priceID := psub.PriceID
		sub.ProviderPriceID = &priceID
	}
	interval := psub.Interval
	if interval == "" {
		interval = plan.IntervalMonthly
	}
	sub.BillingInterval = &interval

	sub.Status = model.StatusFromProvider(psub.Status)
	sub.CurrentPeriodStart = psub.CurrentPeriodStart
	sub.CurrentPeriodEnd = psub.CurrentPeriodEnd
	sub.TrialStart = psub.TrialStart
	sub.TrialEnd = psub.TrialEnd
	sub.CancelAtPeriodEnd = psub.CancelAtPeriodEnd
	sub.CancelAt = psub.CancelAt
	sub.CanceledAt = psub.CanceledAt
	sub.Amount = decimal.NewFromInt(psub.Amount).Div(decimal.NewFromInt(100))
}

// isLowerCap reports whether newCap is more restrictive than currentCap,
// treating -1 as unlimited.
func isLowerCap(newCap, currentCap int) bool {
	if newCap == plan.Unlimited {
		return false
	}
	if currentCap == plan.Unlimited {
		return true
	}
	return newCap < currentCap
}
