package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/launchpod/billing/internal/domain/plan"
)

// SubscriptionStatus mirrors the payment provider's subscription status codes.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = SubscriptionStatusActive
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// StatusFromProvider maps a provider-reported status string onto the local
// status set. Unknown values default to incomplete so an unconfirmed state
// never grants access.
func StatusFromProvider(status string) SubscriptionStatus {
	switch SubscriptionStatus(status) {
	case SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
		SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired,
		SubscriptionStatusTrialing,
		SubscriptionStatusUnpaid,
		SubscriptionStatusPaused:
		return SubscriptionStatus(status)
	default:
		return SubscriptionStatusIncomplete
	}
}

// Subscription is the canonical local billing record, one per account. The
// entitlement columns are a snapshot of the plan taken when the plan was
// last confirmed by the provider.
type Subscription struct {
	ID                     int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID              uuid.UUID          `gorm:"type:uuid;uniqueIndex;not null" json:"account_id"`
	ProviderCustomerID     string             `gorm:"size:100;index" json:"provider_customer_id"`
	ProviderSubscriptionID *string            `gorm:"unique;size:100" json:"provider_subscription_id,omitempty"`
	ProviderPriceID        *string            `gorm:"size:100" json:"provider_price_id,omitempty"`
	PlanID                 string             `gorm:"not null;size:50;default:'free'" json:"plan_id"`
	BillingInterval        *string            `gorm:"size:10" json:"billing_interval,omitempty"`
	Status                 SubscriptionStatus `gorm:"type:subscription_status;not null;default:'active'" json:"status"`

	// Entitlement snapshot
	MaxProjects            int  `gorm:"not null" json:"max_projects"`
	MaxDeployments         int  `gorm:"not null" json:"max_deployments"`
	MaxDeploymentsPerMonth int  `gorm:"not null" json:"max_deployments_per_month"`
	CustomDomain           bool `gorm:"not null;default:false" json:"custom_domain"`
	PrioritySupport        bool `gorm:"not null;default:false" json:"priority_support"`
	Analytics              bool `gorm:"not null;default:false" json:"analytics"`

	// Usage counters
	DeploymentsThisMonth   int       `gorm:"not null;default:0" json:"deployments_this_month"`
	TotalDeploymentsUsed   int       `gorm:"not null;default:0" json:"total_deployments_used"`
	DeploymentCountResetAt time.Time `gorm:"not null" json:"deployment_count_reset_at"`

	// Lifecycle markers
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	TrialStart         *time.Time `json:"trial_start,omitempty"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	CancelAtPeriodEnd  bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CancelAt           *time.Time `json:"cancel_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`

	// Last known price, informational only
	Amount decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"amount"`

	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}

// NewFreeSubscription builds the default record for an account seen for the
// first time.
func NewFreeSubscription(accountID uuid.UUID, free plan.Config) *Subscription {
	sub := &Subscription{
		AccountID:              accountID,
		PlanID:                 free.ID,
		Status:                 SubscriptionStatusActive,
		DeploymentCountResetAt: time.Now(),
	}
	sub.ApplyPlan(free)
	return sub
}

// ApplyPlan copies the plan's entitlement snapshot onto the record. Usage
// counters are untouched.
func (s *Subscription) ApplyPlan(p plan.Config) {
	s.PlanID = p.ID
	s.MaxProjects = p.MaxProjects
	s.MaxDeployments = p.MaxDeployments
	s.MaxDeploymentsPerMonth = p.MaxDeploymentsPerMonth
	s.CustomDomain = p.CustomDomain
	s.PrioritySupport = p.PrioritySupport
	s.Analytics = p.Analytics
}

// RevertToFree returns the record to the free plan: provider subscription,
// price and period fields are cleared, entitlements are the free plan's, and
// the cancellation timestamp is stamped.
func (s *Subscription) RevertToFree(free plan.Config, canceledAt time.Time) {
	s.ApplyPlan(free)
	s.ProviderSubscriptionID = nil
	s.ProviderPriceID = nil
	s.BillingInterval = nil
	s.Status = SubscriptionStatusActive
	s.CurrentPeriodStart = nil
	s.CurrentPeriodEnd = nil
	s.TrialStart = nil
	s.TrialEnd = nil
	s.CancelAtPeriodEnd = false
	s.CancelAt = nil
	s.CanceledAt = &canceledAt
	s.Amount = decimal.Zero
}
