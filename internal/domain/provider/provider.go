package provider

import (
	"context"
	"time"
)

// PaymentGateway is the typed façade over the remote billing provider. All
// calls are fallible with a *errors.ProviderError; the gateway never retries.
type PaymentGateway interface {
	// CreateOrGetCustomer looks up a provider customer by email and creates
	// one when none exists.
	CreateOrGetCustomer(ctx context.Context, accountID string, email, name string) (*CustomerRef, error)

	// CreateCheckoutSession starts a hosted checkout for the given plan and
	// interval. Fails when the plan is free or has no price for the interval.
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*SessionRef, error)

	// CreatePortalSession starts a hosted billing-portal session.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*SessionRef, error)

	// GetSubscription retrieves the full provider subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// CancelSubscription cancels immediately or schedules cancellation at
	// period end.
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*Subscription, error)

	// ReactivateSubscription unschedules a pending cancellation.
	ReactivateSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// UpdateSubscription replaces the subscription's line item with the price
	// for the new plan and interval, prorating the difference.
	UpdateSubscription(ctx context.Context, subscriptionID, planID, interval string) (*Subscription, error)

	// VerifyAndParseEvent authenticates a raw webhook payload against the
	// shared secret and decodes it into an Event. A signature mismatch is
	// reported as *errors.SignatureError.
	VerifyAndParseEvent(payload []byte, signatureHeader string) (*Event, error)
}

// CustomerRef identifies a provider customer.
type CustomerRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SessionRef identifies a hosted checkout or portal session.
type SessionRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutSessionRequest carries everything needed to start a checkout.
type CheckoutSessionRequest struct {
	CustomerID string
	AccountID  string
	PlanID     string
	Interval   string
	SuccessURL string
	CancelURL  string
}

// Subscription is the provider's view of a subscription, converted to domain
// types at the gateway boundary.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	PlanID             string // from metadata, may be empty
	Interval           string // from metadata or price, may be empty
	Amount             int64  // unit amount in cents
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  bool
	CancelAt           *time.Time
	CanceledAt         *time.Time
}

// EventKind tags the finite set of webhook event kinds this service handles.
type EventKind string

const (
	EventCheckoutCompleted       EventKind = "checkout.session.completed"
	EventSubscriptionCreated     EventKind = "customer.subscription.created"
	EventSubscriptionUpdated     EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted     EventKind = "customer.subscription.deleted"
	EventInvoicePaymentFailed    EventKind = "invoice.payment_failed"
	EventInvoicePaymentSucceeded EventKind = "invoice.payment_succeeded"
	EventUnknown                 EventKind = "unknown"
)

// Event is the tagged union over webhook event kinds. Exactly one of the
// payload pointers is set for a recognized kind; all are nil for
// EventUnknown, which is always a no-op.
type Event struct {
	ID   string
	Kind EventKind

	Checkout     *CheckoutPayload
	Subscription *Subscription
	Invoice      *InvoicePayload
}

// CheckoutPayload is the slice of a completed checkout session the state
// machine acts on.
type CheckoutPayload struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
}

// InvoicePayload is the slice of an invoice event the state machine acts on.
type InvoicePayload struct {
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	AmountDue      int64
	AmountPaid     int64
	PeriodEnd      *time.Time
}
