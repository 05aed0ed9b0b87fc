package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	domainErrors "github.com/launchpod/billing/internal/domain/errors"
	"github.com/launchpod/billing/internal/domain/plan"
	"github.com/launchpod/billing/internal/domain/provider"
)

// Metadata keys written onto provider subscriptions at checkout and read
// back during reconciliation.
const (
	metadataPlanID    = "plan_id"
	metadataInterval  = "interval"
	metadataAccountID = "account_id"
)

// Gateway implements provider.PaymentGateway on top of Stripe.
type Gateway struct {
	catalog       *plan.Catalog
	webhookSecret string
	logger        *zap.Logger
}

// NewGateway configures the Stripe client and returns the gateway. The
// catalog resolves plan ids to price references.
func NewGateway(secretKey, webhookSecret string, catalog *plan.Catalog, logger *zap.Logger) *Gateway {
	stripe.Key = secretKey
	return &Gateway{
		catalog:       catalog,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreateOrGetCustomer looks up a customer by email before creating one, so
// repeated checkouts for the same account stay idempotent.
func (g *Gateway) CreateOrGetCustomer(ctx context.Context, accountID string, email, name string) (*provider.CustomerRef, error) {
	listParams := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := customer.List(listParams)
	for iter.Next() {
		c := iter.Customer()
		return &provider.CustomerRef{ID: c.ID, Email: c.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, wrapProviderError(err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			metadataAccountID: accountID,
		},
	}
	params.Context = ctx
	if name != "" {
		params.Name = stripe.String(name)
	}

	c, err := customer.New(params)
	if err != nil {
		return nil, wrapProviderError(err)
	}

	g.logger.Info("Created provider customer",
		zap.String("customer_id", c.ID),
		zap.String("account_id", accountID))

	return &provider.CustomerRef{ID: c.ID, Email: c.Email}, nil
}

// CreateCheckoutSession starts a hosted subscription checkout. The plan and
// interval are stamped into the subscription metadata so the webhook
// reconciliation can resolve them later.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req *provider.CheckoutSessionRequest) (*provider.SessionRef, error) {
	p, ok := g.catalog.Get(req.PlanID)
	if !ok {
		return nil, domainErrors.ErrPlanNotFound
	}
	if p.IsFree() {
		return nil, domainErrors.ErrPlanNotPurchasable
	}
	priceID := p.PriceIDFor(req.Interval)
	if priceID == "" {
		return nil, domainErrors.ErrPlanNotPurchasable
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(req.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metadataPlanID:    req.PlanID,
				metadataInterval:  req.Interval,
				metadataAccountID: req.AccountID,
			},
		},
	}
	params.Context = ctx

	s, err := checkoutsession.New(params)
	if err != nil {
		return nil, wrapProviderError(err)
	}

	g.logger.Info("Checkout session created",
		zap.String("session_id", s.ID),
		zap.String("plan_id", req.PlanID),
		zap.String("interval", req.Interval))

	return &provider.SessionRef{ID: s.ID, URL: s.URL}, nil
}

// CreatePortalSession starts a hosted billing-portal session.
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*provider.SessionRef, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	ps, err := portalsession.New(params)
	if err != nil {
		return nil, wrapProviderError(err)
	}

	return &provider.SessionRef{ID: ps.ID, URL: ps.URL}, nil
}

// GetSubscription retrieves the full provider subscription with its price
// expanded.
func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (*provider.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, wrapProviderError(err)
	}

	return g.toProviderSubscription(sub), nil
}

// CancelSubscription cancels immediately or schedules cancellation at period
// end.
func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*provider.Subscription, error) {
	if immediate {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		sub, err := subscription.Cancel(subscriptionID, params)
		if err != nil {
			return nil, wrapProviderError(err)
		}
		return g.toProviderSubscription(sub), nil
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, wrapProviderError(err)
	}

	g.logger.Info("Subscription cancellation scheduled",
		zap.String("subscription_id", subscriptionID))

	return g.toProviderSubscription(sub), nil
}

// ReactivateSubscription unschedules a pending cancellation.
func (g *Gateway) ReactivateSubscription(ctx context.Context, subscriptionID string) (*provider.Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, wrapProviderError(err)
	}

	return g.toProviderSubscription(sub), nil
}

// UpdateSubscription replaces the subscription's single line item with the
// price for the new plan and interval, prorating the difference.
func (g *Gateway) UpdateSubscription(ctx context.Context, subscriptionID, planID, interval string) (*provider.Subscription, error) {
	p, ok := g.catalog.Get(planID)
	if !ok {
		return nil, domainErrors.ErrPlanNotFound
	}
	priceID := p.PriceIDFor(interval)
	if priceID == "" {
		return nil, domainErrors.ErrPlanNotPurchasable
	}

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	current, err := subscription.Get(subscriptionID, getParams)
	if err != nil {
		return nil, wrapProviderError(err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, &domainErrors.ProviderError{
			Code:    "missing_line_item",
			Message: fmt.Sprintf("subscription %s has no line items", subscriptionID),
		}
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
		Metadata: map[string]string{
			metadataPlanID:   planID,
			metadataInterval: interval,
		},
	}
	params.Context = ctx
	params.AddExpand("items.data.price")

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, wrapProviderError(err)
	}

	g.logger.Info("Subscription plan updated",
		zap.String("subscription_id", subscriptionID),
		zap.String("plan_id", planID),
		zap.String("interval", interval))

	return g.toProviderSubscription(sub), nil
}

// VerifyAndParseEvent authenticates the payload and decodes it into the
// domain event union. Unrecognized kinds come back as EventUnknown.
func (g *Gateway) VerifyAndParseEvent(payload []byte, signatureHeader string) (*provider.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		g.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, &domainErrors.SignatureError{Reason: err.Error()}
	}

	out := &provider.Event{ID: event.ID}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		out.Kind = provider.EventCheckoutCompleted
		payload := &provider.CheckoutPayload{SessionID: session.ID}
		if session.Customer != nil {
			payload.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			payload.SubscriptionID = session.Subscription.ID
		}
		out.Checkout = payload

	case stripe.EventTypeCustomerSubscriptionCreated:
		sub, err := parseSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Kind = provider.EventSubscriptionCreated
		out.Subscription = g.toProviderSubscription(sub)

	case stripe.EventTypeCustomerSubscriptionUpdated:
		sub, err := parseSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Kind = provider.EventSubscriptionUpdated
		out.Subscription = g.toProviderSubscription(sub)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		sub, err := parseSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Kind = provider.EventSubscriptionDeleted
		out.Subscription = g.toProviderSubscription(sub)

	case stripe.EventTypeInvoicePaymentFailed:
		invoice, err := parseInvoice(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Kind = provider.EventInvoicePaymentFailed
		out.Invoice = invoice

	case stripe.EventTypeInvoicePaymentSucceeded:
		invoice, err := parseInvoice(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Kind = provider.EventInvoicePaymentSucceeded
		out.Invoice = invoice

	default:
		out.Kind = provider.EventUnknown
	}

	return out, nil
}

func parseSubscription(raw json.RawMessage) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription payload: %w", err)
	}
	return &sub, nil
}

func parseInvoice(raw json.RawMessage) (*provider.InvoicePayload, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return nil, fmt.Errorf("failed to parse invoice payload: %w", err)
	}

	payload := &provider.InvoicePayload{
		InvoiceID:  invoice.ID,
		AmountDue:  invoice.AmountDue,
		AmountPaid: invoice.AmountPaid,
	}
	if invoice.Customer != nil {
		payload.CustomerID = invoice.Customer.ID
	}
	if invoice.Subscription != nil {
		payload.SubscriptionID = invoice.Subscription.ID
	}
	if invoice.Lines != nil && len(invoice.Lines.Data) > 0 {
		line := invoice.Lines.Data[0]
		if line.Period != nil && line.Period.End > 0 {
			end := time.Unix(line.Period.End, 0)
			payload.PeriodEnd = &end
		}
	}

	return payload, nil
}

// toProviderSubscription converts a Stripe subscription to the domain shape,
// resolving plan and interval from metadata when present.
func (g *Gateway) toProviderSubscription(sub *stripe.Subscription) *provider.Subscription {
	out := &provider.Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}

	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		out.PlanID = sub.Metadata[metadataPlanID]
		out.Interval = sub.Metadata[metadataInterval]
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
			out.Amount = item.Price.UnitAmount
			if out.Interval == "" && item.Price.Recurring != nil {
				out.Interval = string(item.Price.Recurring.Interval)
			}
			if out.PlanID == "" {
				if p, interval, ok := g.catalog.ByPriceID(item.Price.ID); ok {
					out.PlanID = p.ID
					if out.Interval == "" {
						out.Interval = interval
					}
				}
			}
		}
	}

	out.CurrentPeriodStart = unixTime(sub.CurrentPeriodStart)
	out.CurrentPeriodEnd = unixTime(sub.CurrentPeriodEnd)
	out.TrialStart = unixTime(sub.TrialStart)
	out.TrialEnd = unixTime(sub.TrialEnd)
	out.CancelAt = unixTime(sub.CancelAt)
	out.CanceledAt = unixTime(sub.CanceledAt)

	return out
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}

// wrapProviderError converts a Stripe client error into the domain's
// ProviderError, preserving the provider's code and HTTP status.
func wrapProviderError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &domainErrors.ProviderError{
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
			HTTPStatus: stripeErr.HTTPStatusCode,
		}
	}
	return &domainErrors.ProviderError{Message: err.Error()}
}
