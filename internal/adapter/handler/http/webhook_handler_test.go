package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	handlers "github.com/launchpod/billing/internal/adapter/handler/http"
	domainErrors "github.com/launchpod/billing/internal/domain/errors"
	"github.com/launchpod/billing/internal/domain/provider"
)

// stubGateway implements provider.PaymentGateway for the webhook path; only
// VerifyAndParseEvent is exercised here.
type stubGateway struct {
	event *provider.Event
	err   error
}

func (g *stubGateway) CreateOrGetCustomer(context.Context, string, string, string) (*provider.CustomerRef, error) {
	panic("not used")
}
func (g *stubGateway) CreateCheckoutSession(context.Context, *provider.CheckoutSessionRequest) (*provider.SessionRef, error) {
	panic("not used")
}
func (g *stubGateway) CreatePortalSession(context.Context, string, string) (*provider.SessionRef, error) {
	panic("not used")
}
func (g *stubGateway) GetSubscription(context.Context, string) (*provider.Subscription, error) {
	panic("not used")
}
func (g *stubGateway) CancelSubscription(context.Context, string, bool) (*provider.Subscription, error) {
	panic("not used")
}
func (g *stubGateway) ReactivateSubscription(context.Context, string) (*provider.Subscription, error) {
	panic("not used")
}
func (g *stubGateway) UpdateSubscription(context.Context, string, string, string) (*provider.Subscription, error) {
	panic("not used")
}
func (g *stubGateway) VerifyAndParseEvent([]byte, string) (*provider.Event, error) {
	return g.event, g.err
}

// MockReconciler is a mock implementation of the event reconciler
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) HandleCheckoutCompleted(ctx context.Context, event *provider.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockReconciler) HandleSubscriptionUpdated(ctx context.Context, event *provider.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockReconciler) HandleSubscriptionDeleted(ctx context.Context, event *provider.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockReconciler) HandleInvoicePaymentFailed(ctx context.Context, event *provider.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockReconciler) HandleInvoicePaymentSucceeded(ctx context.Context, event *provider.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func postWebhook(t *testing.T, handler *handlers.WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.HandleWebhook(c))
	return rec
}

func TestWebhookHandler_HandleWebhook(t *testing.T) {
	logger := zap.NewNop()

	t.Run("missing signature header is rejected", func(t *testing.T) {
		handler := handlers.NewWebhookHandler(&stubGateway{}, new(MockReconciler), logger)
		rec := postWebhook(t, handler, `{"id":"evt_1"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body is rejected", func(t *testing.T) {
		handler := handlers.NewWebhookHandler(&stubGateway{}, new(MockReconciler), logger)
		rec := postWebhook(t, handler, "", "t=1,v1=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("signature failure is rejected", func(t *testing.T) {
		gateway := &stubGateway{err: &domainErrors.SignatureError{Reason: "no matching v1 signature"}}
		handler := handlers.NewWebhookHandler(gateway, new(MockReconciler), logger)
		rec := postWebhook(t, handler, `{"id":"evt_1"}`, "t=1,v1=bad")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed payload is rejected", func(t *testing.T) {
		gateway := &stubGateway{err: errors.New("unexpected end of JSON input")}
		handler := handlers.NewWebhookHandler(gateway, new(MockReconciler), logger)
		rec := postWebhook(t, handler, `{"id":`, "t=1,v1=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("verified event is dispatched and acked", func(t *testing.T) {
		event := &provider.Event{
			ID:      "evt_1",
			Kind:    provider.EventInvoicePaymentFailed,
			Invoice: &provider.InvoicePayload{InvoiceID: "in_1", CustomerID: "cus_1"},
		}
		reconciler := new(MockReconciler)
		reconciler.On("HandleInvoicePaymentFailed", mock.Anything, event).Return(nil)

		handler := handlers.NewWebhookHandler(&stubGateway{event: event}, reconciler, logger)
		rec := postWebhook(t, handler, `{"id":"evt_1"}`, "t=1,v1=abc")

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp["received"])
		reconciler.AssertExpectations(t)
	})

	t.Run("handler failure is still acked with success", func(t *testing.T) {
		event := &provider.Event{
			ID:       "evt_2",
			Kind:     provider.EventCheckoutCompleted,
			Checkout: &provider.CheckoutPayload{CustomerID: "cus_1", SubscriptionID: "sub_1"},
		}
		reconciler := new(MockReconciler)
		reconciler.On("HandleCheckoutCompleted", mock.Anything, event).Return(errors.New("database unavailable"))

		handler := handlers.NewWebhookHandler(&stubGateway{event: event}, reconciler, logger)
		rec := postWebhook(t, handler, `{"id":"evt_2"}`, "t=1,v1=abc")

		assert.Equal(t, http.StatusOK, rec.Code)
		reconciler.AssertExpectations(t)
	})

	t.Run("handler panic is contained and acked", func(t *testing.T) {
		event := &provider.Event{
			ID:           "evt_3",
			Kind:         provider.EventSubscriptionDeleted,
			Subscription: &provider.Subscription{ID: "sub_1"},
		}
		reconciler := new(MockReconciler)
		reconciler.On("HandleSubscriptionDeleted", mock.Anything, event).
			Run(func(mock.Arguments) { panic("nil dereference") }).
			Return(nil)

		handler := handlers.NewWebhookHandler(&stubGateway{event: event}, reconciler, logger)
		rec := postWebhook(t, handler, `{"id":"evt_3"}`, "t=1,v1=abc")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("created and updated route to the same reconciliation", func(t *testing.T) {
		event := &provider.Event{
			ID:           "evt_4",
			Kind:         provider.EventSubscriptionCreated,
			Subscription: &provider.Subscription{ID: "sub_1", Status: "active"},
		}
		reconciler := new(MockReconciler)
		reconciler.On("HandleSubscriptionUpdated", mock.Anything, event).Return(nil)

		handler := handlers.NewWebhookHandler(&stubGateway{event: event}, reconciler, logger)
		rec := postWebhook(t, handler, `{"id":"evt_4"}`, "t=1,v1=abc")

		assert.Equal(t, http.StatusOK, rec.Code)
		reconciler.AssertExpectations(t)
	})

	t.Run("unknown event kind is acked without dispatch", func(t *testing.T) {
		event := &provider.Event{ID: "evt_5", Kind: provider.EventUnknown}
		reconciler := new(MockReconciler)

		handler := handlers.NewWebhookHandler(&stubGateway{event: event}, reconciler, logger)
		rec := postWebhook(t, handler, `{"id":"evt_5"}`, "t=1,v1=abc")

		assert.Equal(t, http.StatusOK, rec.Code)
		reconciler.AssertExpectations(t)
	})
}
