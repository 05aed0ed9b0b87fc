package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/launchpod/billing/internal/domain/errors"
	"github.com/launchpod/billing/internal/domain/provider"
)

// Reconciler merges provider-reported facts into local subscription records.
// Every handler must be idempotent: the provider delivers at least once.
type Reconciler interface {
	HandleCheckoutCompleted(ctx context.Context, event *provider.Event) error
	HandleSubscriptionUpdated(ctx context.Context, event *provider.Event) error
	HandleSubscriptionDeleted(ctx context.Context, event *provider.Event) error
	HandleInvoicePaymentFailed(ctx context.Context, event *provider.Event) error
	HandleInvoicePaymentSucceeded(ctx context.Context, event *provider.Event) error
}

// WebhookHandler authenticates and routes inbound provider events. Once the
// signature verifies, the request is always acknowledged with success; a
// transient local failure must not trigger provider-side retries.
type WebhookHandler struct {
	gateway    provider.PaymentGateway
	reconciler Reconciler
	logger     *zap.Logger
}

func NewWebhookHandler(gateway provider.PaymentGateway, reconciler Reconciler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		gateway:    gateway,
		reconciler: reconciler,
		logger:     logger,
	}
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	sig := c.Request().Header.Get("Stripe-Signature")
	if sig == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing signature header"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading webhook body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}
	if len(body) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Empty request body"})
	}

	event, err := h.gateway.VerifyAndParseEvent(body, sig)
	if err != nil {
		var sigErr *domainErrors.SignatureError
		if errors.As(err, &sigErr) {
			h.logger.Error("Webhook signature verification failed", zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Signature verification failed"})
		}
		h.logger.Error("Webhook payload could not be decoded", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Malformed event payload"})
	}

	h.logger.Info("Webhook event received",
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)))

	// Handler failures are contained here. The event was authenticated, so
	// the provider gets a success ack either way and the failure is replayed
	// safely on the provider's next delivery of current state.
	if err := h.dispatch(c.Request().Context(), event); err != nil {
		h.logger.Error("Webhook handler failed",
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func (h *WebhookHandler) dispatch(ctx context.Context, event *provider.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	switch event.Kind {
	case provider.EventCheckoutCompleted:
		return h.reconciler.HandleCheckoutCompleted(ctx, event)
	case provider.EventSubscriptionCreated, provider.EventSubscriptionUpdated:
		return h.reconciler.HandleSubscriptionUpdated(ctx, event)
	case provider.EventSubscriptionDeleted:
		return h.reconciler.HandleSubscriptionDeleted(ctx, event)
	case provider.EventInvoicePaymentFailed:
		return h.reconciler.HandleInvoicePaymentFailed(ctx, event)
	case provider.EventInvoicePaymentSucceeded:
		return h.reconciler.HandleInvoicePaymentSucceeded(ctx, event)
	default:
		h.logger.Info("Ignoring unhandled event kind",
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)))
		return nil
	}
}
