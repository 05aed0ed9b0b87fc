package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/launchpod/billing/internal/middleware/auth"
	"github.com/launchpod/billing/internal/usecase"
)

type SubscriptionHandler struct {
	subscriptions *usecase.SubscriptionService
	clientURL     string
	logger        *zap.Logger
}

func NewSubscriptionHandler(subscriptions *usecase.SubscriptionService, clientURL string, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		clientURL:     clientURL,
		logger:        logger,
	}
}

// GetSubscription returns the account's record, creating the free-plan
// default on first access.
func (h *SubscriptionHandler) GetSubscription(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	sub, err := h.subscriptions.GetOrCreateSubscription(c.Request().Context(), accountID)
	if err != nil {
		h.logger.Error("Failed to get subscription",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, sub)
}

type CreateCheckoutRequest struct {
	PlanID   string `json:"plan_id" validate:"required"`
	Interval string `json:"interval" validate:"required,oneof=month year"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name"`
}

// CreateCheckoutSession starts a hosted checkout for a paid plan.
func (h *SubscriptionHandler) CreateCheckoutSession(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req CreateCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	session, err := h.subscriptions.CreateCheckoutSession(
		c.Request().Context(),
		accountID,
		req.Email,
		req.Name,
		req.PlanID,
		req.Interval,
		h.clientURL+"/billing/success",
		h.clientURL+"/billing/cancel",
	)
	if err != nil {
		h.logger.Error("Failed to create checkout session",
			zap.String("account_id", accountID.String()),
			zap.String("plan_id", req.PlanID),
			zap.Error(err))
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":  session.ID,
		"url": session.URL,
	})
}

// CreatePortalSession starts a hosted billing-portal session.
func (h *SubscriptionHandler) CreatePortalSession(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	session, err := h.subscriptions.CreatePortalSession(c.Request().Context(), accountID, h.clientURL+"/billing")
	if err != nil {
		h.logger.Error("Failed to create portal session",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"url": session.URL})
}

type UpdateSubscriptionRequest struct {
	PlanID   string `json:"plan_id" validate:"required"`
	Interval string `json:"interval" validate:"required,oneof=month year"`
}

// UpdateSubscription changes the account's plan.
func (h *SubscriptionHandler) UpdateSubscription(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req UpdateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	sub, err := h.subscriptions.UpdateSubscription(c.Request().Context(), accountID, req.PlanID, req.Interval)
	if err != nil {
		h.logger.Error("Failed to update subscription",
			zap.String("account_id", accountID.String()),
			zap.String("plan_id", req.PlanID),
			zap.Error(err))
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, sub)
}

// CancelSubscription schedules cancellation at period end.
func (h *SubscriptionHandler) CancelSubscription(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	sub, err := h.subscriptions.CancelSubscription(c.Request().Context(), accountID, true)
	if err != nil {
		h.logger.Error("Failed to cancel subscription",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, sub)
}

// ReactivateSubscription unschedules a pending cancellation.
func (h *SubscriptionHandler) ReactivateSubscription(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	sub, err := h.subscriptions.CancelSubscription(c.Request().Context(), accountID, false)
	if err != nil {
		h.logger.Error("Failed to reactivate subscription",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, sub)
}
