package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	domainErrors "github.com/launchpod/billing/internal/domain/errors"
)

// writeError maps domain errors onto HTTP responses. Client/request errors
// are 400s, quota violations carry their limit details, provider failures
// surface as bad gateway.
func writeError(c echo.Context, err error) error {
	var quotaErr *domainErrors.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":   quotaErr.Error(),
			"code":    "QUOTA_EXCEEDED",
			"limit":   quotaErr.Limit,
			"current": quotaErr.Current,
			"allowed": quotaErr.Allowed,
		})
	}

	var downgradeErr *domainErrors.DowngradeBlockedError
	if errors.As(err, &downgradeErr) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       downgradeErr.Error(),
			"code":        "DOWNGRADE_BLOCKED",
			"limit":       downgradeErr.Limit,
			"current":     downgradeErr.Current,
			"new_allowed": downgradeErr.NewAllowed,
		})
	}

	var providerErr *domainErrors.ProviderError
	if errors.As(err, &providerErr) {
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error": "Payment provider request failed",
			"code":  providerErr.Code,
		})
	}

	switch {
	case errors.Is(err, domainErrors.ErrPlanNotFound),
		errors.Is(err, domainErrors.ErrPlanNotPurchasable),
		errors.Is(err, domainErrors.ErrAlreadyOnPlan),
		errors.Is(err, domainErrors.ErrNoCustomer),
		errors.Is(err, domainErrors.ErrNoActiveSubscription):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
}
