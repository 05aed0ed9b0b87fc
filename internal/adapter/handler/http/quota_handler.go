package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/launchpod/billing/internal/middleware/auth"
	"github.com/launchpod/billing/internal/usecase"
)

type QuotaHandler struct {
	quota  *usecase.QuotaService
	logger *zap.Logger
}

func NewQuotaHandler(quota *usecase.QuotaService, logger *zap.Logger) *QuotaHandler {
	return &QuotaHandler{
		quota:  quota,
		logger: logger,
	}
}

// GetUsage returns remaining quota across all three gates. A value of -1
// means the gate is unenforced.
func (h *QuotaHandler) GetUsage(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}
	ctx := c.Request().Context()

	deployments, err := h.quota.GetRemainingDeployments(ctx, accountID)
	if err != nil {
		h.logger.Error("Failed to read remaining deployments",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return writeError(c, err)
	}

	credits, err := h.quota.GetRemainingCredits(ctx, accountID)
	if err != nil {
		return writeError(c, err)
	}

	projects, err := h.quota.GetRemainingProjects(ctx, accountID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"remaining_deployments_this_month": deployments,
		"remaining_deployment_credits":     credits,
		"remaining_projects":               projects,
	})
}

// ConsumeDeployment validates and consumes one deployment credit on behalf
// of the deploy pipeline.
func (h *QuotaHandler) ConsumeDeployment(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}
	ctx := c.Request().Context()

	if err := h.quota.ValidateDeployment(ctx, accountID); err != nil {
		return writeError(c, err)
	}
	if err := h.quota.IncrementDeploymentCount(ctx, accountID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"consumed": true})
}

// ValidateProjectCreation pre-checks the project cap for the project
// service before it creates a project.
func (h *QuotaHandler) ValidateProjectCreation(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	if err := h.quota.ValidateProjectCreation(c.Request().Context(), accountID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"allowed": true})
}
