package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/launchpod/billing/internal/domain/plan"
)

type PlansHandler struct {
	catalog *plan.Catalog
	logger  *zap.Logger
}

func NewPlansHandler(catalog *plan.Catalog, logger *zap.Logger) *PlansHandler {
	return &PlansHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// GetPlans returns the full plan catalog for pricing pages.
func (h *PlansHandler) GetPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"plans": h.catalog.All(),
	})
}
