package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"

	handlers "github.com/launchpod/billing/internal/adapter/handler/http"
	"github.com/launchpod/billing/internal/config"
	"github.com/launchpod/billing/internal/domain/plan"
	"github.com/launchpod/billing/internal/infrastructure/database"
	"github.com/launchpod/billing/internal/infrastructure/provider/stripe"
	"github.com/launchpod/billing/internal/middleware/auth"
	"github.com/launchpod/billing/internal/usecase"
	pkglogger "github.com/launchpod/billing/pkg/logger"
)

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	repos  *database.Repositories
}

// requestValidator adapts go-playground/validator to echo's Validator
// interface so handlers can call c.Validate on bound requests.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(cfg *config.Config, logger *zap.Logger, repos *database.Repositories) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.OFF)
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(pkglogger.NewEchoRequestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config: cfg,
		logger: logger,
		echo:   e,
		repos:  repos,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Plan catalog, payment gateway and services
	prices := make(map[string]plan.PriceRef, len(s.config.Service.PlanPrices))
	for id, p := range s.config.Service.PlanPrices {
		prices[id] = plan.PriceRef{
			MonthlyPriceID: p.MonthlyPriceID,
			YearlyPriceID:  p.YearlyPriceID,
		}
	}
	catalog := plan.NewCatalog(prices)

	gateway := stripe.NewGateway(
		s.config.Service.StripeSecretKey,
		s.config.Service.StripeWebhookSecret,
		catalog,
		s.logger,
	)

	locks := usecase.NewAccountLocks()
	subscriptionService := usecase.NewSubscriptionService(s.repos.Subscription, gateway, catalog, locks, s.logger)
	quotaService := usecase.NewQuotaService(
		subscriptionService,
		s.repos.Subscription,
		s.repos.Projects,
		s.repos.Allocations,
		catalog,
		locks,
		s.logger,
	)
	// Downgrades consult the quota engine before they are applied
	subscriptionService.RegisterDowngradeValidator(quotaService)

	// Initialize handlers
	plansHandler := handlers.NewPlansHandler(catalog, s.logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService, s.config.Service.ClientURL, s.logger)
	quotaHandler := handlers.NewQuotaHandler(quotaService, s.logger)
	webhookHandler := handlers.NewWebhookHandler(gateway, subscriptionService, s.logger)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhook",
			"/api/v1/plans",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	v1.GET("/plans", plansHandler.GetPlans)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	subscription := protected.Group("/subscription")
	subscription.GET("", subscriptionHandler.GetSubscription)
	subscription.POST("/checkout", subscriptionHandler.CreateCheckoutSession)
	subscription.POST("/portal", subscriptionHandler.CreatePortalSession)
	subscription.PUT("", subscriptionHandler.UpdateSubscription)
	subscription.DELETE("", subscriptionHandler.CancelSubscription)
	subscription.POST("/reactivate", subscriptionHandler.ReactivateSubscription)

	protected.GET("/usage", quotaHandler.GetUsage)
	protected.POST("/deployments/consume", quotaHandler.ConsumeDeployment)
	protected.GET("/projects/validate", quotaHandler.ValidateProjectCreation)

	// Webhook route (outside API versioning)
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)
}
