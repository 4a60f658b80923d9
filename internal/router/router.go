// Package router assembles the gin engine and its route table.
package router

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/handler"
	"github.com/noah-isme/redtape-api/internal/middleware"
	"github.com/noah-isme/redtape-api/internal/service"
	"github.com/noah-isme/redtape-api/pkg/config"
	"github.com/noah-isme/redtape-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/redtape-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/redtape-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Reports      *handler.ReportHandler
	Transparency *handler.TransparencyHandler
	Auth         *handler.AuthHandler
	AdminReports *handler.AdminReportHandler
	Audit        *handler.AuditHandler
	Ops          *handler.MetricsHandler
}

// Dependencies are the cross-cutting collaborators used by middleware.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *service.MetricsService
	Tokens    middleware.TokenValidator
	IPLimiter middleware.IPLimiter
	Sentry    bool
}

// New builds the engine with global middleware, ops endpoints and the versioned API.
func New(deps Dependencies, h Handlers) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if deps.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(deps.Config.Security.ContentSecurityPolicy))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", h.Ops.Health)
	r.GET("/ready", h.Ops.Ready)
	r.GET("/metrics", h.Ops.Prometheus)
	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)

	api.POST("/reports", middleware.RateLimitByIP(deps.IPLimiter), h.Reports.Submit)
	api.GET("/reports/verify", h.Reports.Verify)
	api.GET("/transparency", h.Transparency.Summary)
	api.GET("/options", h.Transparency.Options)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/reset-password", h.Auth.ResetPassword)
	auth.POST("/logout", middleware.JWT(deps.Tokens), h.Auth.Logout)

	admin := api.Group("/admin", middleware.JWT(deps.Tokens), middleware.RequireAdmin())
	{
		admin.GET("/reports", h.AdminReports.List)
		// Also serves /reports/export.:format; gin cannot register both patterns.
		admin.GET("/reports/:id", h.AdminReports.Show)
		admin.POST("/reports/:id/approve", h.AdminReports.Approve)
		admin.DELETE("/reports/:id", h.AdminReports.Delete)
		admin.GET("/exports/:token", h.AdminReports.Download)
		admin.GET("/audit-logs", h.Audit.List)
	}

	return r
}
