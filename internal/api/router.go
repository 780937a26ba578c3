package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/patient-care-portal/internal/alert"
	"github.com/mesikahq/patient-care-portal/internal/auth"
	"github.com/mesikahq/patient-care-portal/internal/config"
	"github.com/mesikahq/patient-care-portal/internal/middleware"
)

// Staff roles allowed on each group of routes.
var (
	anyStaff      = []string{auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist}
	clinicalStaff = []string{auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse}
	physicians    = []string{auth.RoleAdmin, auth.RoleDoctor}
)

type Router struct {
	handler        *Handler
	authMiddleware *auth.Middleware
	alertHandler   *alert.Handler
	cfg            *config.Config
}

func NewRouter(handler *Handler, authService auth.Service, cfg *config.Config) *Router {
	return &Router{
		handler:        handler,
		authMiddleware: auth.NewMiddleware(authService, cfg.Auth.Enabled),
		alertHandler:   alert.NewHandler(handler.hub, cfg.Alerts.AllowedOrigins, cfg.Alerts.ClientBuffer, handler.logger),
		cfg:            cfg,
	}
}

func (r *Router) SetupRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggerMiddleware(logger),
		middleware.CORSMiddleware(r.cfg.Server.CORSOrigins),
		middleware.AuditContextMiddleware(),
		middleware.TimeoutMiddleware(r.cfg.Server.Timeout),
	)
	if r.cfg.RateLimit.RPS > 0 {
		router.Use(middleware.RateLimitMiddleware(rate.Limit(r.cfg.RateLimit.RPS), r.cfg.RateLimit.Burst))
	}

	router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "not_found", "route not found")
	})

	router.GET("/health", r.handler.HealthCheck)

	// Alert viewers are browsers, which cannot attach an Authorization header
	// to a websocket handshake; the origin allowlist guards this route.
	r.alertHandler.RegisterRoutes(router)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", r.handler.Login)
			authGroup.GET("/profile", r.authMiddleware.RequireRoles(), r.handler.GetProfile)
		}

		patients := api.Group("/patients")
		{
			patients.POST("/register", r.authMiddleware.RequireRoles(anyStaff...), r.handler.RegisterPatient)
			patients.GET("/:regNumber", r.authMiddleware.RequireRoles(), r.handler.GetPatient)
			patients.PUT("/:regNumber", r.authMiddleware.RequireRoles(anyStaff...), r.handler.UpdatePatient)
			patients.GET("/:regNumber/history", r.authMiddleware.RequireRoles(auth.RoleAdmin), r.handler.GetPatientHistory)
			patients.GET("/:regNumber/complete", r.authMiddleware.RequireRoles(), r.handler.GetComplete)

			patients.GET("/:regNumber/medical", r.authMiddleware.RequireRoles(), r.handler.GetMedical)
			patients.POST("/:regNumber/medical", r.authMiddleware.RequireRoles(clinicalStaff...), r.handler.SaveMedical)
			patients.PUT("/:regNumber/medical/:section", r.authMiddleware.RequireRoles(clinicalStaff...), r.handler.UpdateMedicalSection)
			patients.DELETE("/:regNumber/medical", r.authMiddleware.RequireRoles(physicians...), r.handler.DeleteMedical)
		}

		api.GET("/medical/summary", r.authMiddleware.RequireRoles(), r.handler.GetMedicalSummary)

		alerts := api.Group("/alerts")
		alerts.Use(r.authMiddleware.RequireRoles())
		{
			alerts.POST("/red-light", r.handler.TriggerRedLight)
			alerts.POST("/help", r.handler.RequestHelp)
			alerts.POST("/frame", r.handler.AnalyzeFrame)
		}
	}

	return router
}
