package http

import (
	"context"
	"time"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/cache"
	"github.com/clinicbook/clinicbook/internal/config"
	"github.com/clinicbook/clinicbook/internal/domain/user"
	"github.com/clinicbook/clinicbook/internal/http/handlers"
	"github.com/clinicbook/clinicbook/internal/http/middlewares"
	"github.com/clinicbook/clinicbook/internal/observability"
	"github.com/clinicbook/clinicbook/internal/queue/redisclient"
	"github.com/clinicbook/clinicbook/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps carries everything the router needs. main wires it once.
type Deps struct {
	Cfg   config.Config
	Pool  *pgxpool.Pool
	JWT   *auth.Manager
	Prom  *observability.Prom
	Reg   *prometheus.Registry
	Redis *redisclient.Client // nil when REDIS_ADDR is unset
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(1 << 20)) // 1 MiB

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	r.Use(otelgin.Middleware(d.Cfg.ServiceName))

	// rate limiting: shared window via redis when available, per-process otherwise

	var loginLimit, apiLimit gin.HandlerFunc

	if d.Redis != nil {
		loginLimit = middlewares.NewRedisRateLimiter(d.Redis.Raw(), 10, time.Minute).Middleware(middlewares.KeyByIP)
		apiLimit = middlewares.NewRedisRateLimiter(d.Redis.Raw(), 120, time.Minute).Middleware(middlewares.KeyByUserOrIP)
	} else {
		loginLimit = middlewares.NewRateLimiter(10, time.Minute).Middleware(middlewares.KeyByIP)
		apiLimit = middlewares.NewRateLimiter(120, time.Minute).Middleware(middlewares.KeyByUserOrIP)
	}

	// health

	pings := map[string]handlers.PingFunc{
		"db": func(ctx context.Context) error {
			if d.Pool == nil {
				return nil
			}
			return d.Pool.Ping(ctx)
		},
	}

	if d.Redis != nil {
		pings["redis"] = d.Redis.Ping
	}

	health := handlers.NewHealthHandler(pings)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Reg, promhttp.HandlerOpts{})))
	}

	// wire up repositories

	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	apptsRepo := postgres.NewAppointmentsRepo(d.Pool, d.Prom)
	sessionsRepo := postgres.NewSessionsRepo(d.Pool)
	jobsRepo := postgres.NewJobsRepo(d.Pool, d.Prom)

	listCache := cache.New(5 * time.Second)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, d.JWT, sessionsRepo, d.Cfg)
	apptsHandler := handlers.NewAppointmentsHandler(apptsRepo, jobsRepo, listCache)

	authMW := middlewares.NewAuthMiddleware(d.JWT)

	// auth routes

	authGroup := r.Group("/auth")
	authGroup.POST("/register", loginLimit, authHandler.Register)
	authGroup.POST("/login", loginLimit, authHandler.Login)
	authGroup.POST("/refresh", loginLimit, authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	// appointment routes

	appts := r.Group("/appointments")
	appts.Use(authMW.RequireAuth(), apiLimit)

	// booking and the personal listing are USER-only; ADMIN gets no implicit
	// USER privileges. Cancel stays role-free because the handler does its own
	// owner-or-admin check.

	userOnly := authMW.RequireRole(user.RoleUser)

	appts.POST("", userOnly, apptsHandler.Create)
	appts.GET("", userOnly, apptsHandler.ListMine)
	appts.GET("/:id", apptsHandler.Get)
	appts.PUT("/:id/cancel", apptsHandler.Cancel)

	admin := appts.Group("")
	admin.Use(authMW.RequireRole(user.RoleAdmin))

	admin.GET("/admin", apptsHandler.ListAll)
	admin.DELETE("/:id", apptsHandler.Delete)

	return r
}
