package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/clockbill/clockbill/internal/auth"
	"github.com/clockbill/clockbill/internal/cache"
	"github.com/clockbill/clockbill/internal/config"
	"github.com/clockbill/clockbill/internal/http/handlers"
	"github.com/clockbill/clockbill/internal/http/middlewares"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/clockbill/clockbill/internal/ratelimit"
	"github.com/clockbill/clockbill/internal/repo/postgres"
	"github.com/clockbill/clockbill/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Deps carries the router's collaborators; main wires them once at startup.
type Deps struct {
	Cfg    config.Config
	Log    *slog.Logger
	Pool   *pgxpool.Pool
	Prom   *observability.Prom
	JWT    *auth.Manager
	IBANs  *security.IBANCipher
	Redis  *ratelimit.RedisLimiter // nil when redis is not configured
	PromRg *prometheus.Registry
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middlewares.RequestID())
	router.Use(middlewares.RequestLogger(d.Log))
	router.Use(middlewares.SecurityHeaders())
	router.Use(middlewares.CORSMiddleware(d.Cfg.AllowedOrigins))
	router.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	router.Use(d.Prom.GinHandleMiddleware())

	if d.Cfg.TracingEnabled {
		router.Use(otelgin.Middleware("clockbill"))
	}

	users := postgres.NewUsersRepo(d.Pool, d.Prom)
	customers := postgres.NewCustomersRepo(d.Pool, d.Prom)
	projects := postgres.NewProjectsRepo(d.Pool, d.Prom)
	tasks := postgres.NewTasksRepo(d.Pool, d.Prom)
	sessions := postgres.NewRefreshTokensRepo(d.Pool)

	listCache := cache.New(10 * time.Second)

	authHandler := handlers.NewAuthHandler(users, sessions, d.JWT, d.Log, d.Cfg.Env == "prod")
	profileHandler := handlers.NewProfileHandler(users, sessions, d.IBANs, d.Log)
	customersHandler := handlers.NewCustomersHandler(customers, listCache, d.Log)
	projectsHandler := handlers.NewProjectsHandler(projects, listCache, d.Prom, d.Log)
	tasksHandler := handlers.NewTasksHandler(tasks, d.Log)
	invoicesHandler := handlers.NewInvoicesHandler(projects, tasks, customers, users, d.IBANs, d.Prom, d.Log)
	adminHandler := handlers.NewAdminHandler(users, d.Log)

	healthHandler := handlers.NewHealthHandler(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return d.Pool.Ping(ctx)
	})

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/readyz", healthHandler.Readyz)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.PromRg, promhttp.HandlerOpts{})))

	authMW := middlewares.NewAuthMiddleware(d.JWT, users)

	// login and register share one throttle key space; redis backs it when
	// configured so the limit holds across replicas
	var throttle gin.HandlerFunc
	if d.Redis != nil {
		throttle = middlewares.Throttle(d.Redis, middlewares.KeyByIP)
	} else {
		throttle = middlewares.NewRateLimiter(20, time.Minute).Middleware(middlewares.KeyByIP)
	}

	authGroup := router.Group("/auth", throttle)
	{
		authGroup.POST("/register", middlewares.RequireJSON(), authHandler.Register)
		authGroup.POST("/login", middlewares.RequireJSON(), authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	account := router.Group("/auth", authMW.RequireAuth())
	{
		account.GET("/profile", profileHandler.Get)
		account.PUT("/profile", middlewares.RequireJSON(), profileHandler.Update)
		account.PUT("/change-password", middlewares.RequireJSON(), profileHandler.ChangePassword)
	}

	api := router.Group("/", authMW.RequireAuth())
	{
		api.GET("/customers", customersHandler.List)
		api.POST("/customers", middlewares.RequireJSON(), customersHandler.Create)
		api.GET("/customers/:customerId", customersHandler.Get)
		api.PUT("/customers/:customerId", middlewares.RequireJSON(), customersHandler.Update)
		api.DELETE("/customers/:customerId", customersHandler.Delete)

		api.GET("/customers/:customerId/projects", projectsHandler.List)
		api.POST("/customers/:customerId/projects", middlewares.RequireJSON(), projectsHandler.Create)
		api.GET("/customers/:customerId/projects/:projectId", projectsHandler.Get)
		api.PUT("/customers/:customerId/projects/:projectId", middlewares.RequireJSON(), projectsHandler.Update)
		api.DELETE("/customers/:customerId/projects/:projectId", projectsHandler.Delete)

		api.GET("/customers/:customerId/projects/:projectId/tasks", tasksHandler.List)
		api.POST("/customers/:customerId/projects/:projectId/tasks", middlewares.RequireJSON(), tasksHandler.Create)
		api.PATCH("/customers/:customerId/projects/:projectId/tasks/order", middlewares.RequireJSON(), tasksHandler.Reorder)
		api.PUT("/customers/:customerId/projects/:projectId/tasks/:taskId", middlewares.RequireJSON(), tasksHandler.Update)
		api.DELETE("/customers/:customerId/projects/:projectId/tasks/:taskId", tasksHandler.Delete)

		// previews materialize invoice state, keep them per-user throttled
		previewThrottle := middlewares.NewRateLimiter(60, time.Minute).Middleware(middlewares.KeyByUserOrIP)
		api.POST("/invoices/customers/:customerId/projects/:projectId/preview", previewThrottle, invoicesHandler.Preview)
	}

	admin := router.Group("/admin", authMW.RequireAuth(), authMW.RequireRole("admin"))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.PUT("/users/:userId", middlewares.RequireJSON(), adminHandler.UpdateUser)
	}

	return router
}
