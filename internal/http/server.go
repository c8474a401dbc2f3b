package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/config"
	"github.com/jmehdipour/utility-billing/internal/http/middleware"
	"github.com/jmehdipour/utility-billing/internal/metrics"
	"github.com/jmehdipour/utility-billing/internal/service/charges"
	"github.com/jmehdipour/utility-billing/internal/service/customer"
	"github.com/jmehdipour/utility-billing/internal/service/directory"
	"github.com/jmehdipour/utility-billing/internal/service/ledger"
	"github.com/jmehdipour/utility-billing/internal/service/lifecycle"
)

// Pinger reports whether the primary store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the core components exposed over HTTP.
type Services struct {
	Customers *customer.Service
	Charges   *charges.Service
	Directory *directory.Service
	Ledger    *ledger.Service
	Lifecycle *lifecycle.Service
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

// NewServer wires routes and middleware. rds may be nil, which disables rate limiting.
func NewServer(cfg config.Config, store Pinger, svcs Services, rds *redis.Client, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: uuid.NewString}),
		echoMid.Logger(),
		echoMid.CORSWithConfig(echoMid.CORSConfig{
			AllowOrigins: cfg.HTTP.AllowOrigins,
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID, middleware.HeaderRole},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		}),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", healthHandler(store))
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "UBMS Backend API is Running", "status": "active"})
	})

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "ubms:rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})
	adminMW := middleware.RequireRole(middleware.RoleAdmin)

	// routes
	h := &handlers{svcs: svcs, log: log}
	api := e.Group("/api", rlMW)

	api.POST("/login", h.login)
	api.POST("/signup", h.signup)

	api.GET("/customers", h.listCustomers)
	api.GET("/customers/:id", h.getCustomer)
	api.GET("/customer-details/:id", h.customerDetails)
	api.GET("/meters/:id", h.listMeters)
	api.GET("/accounts/:id", h.listAccounts)
	api.GET("/accounts/:id/bills", h.accountBills)

	api.GET("/bills", h.listBills)
	api.GET("/bills/:id", h.customerBills)

	api.GET("/charges", h.getCharges)
	api.PUT("/charges", h.updateCharges, adminMW)
	api.GET("/charges/quote", h.quote)

	api.GET("/requests", h.listRequests)
	api.POST("/requests", h.submitRequest)
	api.PUT("/requests", h.decideRequest, adminMW)
	api.PUT("/requests/:id/decision", h.decideRequest, adminMW)

	api.GET("/admin/stats", h.stats, adminMW)

	return &Server{e: e, log: log}
}

// Handler exposes the router, mostly for httptest.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func healthHandler(store Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down", "error": err.Error()})
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
