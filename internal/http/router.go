// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, bearer authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/config"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/http/handlers"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/http/middleware"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/mail"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/reward"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/services"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/shop"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, and then mounts the
// public API under /api with the privileged endpoints behind the bearer guard.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per chat/IP)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, mailer mail.Mailer, rewards *reward.Pool, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. Verification codes and emails
	// travel in request bodies, which are never logged; the shop token and
	// bearer secret travel in headers, which are.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-Shopify-Access-Token",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB: the largest legitimate payload is a
	// rating with a comment)
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per chat/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByChatOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrKindNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrKindNotFound, "method not allowed")
	})

	// Liveness/health (plain text so a curl or uptime probe reads naturally)
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "LaFoncedalle API is running") })

	// Dependency injection: services ← db/mailer/rewards/shop
	verSvc := &services.VerificationService{
		DB:      db,
		Mailer:  mailer,
		Rewards: rewards,
		CodeTTL: cfg.CodeTTL,
	}
	ratingSvc := &services.RatingService{
		DB:         db,
		MaxComment: cfg.MaxComment,
	}
	shopClient := shop.New(cfg.Shop)
	h := handlers.New(verSvc, ratingSvc, shopClient, mailer)

	// Public API
	api := r.Group("/api")
	{
		// Identity linking
		api.POST("/start-verification", h.StartVerification)
		api.POST("/confirm-verification", h.ConfirmVerification)
		api.POST("/unlink", h.Unlink)

		// Ratings
		api.POST("/submit-rating", h.SubmitRating)
		api.POST("/add-comment", h.AddComment)
		api.GET("/get_user_stats/:chat_id", h.GetUserStats)
		api.POST("/get_comparison_data", h.GetComparisonData)

		// Shop
		api.GET("/get_purchased_products/:chat_id", h.GetPurchasedProducts)
		api.GET("/get_last_order/:chat_id", h.GetLastOrder)
	}

	// Privileged API (shared bearer secret)
	priv := r.Group("/api", middleware.RequireBearer(cfg.APISecret))
	{
		priv.POST("/force-link", h.ForceLink)
		priv.GET("/get_shop_stats", h.GetShopStats)
		priv.POST("/test-email", h.TestEmail)
		priv.POST("/reset-user-ratings", h.ResetUserRatings)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
