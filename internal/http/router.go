// Package httpapi wires the admin HTTP transport (Gin) to the store and
// middleware. The surface is operator-facing only: liveness, Prometheus
// metrics, and CSV exports of the recorded questions and ratings.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. Rate limiter (per IP)
//  7. CORS
//  8. gzip (CSV exports compress well)
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/config"
	"github.com/question-relay/go-question-relay/internal/http/handlers"
	"github.com/question-relay/go-question-relay/internal/http/middleware"
)

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.SendRPS, cfg.SendBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(db)

	r.GET("/health", h.Health)

	admin := r.Group("/admin")
	{
		admin.GET("/export/questions.csv", h.ExportQuestions)
		admin.GET("/export/feedback.csv", h.ExportFeedback)
	}
}
