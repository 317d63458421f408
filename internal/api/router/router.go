package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wonny/quantengine/internal/api/handlers"
	"github.com/wonny/quantengine/internal/api/middleware"
)

// Config holds router configuration
type Config struct {
	Health    *handlers.HealthHandler
	Analysis  *handlers.AnalysisHandler
	Positions *handlers.PositionHandler
	Market    *handlers.MarketHandler
	// Stream websocket hub (nil이면 /ws 미등록)
	Stream http.Handler

	AllowedOrigins []string
	AccessLogger   *zerolog.Logger
	Timeout        time.Duration
}

// NewRouter creates a new HTTP router
func NewRouter(cfg *Config) http.Handler {
	r := chi.NewRouter()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(middleware.LoggingConfig{
		AccessLogger: cfg.AccessLogger,
		SkipPaths:    []string{"/health", "/metrics"},
	}))
	r.Use(middleware.Recovery)

	// Health check
	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/health/ready", cfg.Health.Ready)
	}
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Stream != nil {
		r.Get("/ws", cfg.Stream.ServeHTTP)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))
		r.Use(middleware.CORS(cfg.AllowedOrigins))

		if cfg.Analysis != nil {
			r.Post("/analyze", cfg.Analysis.Analyze)
			r.Post("/forecast", cfg.Analysis.Forecast)
			r.Post("/risk", cfg.Analysis.AssessRisk)
			r.Get("/risk/latest", cfg.Analysis.LatestRisk)
		}

		if cfg.Positions != nil {
			r.Route("/positions", func(r chi.Router) {
				r.Post("/", cfg.Positions.Open)
				r.Get("/", cfg.Positions.List)
				r.Get("/{id}", cfg.Positions.Get)
				r.Post("/{id}/close", cfg.Positions.Close)
			})
			r.Get("/performance", cfg.Positions.Performance)
		}

		if cfg.Market != nil {
			r.Route("/market", func(r chi.Router) {
				r.Post("/prices", cfg.Market.GetPrices)
				r.Get("/{symbol}/price", cfg.Market.GetPrice)
				r.Get("/{symbol}/series", cfg.Market.GetSeries)
				r.Get("/{symbol}/indicators", cfg.Market.GetIndicators)
			})
		}
	})

	return r
}
