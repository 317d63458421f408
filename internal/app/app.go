// Package app wires the decision engine into a runnable process:
// market data, publishers, engines, position manager and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/api/handlers"
	"github.com/wonny/quantengine/internal/api/router"
	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/position"
	"github.com/wonny/quantengine/internal/infra/database/postgres"
	"github.com/wonny/quantengine/internal/infra/marketdata"
	"github.com/wonny/quantengine/internal/infra/notify"
	"github.com/wonny/quantengine/internal/pkg/config"
	"github.com/wonny/quantengine/internal/pkg/logger"
	"github.com/wonny/quantengine/internal/pkg/metrics"
	"github.com/wonny/quantengine/internal/service/fusion"
	positionsvc "github.com/wonny/quantengine/internal/service/position"
	riskengine "github.com/wonny/quantengine/internal/service/risk"
)

const shutdownTimeout = 10 * time.Second

// MarketSource 시세 + 현재가 (분석, 포지션 모니터, 리스크 스냅샷 공용)
type MarketSource interface {
	market.Provider
	position.PriceSource
}

// App holds every long-lived component
type App struct {
	cfg     *config.Config
	version string
	clock   clock.Clock

	pool   *postgres.Pool
	market MarketSource
	redis  *notify.RedisPublisher
	hub    *notify.Hub
	fanout *notify.Fanout

	Risk      *riskengine.Engine
	Fusion    *fusion.Engine
	Positions *positionsvc.Manager
	Scheduler *riskengine.Scheduler

	handler http.Handler
	server  *http.Server
	serveCh chan error
}

// Option configures an App
type Option func(*App)

// WithClock overrides the clock used by every engine
func WithClock(c clock.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithMarket overrides the configured market source
func WithMarket(m MarketSource) Option {
	return func(a *App) {
		a.market = m
	}
}

// New builds the application. On error every resource opened so far is released.
func New(ctx context.Context, cfg *config.Config, version string, opts ...Option) (_ *App, err error) {
	a := &App{
		cfg:     cfg,
		version: version,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	defer func() {
		if err != nil {
			a.release()
		}
	}()

	metrics.Register()

	// ========================================
	// 1. Database (optional)
	// ========================================
	if cfg.Database.Enabled {
		a.pool, err = postgres.NewPool(ctx, cfg.Database, cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		log.Info().Msg("✅ Database connected")
	}

	// ========================================
	// 2. Market data
	// ========================================
	if a.market == nil {
		a.market, err = a.newMarketSource()
		if err != nil {
			return nil, fmt.Errorf("market source: %w", err)
		}
	}
	log.Info().Str("source", cfg.Market.Source).Msg("✅ Market source ready")

	// ========================================
	// 3. Publishers
	// ========================================
	publishers, err := a.newPublishers(ctx)
	if err != nil {
		return nil, err
	}
	a.fanout = notify.NewFanout(publishers, notify.WithFanoutClock(a.clock))
	log.Info().Strs("publishers", a.fanout.Publishers()).Msg("✅ Event fanout ready")

	// ========================================
	// 4. Engines
	// ========================================
	a.Risk, err = riskengine.NewEngine(cfg.Engine.Risk, a.clock)
	if err != nil {
		return nil, err
	}

	a.Fusion, err = fusion.NewEngine(cfg.Engine,
		fusion.WithRiskAssessor(a.Risk),
		fusion.WithProvider(a.market),
		fusion.WithSink(a.fanout),
		fusion.WithClock(a.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("fusion engine: %w", err)
	}

	a.Positions, err = positionsvc.NewManager(cfg.Engine.Position,
		positionsvc.WithGate(cfg.Engine.Fusion),
		positionsvc.WithPriceSource(a.market),
		positionsvc.WithArchive(a.fanout),
		positionsvc.WithManagerClock(a.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("position manager: %w", err)
	}

	source := positionsvc.NewPortfolioSource(a.Positions, a.market, market.Timeframe(cfg.Market.Timeframe), cfg.Market.Benchmark)
	a.Scheduler = riskengine.NewScheduler(a.Risk, source, a.clock, cfg.Engine.Risk.CheckInterval)

	// ========================================
	// 5. HTTP API
	// ========================================
	a.handler = a.newRouter()
	a.server = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *App) newMarketSource() (MarketSource, error) {
	switch a.cfg.Market.Source {
	case "postgres":
		if a.pool == nil {
			return nil, errors.New("postgres source requires the database")
		}
		return postgres.NewPriceRepository(a.pool.Pool), nil
	case "file":
		return marketdata.LoadFile(a.cfg.Market.File)
	default:
		return marketdata.NewBinanceProvider(a.cfg.Binance), nil
	}
}

func (a *App) newPublishers(ctx context.Context) ([]notify.Publisher, error) {
	var pubs []notify.Publisher

	if a.pool != nil {
		pubs = append(pubs, notify.NewStorePublisher(
			postgres.NewDecisionRepository(a.pool.Pool),
			postgres.NewPositionRepository(a.pool.Pool),
		))
	}

	if a.cfg.Redis.Enabled {
		r, err := notify.NewRedisPublisher(ctx, a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = r
		pubs = append(pubs, r)
	}

	if len(a.cfg.Kafka.Brokers) > 0 {
		k, err := notify.NewKafkaPublisher(a.cfg.Kafka)
		if err != nil {
			if a.redis != nil {
				_ = a.redis.Close()
				a.redis = nil
			}
			return nil, fmt.Errorf("kafka: %w", err)
		}
		pubs = append(pubs, k)
		log.Info().Strs("brokers", a.cfg.Kafka.Brokers).Msg("✅ Kafka writer ready")
	}

	a.hub = notify.NewHub(a.cfg.Server.AllowedOrigins)
	pubs = append(pubs, a.hub)

	return pubs, nil
}

func (a *App) newRouter() http.Handler {
	health := handlers.NewHealthHandler(a.version)
	if a.pool != nil {
		health.AddCheck("database", handlers.DatabaseCheck(a.pool))
	}
	if a.redis != nil {
		health.AddCheck("redis", a.redis.Ping)
	}

	var accessLogger *zerolog.Logger
	if a.cfg.Logging.FileEnabled {
		l := logger.NewAccessLogger(a.cfg.Logging.FilePath, a.cfg.Logging.RotationSize, a.cfg.Logging.RetentionDays)
		accessLogger = &l
	}

	return router.NewRouter(&router.Config{
		Health:         health,
		Analysis:       handlers.NewAnalysisHandler(a.Fusion, a.Risk, a.Scheduler),
		Positions:      handlers.NewPositionHandler(a.Positions, a.Fusion),
		Market:         handlers.NewMarketHandler(a.market),
		Stream:         a.hub,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		AccessLogger:   accessLogger,
	})
}

// Handler returns the HTTP handler (tests drive it through httptest)
func (a *App) Handler() http.Handler {
	return a.handler
}

// Start launches the background loops and the HTTP server
func (a *App) Start(ctx context.Context) error {
	if err := a.Positions.Start(ctx); err != nil {
		return fmt.Errorf("position manager: %w", err)
	}
	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("risk scheduler: %w", err)
	}

	a.serveCh = make(chan error, 1)
	go func() {
		log.Info().Str("address", a.server.Addr).Msg("🎯 API Server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveCh <- err
		}
		close(a.serveCh)
	}()
	return nil
}

// Run starts the app and blocks until ctx is cancelled or the server fails,
// then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return errors.Join(err, a.Shutdown(shutdownCtx))
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("🛑 Shutdown signal received, stopping services...")
	case serveErr = <-a.serveCh:
		log.Error().Err(serveErr).Msg("API server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops the server and loops, drains publishers and closes connections.
// Open positions are kept.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Positions != nil {
		if err := a.Positions.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.release())
	return errors.Join(errs...)
}

// release closes publishers and the database pool
func (a *App) release() error {
	var err error
	if a.fanout != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = a.fanout.Close(ctx)
		cancel()
		a.fanout = nil
	} else {
		if a.hub != nil {
			_ = a.hub.Close()
		}
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}
	a.hub, a.redis = nil, nil

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return err
}
