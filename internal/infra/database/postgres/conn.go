package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/pkg/config"
	applogger "github.com/wonny/quantengine/internal/pkg/logger"
)

// requiredSchemas 엔진이 사용하는 스키마 (마이그레이션으로 생성)
var requiredSchemas = []string{"market", "trade", "analytics"}

// Pool wraps pgxpool.Pool
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new PostgreSQL connection pool
// SSOT: DATABASE_URL 에서만 연결 정보를 가져옴
func NewPool(ctx context.Context, db config.DatabaseConfig, logging config.LoggingConfig) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Str("database", poolConfig.ConnConfig.Database).
		Str("user", poolConfig.ConnConfig.User).
		Msg("Connecting to PostgreSQL...")

	poolConfig.MaxConns = db.MaxConns
	poolConfig.MinConns = db.MinConns
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	// 파일 로깅이 켜져 있으면 SQL 추적 로그를 별도 파일로
	if logging.FileEnabled {
		queryLogger := applogger.NewQueryLogger(logging.FilePath, logging.RotationSize, logging.RetentionDays)
		poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   NewPgxZerologAdapter(queryLogger),
			LogLevel: traceLevel(logging.Level),
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("✅ PostgreSQL connected successfully")

	if err := checkSchemas(ctx, pool); err != nil {
		log.Warn().Err(err).Msg("Schema check failed, but continuing...")
	}

	return &Pool{Pool: pool}, nil
}

func traceLevel(level string) tracelog.LogLevel {
	switch level {
	case "info":
		return tracelog.LogLevelInfo
	case "warn":
		return tracelog.LogLevelWarn
	case "error":
		return tracelog.LogLevelError
	default:
		return tracelog.LogLevelDebug
	}
}

// checkSchemas warns about schemas that migrations have not created yet
func checkSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	const query = `SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`

	for _, schema := range requiredSchemas {
		var exists bool
		if err := pool.QueryRow(ctx, query, schema).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check schema %s: %w", schema, err)
		}
		if !exists {
			log.Warn().
				Str("schema", schema).
				Msg("⚠️  Schema does not exist (will be created by migrations)")
		}
	}
	return nil
}

// Close closes the connection pool
func (p *Pool) Close() {
	log.Info().Msg("Closing PostgreSQL connection pool...")
	p.Pool.Close()
}
