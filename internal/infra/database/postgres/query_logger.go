package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// slowQueryThreshold 느린 쿼리 경고 기준
const slowQueryThreshold = 100 * time.Millisecond

type queryStartKey struct{}

// QueryLogger implements pgx.QueryTracer for logging database queries
type QueryLogger struct {
	logger zerolog.Logger
}

// NewQueryLogger creates a new query logger
func NewQueryLogger(logger zerolog.Logger) *QueryLogger {
	return &QueryLogger{logger: logger}
}

// TraceQueryStart records the start time in the context
func (ql *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

// TraceQueryEnd logs the statement, its duration and any error
func (ql *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		start = time.Now()
	}
	duration := time.Since(start)

	switch {
	case data.Err != nil:
		ql.logger.Error().Err(data.Err).Str("sql", data.SQL).Dur("duration", duration).Msg("Query failed")
	case duration > slowQueryThreshold:
		ql.logger.Warn().
			Str("sql", data.SQL).
			Int64("duration_ms", duration.Milliseconds()).
			Str("command_tag", data.CommandTag.String()).
			Msg("⚠️  Slow query detected")
	default:
		ql.logger.Debug().
			Str("sql", data.SQL).
			Int64("duration_ms", duration.Milliseconds()).
			Str("command_tag", data.CommandTag.String()).
			Msg("Query executed")
	}
}

// PgxZerologAdapter adapts zerolog.Logger to pgx's tracelog.Logger interface
type PgxZerologAdapter struct {
	logger zerolog.Logger
}

// NewPgxZerologAdapter creates a new adapter
func NewPgxZerologAdapter(logger zerolog.Logger) *PgxZerologAdapter {
	return &PgxZerologAdapter{logger: logger}
}

// Log implements tracelog.Logger
func (l *PgxZerologAdapter) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	var event *zerolog.Event

	switch level {
	case tracelog.LogLevelTrace:
		event = l.logger.Trace()
	case tracelog.LogLevelDebug:
		event = l.logger.Debug()
	case tracelog.LogLevelWarn:
		event = l.logger.Warn()
	case tracelog.LogLevelError:
		event = l.logger.Error()
	default:
		event = l.logger.Info()
	}

	event.Fields(data).Msg(msg)
}
