package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Level          string // trace, debug, info, warn, error
	Format         string // json, pretty
	FileEnabled    bool
	FilePath       string // logs directory path
	RotationSize   int    // MB
	RetentionDays  int
	ServiceName    string
	ServiceVersion string
}

// Init initializes the global logger
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	writers := []io.Writer{consoleWriter(cfg.Format, os.Stderr)}

	if cfg.FileEnabled {
		if err := os.MkdirAll(cfg.FilePath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		writers = append(writers, rotating(cfg.FilePath, "app.log", cfg.RotationSize, cfg.RetentionDays, 10))

		// error.log 에는 ERROR 이상만 기록
		writers = append(writers, &minLevelWriter{
			Writer: rotating(cfg.FilePath, "error.log", cfg.RotationSize, cfg.RetentionDays, 10),
			min:    zerolog.ErrorLevel,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("version", cfg.ServiceVersion).
		Logger()

	log.Info().
		Str("level", cfg.Level).
		Str("format", cfg.Format).
		Bool("file_enabled", cfg.FileEnabled).
		Msg("Logger initialized")

	return nil
}

func consoleWriter(format string, out io.Writer) io.Writer {
	if format != "pretty" {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
	}
}

func rotating(dir, name string, sizeMB, retentionDays, backups int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    sizeMB,
		MaxAge:     retentionDays,
		MaxBackups: backups,
		Compress:   true,
	}
}

// minLevelWriter drops events below min.
type minLevelWriter struct {
	io.Writer
	min zerolog.Level
}

// WriteLevel implements zerolog.LevelWriter.
func (w *minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

// NewQueryLogger creates a logger for database queries
func NewQueryLogger(logPath string, rotationSize int, retentionDays int) zerolog.Logger {
	return newFileLogger(logPath, "query.log", "query", rotationSize, retentionDays, 5)
}

// NewAccessLogger creates a logger for HTTP access logs
func NewAccessLogger(logPath string, rotationSize int, retentionDays int) zerolog.Logger {
	return newFileLogger(logPath, "access.log", "access", rotationSize, retentionDays, 10)
}

func newFileLogger(logPath, file, kind string, rotationSize, retentionDays, backups int) zerolog.Logger {
	if logPath == "" {
		// If file logging disabled, use default logger
		return log.Logger
	}

	if err := os.MkdirAll(logPath, 0755); err != nil {
		log.Warn().Err(err).Str("type", kind).Msg("Failed to create log directory, using default logger")
		return log.Logger
	}

	return zerolog.New(rotating(logPath, file, rotationSize, retentionDays, backups)).With().
		Timestamp().
		Str("type", kind).
		Logger()
}
