package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wonny/quantengine/internal/strategy/signals"
)

// Config represents the application configuration
// SSOT: 인프라 설정은 .env, 엔진 테이블은 YAML (QUANT_CONFIG_FILE)
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Binance  BinanceConfig  `yaml:"binance"`
	Market   MarketConfig   `yaml:"market"`
	Logging  LoggingConfig  `yaml:"logging"`
	Engine   EngineConfig   `yaml:"engine"`
}

type ServerConfig struct {
	Port           string        `yaml:"port" default:"8099"`
	ReadTimeout    time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" default:"30s"`
	AllowedOrigins []string      `yaml:"allowed_origins" default:"[\"http://localhost:3099\"]"`
}

type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	URL             string        `yaml:"url"`                              // SSOT: DATABASE_URL
	MaxConns        int32         `yaml:"max_conns" default:"25"`
	MinConns        int32         `yaml:"min_conns" default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" default:"30m"`
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host" default:"localhost"`
	Port         string        `yaml:"port" default:"6379"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size" default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"5"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	Prefix       string        `yaml:"prefix" default:"quant"`
	DecisionTTL  time.Duration `yaml:"decision_ttl" default:"15m"`
}

type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	DecisionTopic string        `yaml:"decision_topic" default:"quant.decisions"`
	PositionTopic string        `yaml:"position_topic" default:"quant.positions"`
	Compression   string        `yaml:"compression" default:"gzip" validate:"oneof=none gzip snappy lz4 zstd"`
	MaxAttempts   int           `yaml:"max_attempts" default:"3"`
	WriteTimeout  time.Duration `yaml:"write_timeout" default:"10s"`
	BatchTimeout  time.Duration `yaml:"batch_timeout" default:"1s"`
}

type BinanceConfig struct {
	APIKey    string  `yaml:"api_key"`
	SecretKey string  `yaml:"secret_key"`
	Limit     int     `yaml:"limit" default:"500" validate:"gte=1,lte=1500"`
	RateLimit float64 `yaml:"rate_limit" default:"10"`
	Burst     int     `yaml:"burst" default:"20"`
}

// MarketConfig 시세 소스 선택
// binance: 선물 REST, postgres: price_bars 테이블, file: JSON 스냅샷
type MarketConfig struct {
	Source    string `yaml:"source" default:"binance" validate:"oneof=binance postgres file"`
	File      string `yaml:"file" validate:"required_if=Source file"`
	Timeframe string `yaml:"timeframe" default:"1d" validate:"oneof=1m 15m 1h 4h 1d"`
	Benchmark string `yaml:"benchmark"`
}

type LoggingConfig struct {
	Level         string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format        string `yaml:"format" default:"pretty" validate:"oneof=json pretty"`
	FileEnabled   bool   `yaml:"file_enabled"`
	FilePath      string `yaml:"file_path" default:"logs"`
	RotationSize  int    `yaml:"rotation_size" default:"100"`
	RetentionDays int    `yaml:"retention_days" default:"14"`
}

// ====================
// Engine configuration (가중치/임계값 단일 구조체)
// ====================

type EngineConfig struct {
	Fusion     FusionConfig   `yaml:"fusion"`
	Ensemble   EnsembleConfig `yaml:"ensemble"`
	Strategies StrategyConfig `yaml:"strategies"`
	Risk       RiskConfig     `yaml:"risk"`
	Position   PositionConfig `yaml:"position"`
}

// FusionConfig 신호 융합 설정
type FusionConfig struct {
	Weights         map[string]float64 `yaml:"weights" default:"{\"mean_reversion\":0.25,\"trend_breakout\":0.30,\"composite_momentum\":0.25,\"price_action\":0.20}"`
	ConfidenceGate  float64            `yaml:"confidence_gate" default:"0.6" validate:"gte=0,lte=1"`
	StrengthGate    float64            `yaml:"strength_gate" default:"0.5" validate:"gte=0,lte=1"`
	BlockingLevel   string             `yaml:"blocking_level" default:"HIGH" validate:"oneof=VERY_LOW LOW MEDIUM HIGH VERY_HIGH EXTREME"`
	StrategyTimeout time.Duration      `yaml:"strategy_timeout" default:"2s" validate:"gt=0"`
	CacheSize       int                `yaml:"cache_size" default:"100" validate:"gte=1"`
	CacheTTL        time.Duration      `yaml:"cache_ttl" default:"5m" validate:"gt=0"`
}

// EnsembleConfig 예측 앙상블 설정
type EnsembleConfig struct {
	Weights             map[string]float64 `yaml:"weights" default:"{\"price\":0.4,\"trend\":0.3,\"volatility\":0.2,\"sentiment\":0.1}"`
	ConfidenceThreshold float64            `yaml:"confidence_threshold" default:"0.7" validate:"gte=0,lte=1"`
	BullishCutoff       float64            `yaml:"bullish_cutoff" default:"0.6" validate:"gte=0,lte=1"`
	BearishCutoff       float64            `yaml:"bearish_cutoff" default:"0.4" validate:"gte=0,lte=1,ltfield=BullishCutoff"`
	ModelTimeout        time.Duration      `yaml:"model_timeout" default:"2s" validate:"gt=0"`
}

// StrategyConfig 전략별 파라미터
type StrategyConfig struct {
	MeanReversion signals.MeanReversionParams `yaml:"mean_reversion"`
	TrendBreakout signals.TrendBreakoutParams `yaml:"trend_breakout"`
	Momentum      signals.MomentumParams      `yaml:"composite_momentum"`
}

// RiskConfig 리스크 엔진 설정
type RiskConfig struct {
	Confidence        float64        `yaml:"confidence" default:"0.95" validate:"gt=0,lt=1"`
	RiskFreeRate      float64        `yaml:"risk_free_rate" default:"0.05"`
	MonteCarloSamples int            `yaml:"monte_carlo_samples" default:"10000" validate:"gte=10000"`
	Seed              int64          `yaml:"seed" default:"42"`
	CheckInterval     time.Duration  `yaml:"check_interval" default:"60s" validate:"gt=0"`
	Thresholds        RiskThresholds `yaml:"thresholds"`
}

// RiskThresholds 리스크 임계값
type RiskThresholds struct {
	VaR95            float64 `yaml:"var_95" default:"0.02" validate:"gt=0"`
	VaR99            float64 `yaml:"var_99" default:"0.05" validate:"gt=0"`
	MaxDrawdown      float64 `yaml:"max_drawdown" default:"0.15" validate:"gt=0"`
	Volatility       float64 `yaml:"volatility" default:"0.25" validate:"gt=0"`
	Beta             float64 `yaml:"beta" default:"1.5" validate:"gt=0"`
	SharpeMin        float64 `yaml:"sharpe_min" default:"1.0" validate:"gt=0"`
	CorrelationAlert float64 `yaml:"correlation_alert" default:"0.8" validate:"gt=0,lte=1"`
}

// PositionConfig 포지션 관리 설정
type PositionConfig struct {
	AccountSize       float64       `yaml:"account_size" default:"100000000" validate:"gt=0"`
	MaxPositions      int           `yaml:"max_positions" default:"5" validate:"gte=1"`
	RiskPerTrade      float64       `yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lte=1"`
	DailyLossLimit    float64       `yaml:"daily_loss_limit" default:"0.05" validate:"gt=0,lte=1"`
	MinPositionRatio  float64       `yaml:"min_position_ratio" default:"0.01" validate:"gt=0,lte=1"`
	MaxPositionRatio  float64       `yaml:"max_position_ratio" default:"0.10" validate:"gt=0,lte=1,gtefield=MinPositionRatio"`
	BaseStopLossPct   float64       `yaml:"base_stop_loss_pct" default:"3" validate:"gt=0"`
	CommissionRate    float64       `yaml:"commission_rate" default:"0.0015" validate:"gte=0"`
	MonitorInterval   time.Duration `yaml:"monitor_interval" default:"30s" validate:"gt=0"`
	RiskCheckInterval time.Duration `yaml:"risk_check_interval" default:"60s" validate:"gt=0"`
	SymbolCooldown    time.Duration `yaml:"symbol_cooldown" default:"1h"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// default 태그는 컴파일 타임 상수라 실패 시 프로그래밍 오류
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from .env, the optional YAML file, and environment variables
// SSOT: 우선순위 env > YAML > default 태그
func Load() (*Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// .env 파일이 없어도 계속 진행 (환경 변수에서 로드 시도)
		fmt.Println("Warning: .env file not found, using environment variables")
	}
	return LoadFile(getEnv("QUANT_CONFIG_FILE", ""))
}

// LoadFile loads defaults, then the YAML file at path (if any), then environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides infrastructure settings from environment variables
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)

	if url := getEnv("DATABASE_URL", ""); url != "" {
		cfg.Database.URL = url
		cfg.Database.Enabled = true
	}

	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnv("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if v := getEnv("REDIS_ENABLED", ""); v != "" {
		cfg.Redis.Enabled, _ = strconv.ParseBool(v)
	}

	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	cfg.Binance.APIKey = getEnv("BINANCE_API_KEY", cfg.Binance.APIKey)
	cfg.Binance.SecretKey = getEnv("BINANCE_SECRET_KEY", cfg.Binance.SecretKey)

	cfg.Market.Source = getEnv("MARKET_SOURCE", cfg.Market.Source)
	cfg.Market.File = getEnv("MARKET_FILE", cfg.Market.File)
	cfg.Market.Benchmark = getEnv("MARKET_BENCHMARK", cfg.Market.Benchmark)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	if v := getEnv("LOG_FILE_ENABLED", ""); v != "" {
		cfg.Logging.FileEnabled, _ = strconv.ParseBool(v)
	}
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
