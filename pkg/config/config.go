package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data providers
	KRX   KRXConfig
	Naver NaverConfig

	// Daily batch
	Batch BatchConfig
	Tier  TierConfig

	// 섹터 키워드/전파 규칙 YAML (비어 있으면 내장 기본값)
	SectorRulesFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// KRXConfig holds KRX (한국거래소) data service configuration
type KRXConfig struct {
	BaseURL string
}

// NaverConfig holds Naver Finance configuration
type NaverConfig struct {
	BaseURL string
}

// BatchConfig holds daily batch policy
type BatchConfig struct {
	BarChunk       int           `validate:"min=1"`
	BarSubChunk    int           `validate:"min=1,ltefield=BarChunk"`
	TickerChunk    int           `validate:"min=1"`
	SectorChunk    int           `validate:"min=1"`
	RetryAttempts  int           `validate:"min=1,max=10"`
	RetryWait      time.Duration `validate:"min=0"`
	CallDelay      time.Duration `validate:"min=0"`
	IndexCallDelay time.Duration `validate:"min=0"`
	HistoryDays    int           `validate:"min=30"`
	RetentionDays  int           `validate:"min=1"`
	MinBars        int           `validate:"min=1"`
	ReferenceCode  string        `validate:"required,len=6,numeric"`
}

// TierConfig holds instrument tier thresholds
type TierConfig struct {
	CoreMarketCap     int64 `validate:"min=0"` // 억원
	CoreTradedValue   int64 `validate:"min=0"` // 백만원
	ExtendedMarketCap int64 `validate:"min=0,ltefield=CoreMarketCap"`
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		KRX: KRXConfig{
			BaseURL: getEnv("KRX_BASE_URL", "http://data.krx.co.kr"),
		},

		Naver: NaverConfig{
			BaseURL: getEnv("NAVER_BASE_URL", "https://finance.naver.com"),
		},

		Batch: BatchConfig{
			BarChunk:       getEnvAsInt("BATCH_BAR_CHUNK", 1000),
			BarSubChunk:    getEnvAsInt("BATCH_BAR_SUBCHUNK", 100),
			TickerChunk:    getEnvAsInt("BATCH_TICKER_CHUNK", 50),
			SectorChunk:    getEnvAsInt("BATCH_SECTOR_CHUNK", 100),
			RetryAttempts:  getEnvAsInt("BATCH_RETRY_ATTEMPTS", 3),
			RetryWait:      getEnvAsDuration("BATCH_RETRY_WAIT", "500ms"),
			CallDelay:      getEnvAsDuration("BATCH_CALL_DELAY", "500ms"),
			IndexCallDelay: getEnvAsDuration("BATCH_INDEX_CALL_DELAY", "100ms"),
			HistoryDays:    getEnvAsInt("BATCH_HISTORY_DAYS", 365),
			RetentionDays:  getEnvAsInt("BATCH_RETENTION_DAYS", 366),
			MinBars:        getEnvAsInt("BATCH_MIN_BARS", 20),
			ReferenceCode:  getEnv("BATCH_REFERENCE_TICKER", "005930"),
		},

		Tier: TierConfig{
			CoreMarketCap:     getEnvAsInt64("TIER_CORE_MARKET_CAP", 10_000),
			CoreTradedValue:   getEnvAsInt64("TIER_CORE_TRADED_VALUE", 10_000),
			ExtendedMarketCap: getEnvAsInt64("TIER_EXTENDED_MARKET_CAP", 2_000),
		},

		SectorRulesFile: getEnv("SECTOR_RULES_FILE", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	v := validator.New()
	if err := v.Struct(c.Batch); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if err := v.Struct(c.Tier); err != nil {
		return fmt.Errorf("tier: %w", err)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
