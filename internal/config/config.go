// Package config загружает конфигурацию движка из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"guard"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"engagement_guard"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// Любой поход в хранилище ограничен этим таймаутом.
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- HTTP API ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// Argon2id-хеш API-ключа, см. scripts/generate_hash.go
	APIKeyHash           string        `envconfig:"API_KEY_HASH" required:"true"`
	APIRateLimitRequests int           `envconfig:"API_RATE_LIMIT_REQUESTS" default:"120"`
	APIRateLimitWindow   time.Duration `envconfig:"API_RATE_LIMIT_WINDOW" default:"1m"`

	// --- Safety heuristics ---
	SafetyMonotonyWindow         int           `envconfig:"SAFETY_MONOTONY_WINDOW" default:"10"`
	SafetyMonotonyMinRecords     int           `envconfig:"SAFETY_MONOTONY_MIN_RECORDS" default:"5"`
	SafetyTimingGaps             int           `envconfig:"SAFETY_TIMING_GAPS" default:"5"`
	SafetyTimingStdDevRatio      float64       `envconfig:"SAFETY_TIMING_STDDEV_RATIO" default:"0.1"`
	SafetyTimingMaxMean          time.Duration `envconfig:"SAFETY_TIMING_MAX_MEAN" default:"10m"`
	SafetyFailureRate            float64       `envconfig:"SAFETY_FAILURE_RATE" default:"0.3"`
	SafetyFailureMinRecords      int           `envconfig:"SAFETY_FAILURE_MIN_RECORDS" default:"5"`
	SafetyCommunityHourlyCeiling int           `envconfig:"SAFETY_COMMUNITY_HOURLY_CEILING" default:"2"`
	SafetyWarningCeiling         int           `envconfig:"SAFETY_WARNING_CEILING" default:"5"`
	// 0 — не ставить паузу автоматически после аномалии
	SafetyAnomalyCooldownMinutes int `envconfig:"SAFETY_ANOMALY_COOLDOWN_MINUTES" default:"60"`

	// --- Platform client ---
	PlatformBaseURL     string        `envconfig:"PLATFORM_BASE_URL" default:"https://oauth.reddit.com"`
	PlatformAccessToken string        `envconfig:"PLATFORM_ACCESS_TOKEN"`
	PlatformUserAgent   string        `envconfig:"PLATFORM_USER_AGENT" default:"engagement-guard/1.0"`
	PlatformTimeout     time.Duration `envconfig:"PLATFORM_TIMEOUT" default:"10s"`
	PlatformSearchLimit int           `envconfig:"PLATFORM_SEARCH_LIMIT" default:"25"`
	// Пауза между последовательными запросами к платформе
	PlatformPacing time.Duration `envconfig:"PLATFORM_PACING" default:"100ms"`

	// --- Opportunity scanner ---
	ScanTopN int `envconfig:"SCAN_TOP_N" default:"50"`

	// --- Jobs ---
	JobsTrustSpec      string `envconfig:"JOBS_TRUST_SPEC" default:"0 * * * *"`
	JobsScanSpec       string `envconfig:"JOBS_SCAN_SPEC" default:"*/30 * * * *"`
	JobsPauseSweepSpec string `envconfig:"JOBS_PAUSE_SWEEP_SPEC" default:"*/10 * * * *"`
	JobsConcurrency    int    `envconfig:"JOBS_CONCURRENCY" default:"4"`

	// --- Pause store ---
	PauseBackend  string `envconfig:"PAUSE_BACKEND" default:"postgres"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location возвращает часовой пояс приложения. Без tzdata используется UTC+3.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT должен быть > 0")
	}
	if c.PlatformTimeout <= 0 {
		return fmt.Errorf("PLATFORM_TIMEOUT должен быть > 0")
	}
	if c.SafetyMonotonyWindow <= 0 || c.SafetyTimingGaps <= 0 {
		return fmt.Errorf("SAFETY_MONOTONY_WINDOW и SAFETY_TIMING_GAPS должны быть > 0")
	}
	if c.SafetyFailureRate < 0 || c.SafetyFailureRate > 1 {
		return fmt.Errorf("SAFETY_FAILURE_RATE должен быть в диапазоне [0, 1]")
	}
	if c.SafetyWarningCeiling <= 0 {
		return fmt.Errorf("SAFETY_WARNING_CEILING должен быть > 0")
	}
	if c.SafetyAnomalyCooldownMinutes < 0 {
		return fmt.Errorf("SAFETY_ANOMALY_COOLDOWN_MINUTES не может быть отрицательным")
	}
	if c.ScanTopN <= 0 || c.PlatformSearchLimit <= 0 {
		return fmt.Errorf("SCAN_TOP_N и PLATFORM_SEARCH_LIMIT должны быть > 0")
	}
	if c.JobsConcurrency <= 0 {
		return fmt.Errorf("JOBS_CONCURRENCY должен быть > 0")
	}
	switch c.PauseBackend {
	case "postgres", "redis":
	default:
		return fmt.Errorf("PAUSE_BACKEND: неизвестное значение %q", c.PauseBackend)
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
