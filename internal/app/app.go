// Package app инициализирует все компоненты движка.
// app.go — точка сборки: пул БД, хранилища, сервисы, HTTP-роутер и планировщик.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/engagement-guard/internal/api"
	"serotonyl.ru/engagement-guard/internal/api/middleware"
	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/config"
	"serotonyl.ru/engagement-guard/internal/db/postgres"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/health"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
	"serotonyl.ru/engagement-guard/internal/features/opportunity"
	"serotonyl.ru/engagement-guard/internal/features/pause"
	"serotonyl.ru/engagement-guard/internal/features/safety"
	"serotonyl.ru/engagement-guard/internal/features/safetylog"
	"serotonyl.ru/engagement-guard/internal/features/trust"
	"serotonyl.ru/engagement-guard/internal/jobs"
	"serotonyl.ru/engagement-guard/internal/platform/reddit"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *http.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Redis     *redis.Client // nil, если паузы хранятся в PostgreSQL

	limiter *middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок важен: лестница уровней проверяется до подключения к базе.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Лестница уровней ===
	ladder, err := trust.NewLadder(trust.DefaultLadder)
	if err != nil {
		return nil, err
	}

	// === 2. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.Migrate(ctx, pool, postgres.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	now := common.Clock(common.SystemClock)

	// === 3. Хранилища ===
	accountRepo := accounts.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	eventRepo := safetylog.NewRepository(pool)
	trustRepo := trust.NewRepository(pool)
	opportunityRepo := opportunity.NewRepository(pool)

	a := &App{DB: pool}
	pauseStore, err := a.pauseStore(ctx, cfg, pool, now)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 4. Сервисы ===
	accountService := accounts.NewService(accountRepo, now, cfg.StoreTimeout)
	trustService := trust.NewService(ladder, trustRepo, accountRepo, ledgerRepo, eventRepo, now, cfg.StoreTimeout)
	pauseService := pause.NewService(pauseStore, eventRepo, now, cfg.StoreTimeout)
	scorer := health.NewScorer(cfg.SafetyWarningCeiling, cfg.Location())
	limiter := safety.NewService(ledgerRepo, accountRepo, trustService, eventRepo, scorer, thresholds(cfg), now, cfg.StoreTimeout)
	gate := safety.NewGate(limiter, pauseService, ledgerRepo, eventRepo, cfg.SafetyAnomalyCooldownMinutes, now, cfg.StoreTimeout)

	platform := reddit.NewClient(reddit.Config{
		BaseURL:     cfg.PlatformBaseURL,
		AccessToken: cfg.PlatformAccessToken,
		UserAgent:   cfg.PlatformUserAgent,
		Timeout:     cfg.PlatformTimeout,
	})
	scanner := opportunity.NewService(opportunityRepo, platform, trustService, opportunity.Options{
		SearchLimit: cfg.PlatformSearchLimit,
		TopN:        cfg.ScanTopN,
		Pacing:      cfg.PlatformPacing,
		Timeout:     cfg.StoreTimeout,
	}, now)

	// === 5. HTTP ===
	a.limiter = middleware.NewRateLimiter(cfg.APIRateLimitRequests, cfg.APIRateLimitWindow)
	router := api.NewRouter(gate, trustService, scanner, accountService, middleware.NewAPIKeyAuth(cfg.APIKeyHash), a.limiter)
	a.Server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.StoreTimeout,
	}

	// === 6. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(cfg.Location(), jobs.Specs{
		Trust:      cfg.JobsTrustSpec,
		Scan:       cfg.JobsScanSpec,
		PauseSweep: cfg.JobsPauseSweepSpec,
	}, cfg.JobsConcurrency, accountRepo, trustService, scanner, pauseService)

	return a, nil
}

// pauseStore выбирает хранилище пауз по PAUSE_BACKEND.
func (a *App) pauseStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, now common.Clock) (pause.Store, error) {
	if cfg.PauseBackend != "redis" {
		return pause.NewRepository(pool), nil
	}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	if err := a.Redis.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis недоступен: %w", err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("Паузы хранятся в Redis")
	return pause.NewRedisStore(a.Redis, now), nil
}

// thresholds собирает пороги детектора аномалий из конфигурации.
func thresholds(cfg *config.Config) safety.Thresholds {
	return safety.Thresholds{
		MonotonyWindow:         cfg.SafetyMonotonyWindow,
		MonotonyMinRecords:     cfg.SafetyMonotonyMinRecords,
		TimingGaps:             cfg.SafetyTimingGaps,
		TimingStdDevRatio:      cfg.SafetyTimingStdDevRatio,
		TimingMaxMean:          cfg.SafetyTimingMaxMean,
		FailureRate:            cfg.SafetyFailureRate,
		FailureMinRecords:      cfg.SafetyFailureMinRecords,
		CommunityHourlyCeiling: cfg.SafetyCommunityHourlyCeiling,
	}
}

// Close освобождает ресурсы: лимитер, Redis и пул БД.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
