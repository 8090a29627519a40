// Package api — HTTP-интерфейс движка: допуск действий, здоровье, доверие,
// паузы, алерты и возможности. Все операции синхронные.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serotonyl.ru/engagement-guard/internal/api/middleware"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
	"serotonyl.ru/engagement-guard/internal/features/opportunity"
	"serotonyl.ru/engagement-guard/internal/features/pause"
	"serotonyl.ru/engagement-guard/internal/features/safety"
	"serotonyl.ru/engagement-guard/internal/features/trust"
)

// Admission — путь допуска действий и всё, что пишет журналы безопасности.
type Admission interface {
	Admit(ctx context.Context, userID string, kind ledger.Kind, community string) (safety.Decision, error)
	Record(ctx context.Context, in safety.RecordInput) (*ledger.ActionRecord, error)
	Complete(ctx context.Context, id string, outcome ledger.Outcome) error
	Warn(ctx context.Context, userID, note string) error
	Health(ctx context.Context, userID string) (*safety.HealthReport, error)
	Pause(ctx context.Context, userID, reason string, durationMinutes int) (pause.Status, error)
	PauseStatus(ctx context.Context, userID string) (pause.Status, error)
}

// TrustEngine — уровни доверия.
type TrustEngine interface {
	Evaluate(ctx context.Context, userID string) (*trust.Evaluation, error)
	AdvanceIfEligible(ctx context.Context, userID string) (*trust.Advancement, error)
	AwardPoints(ctx context.Context, userID string, points int64, reason string) (int64, error)
}

// Opportunities — сканер возможностей и алерты.
type Opportunities interface {
	Scan(ctx context.Context, userID string) ([]opportunity.Opportunity, error)
	ListNew(ctx context.Context, userID string, limit int) ([]opportunity.Opportunity, error)
	MarkActed(ctx context.Context, userID, id string) error
	Dismiss(ctx context.Context, userID, id string) error
	CreateAlert(ctx context.Context, userID string, in opportunity.AlertInput) (*opportunity.Alert, error)
	ListAlerts(ctx context.Context, userID string) ([]opportunity.Alert, error)
}

// AccountSync — снимки аккаунтов платформы от синхронизатора.
type AccountSync interface {
	Sync(ctx context.Context, userID string, in accounts.SyncInput) (*accounts.Account, error)
	Get(ctx context.Context, userID string) (*accounts.Account, error)
}

// Handlers держит зависимости обработчиков.
type Handlers struct {
	gate     Admission
	trust    TrustEngine
	opps     Opportunities
	accounts AccountSync
}

// NewRouter собирает маршруты. /health/live и /metrics открыты, /api/v1 закрыт ключом и лимитом.
func NewRouter(
	gate Admission,
	trustEngine TrustEngine,
	opps Opportunities,
	accs AccountSync,
	auth *middleware.APIKeyAuth,
	limiter *middleware.RateLimiter,
) http.Handler {
	h := &Handlers{gate: gate, trust: trustEngine, opps: opps, accounts: accs}

	r := chi.NewRouter()
	r.Use(middleware.Recover)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(auth.Middleware)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/account", h.Account)
			r.Put("/account", h.SyncAccount)

			r.Post("/actions/check", h.CheckAction)
			r.Post("/actions", h.RecordAction)
			r.Get("/health", h.Health)
			r.Post("/warnings", h.Warn)

			r.Get("/trust", h.Trust)
			r.Post("/trust/advance", h.AdvanceTrust)
			r.Post("/trust/points", h.AwardPoints)

			r.Get("/pause", h.PauseStatus)
			r.Post("/pause", h.Pause)

			r.Post("/opportunities/scan", h.Scan)
			r.Get("/opportunities", h.ListOpportunities)
			r.Post("/opportunities/{id}/dismiss", h.DismissOpportunity)
			r.Post("/opportunities/{id}/acted", h.ActOnOpportunity)

			r.Get("/alerts", h.ListAlerts)
			r.Post("/alerts", h.CreateAlert)
		})

		r.Patch("/actions/{id}", h.CompleteAction)
	})

	return r
}
