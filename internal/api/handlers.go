package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
	"serotonyl.ru/engagement-guard/internal/features/opportunity"
	"serotonyl.ru/engagement-guard/internal/features/safety"
)

type checkRequest struct {
	// Kind — vote|comment|join, либо рекомендация сканера upvote|comment
	Kind      string `json:"kind"`
	Community string `json:"community"`
}

type recordRequest struct {
	Kind      string  `json:"kind"`
	TargetRef string  `json:"target_ref"`
	Community string  `json:"community"`
	Outcome   string  `json:"outcome"`
	RiskScore float64 `json:"risk_score"`
}

type outcomeRequest struct {
	Outcome string `json:"outcome"`
}

type pauseRequest struct {
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
}

type warnRequest struct {
	Note string `json:"note"`
}

type pointsRequest struct {
	Points int64  `json:"points"`
	Reason string `json:"reason"`
}

// kindFor разбирает тип действия. Рекомендация сканера сводится к одному действию журнала;
// both отклоняется: один допуск покрывает ровно одно действие.
func kindFor(s string) (ledger.Kind, error) {
	if k, err := ledger.ParseKind(s); err == nil {
		return k, nil
	}
	sg, err := opportunity.ParseSuggestion(s)
	if err != nil {
		return "", err
	}
	kinds := sg.Kinds()
	if len(kinds) != 1 {
		return "", common.ErrCompositeAction
	}
	return kinds[0], nil
}

// CheckAction — POST /users/{userID}/actions/check. Отказ политики — это 200 с allowed=false.
func (h *Handlers) CheckAction(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	kind, err := kindFor(req.Kind)
	if err != nil {
		fail(w, r, err)
		return
	}
	d, err := h.gate.Admit(r.Context(), chi.URLParam(r, "userID"), kind, req.Community)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// RecordAction — POST /users/{userID}/actions.
func (h *Handlers) RecordAction(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.gate.Record(r.Context(), safety.RecordInput{
		UserID:    chi.URLParam(r, "userID"),
		Kind:      ledger.Kind(req.Kind),
		TargetRef: req.TargetRef,
		Community: req.Community,
		Outcome:   ledger.Outcome(req.Outcome),
		RiskScore: req.RiskScore,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// CompleteAction — PATCH /actions/{id}: pending → completed|failed.
func (h *Handlers) CompleteAction(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if !decode(w, r, &req) {
		return
	}
	outcome, err := ledger.ParseOutcome(req.Outcome)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.gate.Complete(r.Context(), chi.URLParam(r, "id"), outcome); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health — GET /users/{userID}/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report, err := h.gate.Health(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Warn — POST /users/{userID}/warnings.
func (h *Handlers) Warn(w http.ResponseWriter, r *http.Request) {
	var req warnRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.gate.Warn(r.Context(), chi.URLParam(r, "userID"), req.Note); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Trust — GET /users/{userID}/trust.
func (h *Handlers) Trust(w http.ResponseWriter, r *http.Request) {
	eval, err := h.trust.Evaluate(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// AdvanceTrust — POST /users/{userID}/trust/advance.
func (h *Handlers) AdvanceTrust(w http.ResponseWriter, r *http.Request) {
	adv, err := h.trust.AdvanceIfEligible(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adv)
}

// Account — GET /users/{userID}/account.
func (h *Handlers) Account(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// SyncAccount — PUT /users/{userID}/account. Тело — снимок аккаунта с платформы.
func (h *Handlers) SyncAccount(w http.ResponseWriter, r *http.Request) {
	var req accounts.SyncInput
	if !decode(w, r, &req) {
		return
	}
	a, err := h.accounts.Sync(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// AwardPoints — POST /users/{userID}/trust/points.
func (h *Handlers) AwardPoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if !decode(w, r, &req) {
		return
	}
	total, err := h.trust.AwardPoints(r.Context(), chi.URLParam(r, "userID"), req.Points, req.Reason)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total_points": total})
}

// PauseStatus — GET /users/{userID}/pause.
func (h *Handlers) PauseStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.gate.PauseStatus(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Pause — POST /users/{userID}/pause.
func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.gate.Pause(r.Context(), chi.URLParam(r, "userID"), req.Reason, req.DurationMinutes)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Scan — POST /users/{userID}/opportunities/scan.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	ops, err := h.opps.Scan(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

// ListOpportunities — GET /users/{userID}/opportunities?limit=N.
func (h *Handlers) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "validation_error", "limit должен быть неотрицательным числом")
			return
		}
		limit = n
	}
	ops, err := h.opps.ListNew(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

// DismissOpportunity — POST /users/{userID}/opportunities/{id}/dismiss.
func (h *Handlers) DismissOpportunity(w http.ResponseWriter, r *http.Request) {
	if err := h.opps.Dismiss(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActOnOpportunity — POST /users/{userID}/opportunities/{id}/acted.
func (h *Handlers) ActOnOpportunity(w http.ResponseWriter, r *http.Request) {
	if err := h.opps.MarkActed(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAlerts — GET /users/{userID}/alerts.
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.opps.ListAlerts(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// CreateAlert — POST /users/{userID}/alerts.
func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var in opportunity.AlertInput
	if !decode(w, r, &in) {
		return
	}
	alert, err := h.opps.CreateAlert(r.Context(), chi.URLParam(r, "userID"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}
