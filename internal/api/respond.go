package api

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/engagement-guard/internal/common"
)

type apiError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, apiError{Error: code, Message: msg, RequestID: chimw.GetReqID(r.Context())})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "некорректный JSON")
		return false
	}
	return true
}

// fail переводит ошибку сервиса в HTTP-статус.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrEmptyUserID),
		errors.Is(err, common.ErrUnknownActionKind),
		errors.Is(err, common.ErrCompositeAction),
		errors.Is(err, common.ErrInvalidAccount),
		errors.Is(err, common.ErrUnknownOutcome),
		errors.Is(err, common.ErrEmptyKeywords),
		errors.Is(err, common.ErrEmptyCommunities),
		errors.Is(err, common.ErrEmptyAlertName),
		errors.Is(err, common.ErrInvalidDuration),
		errors.Is(err, common.ErrInvalidPoints):
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, common.ErrAccountNotFound),
		errors.Is(err, common.ErrActionNotFound),
		errors.Is(err, common.ErrOpportunityNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, common.ErrInvalidOutcomeTransition):
		writeError(w, r, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, common.ErrFeatureLocked):
		writeError(w, r, http.StatusForbidden, "feature_locked", err.Error())
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("Ошибка обработки запроса")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "внутренняя ошибка")
	}
}
