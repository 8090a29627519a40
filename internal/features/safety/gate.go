// Package safety — gate.go объединяет паузу, ограничитель и запись действий
// в единый путь допуска.
package safety

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
	"serotonyl.ru/engagement-guard/internal/features/pause"
	"serotonyl.ru/engagement-guard/internal/features/safetylog"
	"serotonyl.ru/engagement-guard/internal/metrics"
)

// PauseController — контроллер пауз.
type PauseController interface {
	IsPaused(ctx context.Context, userID string) (pause.Status, error)
	Pause(ctx context.Context, userID, reason string, durationMinutes int) (pause.Status, error)
}

// ActionWriter пишет в журнал действий.
type ActionWriter interface {
	Append(ctx context.Context, a *ledger.ActionRecord) error
	UpdateOutcome(ctx context.Context, id string, outcome ledger.Outcome) error
}

// EventLog пишет в журнал безопасности.
type EventLog interface {
	Log(ctx context.Context, ev *safetylog.Event) error
}

// Gate — точка входа для любого действия.
type Gate struct {
	limiter         *Service
	pauses          PauseController
	actions         ActionWriter
	events          EventLog
	anomalyCooldown int // Минуты автоматической паузы после аномалии, 0: не ставить
	now             common.Clock
	timeout         time.Duration
}

// NewGate создаёт шлюз допуска.
func NewGate(
	limiter *Service,
	pauses PauseController,
	actions ActionWriter,
	events EventLog,
	anomalyCooldown int,
	now common.Clock,
	timeout time.Duration,
) *Gate {
	return &Gate{
		limiter:         limiter,
		pauses:          pauses,
		actions:         actions,
		events:          events,
		anomalyCooldown: anomalyCooldown,
		now:             now,
		timeout:         timeout,
	}
}

// Admit проверяет действие: сначала пауза, затем ограничитель.
// Отказ по аномалии ставит пользователя на паузу (если задан anomalyCooldown).
func (g *Gate) Admit(ctx context.Context, userID string, kind ledger.Kind, community string) (Decision, error) {
	if userID == "" {
		return Decision{}, common.ErrEmptyUserID
	}
	if _, err := ledger.ParseKind(string(kind)); err != nil {
		return Decision{}, err
	}
	logger := log.WithFields(log.Fields{"user_id": userID, "kind": kind, "community": community})

	st, err := g.pauses.IsPaused(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("Ошибка проверки паузы")
		return g.observe(logger, failClosed()), nil
	}
	if st.Paused {
		return g.observe(logger, pausedDecision(st, g.now())), nil
	}

	d, err := g.limiter.CheckAction(ctx, userID, kind, community)
	if err != nil {
		return Decision{}, err
	}

	if IsAnomaly(d.Code) {
		g.onAnomaly(ctx, logger, userID, d)
	}
	return g.observe(logger, d), nil
}

func pausedDecision(st pause.Status, now time.Time) Decision {
	d := deny(CodePaused, RiskHigh, "Активность приостановлена")
	if st.Reason != "" {
		d.Reason = "Активность приостановлена: " + st.Reason
	}
	if st.ResumeAt != nil {
		d.ResumeAt = st.ResumeAt
		d.WaitSeconds = common.CeilSeconds(st.ResumeAt.Sub(now))
	}
	return d
}

func (g *Gate) onAnomaly(ctx context.Context, logger *log.Entry, userID string, d Decision) {
	ev := safetylog.NewEvent(userID, safetylog.KindAnomaly, g.now(), map[string]any{
		"code":   d.Code,
		"reason": d.Reason,
	})
	if err := g.events.Log(ctx, ev); err != nil {
		logger.WithError(err).Error("Ошибка записи аномалии")
	}

	if g.anomalyCooldown <= 0 {
		return
	}
	if _, err := g.pauses.Pause(ctx, userID, d.Reason, g.anomalyCooldown); err != nil {
		logger.WithError(err).Error("Не удалось поставить паузу после аномалии")
	}
}

func (g *Gate) observe(logger *log.Entry, d Decision) Decision {
	code := d.Code
	if d.Allowed {
		code = "ok"
	} else {
		logger.WithFields(log.Fields{"code": d.Code, "wait_seconds": d.WaitSeconds}).Debug("Действие отклонено")
	}
	metrics.AdmissionDecisions.WithLabelValues(strconv.FormatBool(d.Allowed), code).Inc()
	return d
}

// RecordInput — данные о выполненной (или начатой) попытке действия.
type RecordInput struct {
	UserID    string
	Kind      ledger.Kind
	TargetRef string
	Community string
	Outcome   ledger.Outcome // Пусто: pending
	RiskScore float64
}

// Record дописывает попытку в журнал. Ошибку записи вызывающий может проглотить:
// действие просто не учтётся в будущих окнах.
func (g *Gate) Record(ctx context.Context, in RecordInput) (*ledger.ActionRecord, error) {
	if in.UserID == "" {
		return nil, common.ErrEmptyUserID
	}
	kind, err := ledger.ParseKind(string(in.Kind))
	if err != nil {
		return nil, err
	}
	outcome := ledger.OutcomePending
	if in.Outcome != "" {
		if outcome, err = ledger.ParseOutcome(string(in.Outcome)); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	now := g.now()
	rec := &ledger.ActionRecord{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Kind:      kind,
		TargetRef: in.TargetRef,
		Community: in.Community,
		Outcome:   outcome,
		RiskScore: common.Clamp01(in.RiskScore),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.actions.Append(ctx, rec); err != nil {
		log.WithError(err).WithField("user_id", in.UserID).Error("Действие не записано в журнал")
		return nil, fmt.Errorf("ошибка записи действия: %w", err)
	}
	return rec, nil
}

// Complete завершает действие: pending → completed|failed.
func (g *Gate) Complete(ctx context.Context, id string, outcome ledger.Outcome) error {
	if !ledger.OutcomePending.CanTransition(outcome) {
		return fmt.Errorf("%w: %q", common.ErrInvalidOutcomeTransition, outcome)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.actions.UpdateOutcome(ctx, id, outcome)
}

// Warn записывает явное предупреждение. Предупреждения за 30 дней
// снижают здоровье и мешают повышению уровня.
func (g *Gate) Warn(ctx context.Context, userID, note string) error {
	if userID == "" {
		return common.ErrEmptyUserID
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ev := safetylog.NewEvent(userID, safetylog.KindWarning, g.now(), map[string]any{"note": note})
	if err := g.events.Log(ctx, ev); err != nil {
		return fmt.Errorf("ошибка записи предупреждения: %w", err)
	}
	log.WithFields(log.Fields{"user_id": userID, "note": note}).Warn("Пользователю выдано предупреждение")
	return nil
}

// Health — отчёт ограничителя плюс состояние паузы.
func (g *Gate) Health(ctx context.Context, userID string) (*HealthReport, error) {
	report, err := g.limiter.Health(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := g.pauses.IsPaused(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки паузы: %w", err)
	}
	report.Pause = st
	return report, nil
}

// Pause ставит пользователя на паузу вручную.
func (g *Gate) Pause(ctx context.Context, userID, reason string, durationMinutes int) (pause.Status, error) {
	return g.pauses.Pause(ctx, userID, reason, durationMinutes)
}

// PauseStatus возвращает состояние паузы.
func (g *Gate) PauseStatus(ctx context.Context, userID string) (pause.Status, error) {
	return g.pauses.IsPaused(ctx, userID)
}
