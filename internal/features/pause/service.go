// Package pause — service.go управляет паузами: чтение с ленивым снятием и постановка.
package pause

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/safetylog"
	"serotonyl.ru/engagement-guard/internal/metrics"
)

// Store хранит состояния пауз.
type Store interface {
	// Get возвращает состояние или nil, если записи нет.
	Get(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, st State) error
	// ClearExpired снимает все истёкшие паузы и возвращает их число.
	ClearExpired(ctx context.Context, now time.Time) (int, error)
}

// EventLog пишет события в журнал безопасности.
type EventLog interface {
	Log(ctx context.Context, ev *safetylog.Event) error
}

// Service управляет паузами.
type Service struct {
	store   Store
	events  EventLog
	now     common.Clock
	timeout time.Duration
}

// NewService создаёт контроллер пауз.
func NewService(store Store, events EventLog, now common.Clock, timeout time.Duration) *Service {
	return &Service{store: store, events: events, now: now, timeout: timeout}
}

// IsPaused проверяет паузу. Истёкшая пауза снимается прямо при чтении.
func (s *Service) IsPaused(ctx context.Context, userID string) (Status, error) {
	if userID == "" {
		return Status{}, common.ErrEmptyUserID
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	st, err := s.store.Get(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("ошибка чтения паузы: %w", err)
	}
	if st == nil {
		return Status{}, nil
	}

	next, expired := Resolve(*st, s.now())
	if expired {
		if err := s.store.Save(ctx, next); err != nil {
			// Пауза всё равно истекла: отвечаем «не на паузе», снимем при следующем чтении
			log.WithError(err).WithField("user_id", userID).Warn("Не удалось снять истёкшую паузу")
		} else {
			log.WithField("user_id", userID).Debug("Истёкшая пауза снята")
		}
	}
	return StatusOf(next), nil
}

// Pause ставит пользователя на паузу на durationMinutes минут.
// Повторная пауза перезаписывает причину и время окончания.
func (s *Service) Pause(ctx context.Context, userID, reason string, durationMinutes int) (Status, error) {
	if userID == "" {
		return Status{}, common.ErrEmptyUserID
	}
	if durationMinutes <= 0 {
		return Status{}, common.ErrInvalidDuration
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	st := State{
		UserID:    userID,
		Paused:    true,
		Reason:    reason,
		ResumeAt:  now.Add(time.Duration(durationMinutes) * time.Minute),
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, st); err != nil {
		return Status{}, fmt.Errorf("ошибка сохранения паузы: %w", err)
	}
	metrics.PausesApplied.Inc()

	log.WithFields(log.Fields{
		"user_id":   userID,
		"reason":    reason,
		"minutes":   durationMinutes,
		"resume_at": st.ResumeAt,
	}).Info("Активность пользователя приостановлена")

	ev := safetylog.NewEvent(userID, safetylog.KindActivityPaused, now, map[string]any{
		"reason":           reason,
		"duration_minutes": durationMinutes,
		"resume_at":        st.ResumeAt,
	})
	if err := s.events.Log(ctx, ev); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка записи события паузы")
	}

	return StatusOf(st), nil
}

// SweepExpired снимает все истёкшие паузы. Запускается кроном.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.ClearExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("ошибка снятия истёкших пауз: %w", err)
	}
	return n, nil
}
