// Package trust — service.go содержит движок продвижения по уровням доверия.
package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/safetylog"
	"serotonyl.ru/engagement-guard/internal/metrics"
)

// StateStore хранит уровни доверия.
type StateStore interface {
	Get(ctx context.Context, userID string) (*UserTrustState, error)
	// Create создаёт запись, если её ещё нет. Существующую не трогает.
	Create(ctx context.Context, userID string, level int, at time.Time) error
	// SetLevel меняет уровень, только если текущий равен from. false, если уровень уже другой.
	SetLevel(ctx context.Context, userID string, from, to int, at time.Time) (bool, error)
	AddPoints(ctx context.Context, userID string, points int64) (int64, error)
}

// AccountReader читает аккаунт платформы.
type AccountReader interface {
	Get(ctx context.Context, userID string) (*accounts.Account, error)
}

// ActionTotals считает действия пользователя за всё время.
type ActionTotals interface {
	Totals(ctx context.Context, userID string) (completed, total int, err error)
}

// EventLog — журнал безопасности.
type EventLog interface {
	Log(ctx context.Context, ev *safetylog.Event) error
	CountSince(ctx context.Context, userID string, kind safetylog.Kind, since time.Time) (int, error)
}

// Service управляет уровнями доверия.
type Service struct {
	ladder   *Ladder
	states   StateStore
	accounts AccountReader
	actions  ActionTotals
	events   EventLog
	now      common.Clock
	timeout  time.Duration
}

// NewService создаёт движок доверия.
func NewService(
	ladder *Ladder,
	states StateStore,
	accounts AccountReader,
	actions ActionTotals,
	events EventLog,
	now common.Clock,
	timeout time.Duration,
) *Service {
	return &Service{
		ladder:   ladder,
		states:   states,
		accounts: accounts,
		actions:  actions,
		events:   events,
		now:      now,
		timeout:  timeout,
	}
}

// Ladder возвращает лестницу уровней.
func (s *Service) Ladder() *Ladder {
	return s.ladder
}

// CurrentTier возвращает текущий уровень пользователя.
// Пользователю, который встречается впервые, создаёт запись на уровне 1.
func (s *Service) CurrentTier(ctx context.Context, userID string) (Tier, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	state, err := s.state(ctx, userID)
	if err != nil {
		return Tier{}, err
	}
	return s.tierOf(state), nil
}

// Evaluate оценивает прогресс к следующему уровню.
//
// Алгоритм:
//  1. Берём текущий уровень (лениво создаём уровень 1)
//  2. На вершине: следующего уровня нет, eligible всегда false
//  3. Собираем показатели: возраст, карма, успешные действия, доля успеха, предупреждения за 30 дней
//  4. Сравниваем с требованиями уровня current+1 (для предупреждений это потолок, для остального пол)
//  5. eligible: только если выполнены ВСЕ пять требований
func (s *Service) Evaluate(ctx context.Context, userID string) (*Evaluation, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	state, err := s.state(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, userID, state)
}

func (s *Service) evaluate(ctx context.Context, userID string, state *UserTrustState) (*Evaluation, error) {
	current := s.tierOf(state)
	next, ok := s.ladder.Next(current.Level)
	if !ok {
		return &Evaluation{Current: current, OverallProgress: 1}, nil
	}

	stats, err := s.stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	progress := Compare(stats, next.Requirements)
	met := progress.MetCount()
	total := len(progress.all())

	return &Evaluation{
		Current:         current,
		Next:            &next,
		Stats:           stats,
		Progress:        progress,
		OverallProgress: float64(met) / float64(total),
		Eligible:        met == total,
	}, nil
}

// Compare сравнивает показатели с требованиями уровня.
func Compare(st Stats, req Requirements) Progress {
	return Progress{
		AccountAge: RequirementProgress{
			Current: float64(st.AccountAgeDays), Required: float64(req.MinAccountAgeDays),
			Met: st.AccountAgeDays >= req.MinAccountAgeDays,
		},
		Karma: RequirementProgress{
			Current: float64(st.TotalKarma), Required: float64(req.MinKarma),
			Met: st.TotalKarma >= req.MinKarma,
		},
		SuccessfulActions: RequirementProgress{
			Current: float64(st.SuccessfulActions), Required: float64(req.MinSuccessfulActions),
			Met: st.SuccessfulActions >= req.MinSuccessfulActions,
		},
		SuccessRate: RequirementProgress{
			Current: st.SuccessRate, Required: req.MinSuccessRate,
			Met: st.SuccessRate >= req.MinSuccessRate,
		},
		Warnings: RequirementProgress{
			Current: float64(st.RecentWarnings), Required: float64(req.MaxWarnings),
			Met: st.RecentWarnings <= req.MaxWarnings,
		},
	}
}

// AdvanceIfEligible повышает пользователя ровно на один уровень, если он готов.
// Смена уровня: compare-and-set от текущего уровня, поэтому две параллельные
// оценки одного и того же состояния не повысят пользователя дважды.
func (s *Service) AdvanceIfEligible(ctx context.Context, userID string) (*Advancement, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	state, err := s.state(ctx, userID)
	if err != nil {
		return nil, err
	}
	eval, err := s.evaluate(ctx, userID, state)
	if err != nil {
		return nil, err
	}
	if !eval.Eligible || eval.Next == nil {
		return &Advancement{Advanced: false}, nil
	}

	now := s.now()
	changed, err := s.states.SetLevel(ctx, userID, state.Level, eval.Next.Level, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка смены уровня: %w", err)
	}
	if !changed {
		// Кто-то уже сменил уровень между чтением и записью
		return &Advancement{Advanced: false}, nil
	}

	metrics.TrustPromotions.WithLabelValues(eval.Next.Name).Inc()
	log.WithFields(log.Fields{
		"user_id": userID,
		"from":    state.Level,
		"to":      eval.Next.Level,
	}).Info("Уровень доверия повышен")

	ev := safetylog.NewEvent(userID, safetylog.KindLevelUp, now, map[string]any{
		"new_level":  eval.Next.Level,
		"level_name": eval.Next.Name,
	})
	if err := s.events.Log(ctx, ev); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка записи события повышения уровня")
	}

	return &Advancement{Advanced: true, NewTier: eval.Next}, nil
}

// HasFeature проверяет, открыта ли функция на текущем уровне пользователя.
func (s *Service) HasFeature(ctx context.Context, userID, feature string) (bool, error) {
	tier, err := s.CurrentTier(ctx, userID)
	if err != nil {
		return false, err
	}
	return tier.Benefits.HasFeature(feature), nil
}

// RequiredTier возвращает самый низкий уровень лестницы, открывающий функцию.
func (s *Service) RequiredTier(feature string) (Tier, bool) {
	return s.ladder.FeatureRequirement(feature)
}

// AwardPoints начисляет очки доверия и пишет событие в журнал.
func (s *Service) AwardPoints(ctx context.Context, userID string, points int64, reason string) (int64, error) {
	if userID == "" {
		return 0, common.ErrEmptyUserID
	}
	if points <= 0 {
		return 0, common.ErrInvalidPoints
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.state(ctx, userID); err != nil {
		return 0, err
	}
	total, err := s.states.AddPoints(ctx, userID, points)
	if err != nil {
		return 0, fmt.Errorf("ошибка начисления очков: %w", err)
	}

	ev := safetylog.NewEvent(userID, safetylog.KindPointsAwarded, s.now(), map[string]any{
		"points":    points,
		"reason":    reason,
		"new_total": total,
	})
	if err := s.events.Log(ctx, ev); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка записи события начисления очков")
	}
	return total, nil
}

// state читает состояние или лениво создаёт его на первом уровне.
func (s *Service) state(ctx context.Context, userID string) (*UserTrustState, error) {
	state, err := s.states.Get(ctx, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, common.ErrTrustStateNotFound) {
		return nil, fmt.Errorf("ошибка чтения уровня доверия: %w", err)
	}

	first := s.ladder.First()
	if err := s.states.Create(ctx, userID, first.Level, s.now()); err != nil {
		return nil, fmt.Errorf("ошибка создания уровня доверия: %w", err)
	}
	// Перечитываем: параллельный вызов мог создать запись раньше нас
	state, err = s.states.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения уровня доверия: %w", err)
	}
	return state, nil
}

// tierOf возвращает уровень состояния. Для неизвестного номера (лестницу укоротили) берётся ближайший допустимый.
func (s *Service) tierOf(state *UserTrustState) Tier {
	if t, ok := s.ladder.Tier(state.Level); ok {
		return t
	}
	if state.Level > s.ladder.Top() {
		t, _ := s.ladder.Tier(s.ladder.Top())
		return t
	}
	return s.ladder.First()
}

// stats собирает показатели. Без аккаунта возвращает ошибку, а не нули.
func (s *Service) stats(ctx context.Context, userID string) (Stats, error) {
	acc, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка чтения аккаунта: %w", err)
	}

	completed, total, err := s.actions.Totals(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка подсчёта действий: %w", err)
	}

	now := s.now()
	warnings, err := s.events.CountSince(ctx, userID, safetylog.KindWarning, now.Add(-safetylog.WarningsWindow))
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка подсчёта предупреждений: %w", err)
	}

	rate := 0.0
	if total > 0 {
		rate = float64(completed) / float64(total)
	}

	return Stats{
		AccountAgeDays:    acc.AgeDays(now),
		TotalKarma:        acc.TotalKarma(),
		SuccessfulActions: completed,
		SuccessRate:       rate,
		RecentWarnings:    warnings,
	}, nil
}
