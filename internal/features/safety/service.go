// Package safety — service.go содержит ограничитель действий (CheckAction)
// и расчёт здоровья аккаунта по журналу.
package safety

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/health"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
	"serotonyl.ru/engagement-guard/internal/features/safetylog"
	"serotonyl.ru/engagement-guard/internal/features/trust"
)

// ActionReader читает журнал действий (новые первыми).
type ActionReader interface {
	ListActions(ctx context.Context, userID string, since time.Time) ([]ledger.ActionRecord, error)
}

// AccountReader читает аккаунт платформы.
type AccountReader interface {
	Get(ctx context.Context, userID string) (*accounts.Account, error)
}

// TierSource отдаёт текущий уровень доверия пользователя.
type TierSource interface {
	CurrentTier(ctx context.Context, userID string) (trust.Tier, error)
}

// WarningCounter считает события журнала безопасности.
type WarningCounter interface {
	CountSince(ctx context.Context, userID string, kind safetylog.Kind, since time.Time) (int, error)
}

// Service — ограничитель действий.
type Service struct {
	actions    ActionReader
	accounts   AccountReader
	tiers      TierSource
	warnings   WarningCounter
	scorer     *health.Scorer
	thresholds Thresholds
	now        common.Clock
	timeout    time.Duration
}

// NewService создаёт ограничитель.
func NewService(
	actions ActionReader,
	accounts AccountReader,
	tiers TierSource,
	warnings WarningCounter,
	scorer *health.Scorer,
	thresholds Thresholds,
	now common.Clock,
	timeout time.Duration,
) *Service {
	return &Service{
		actions:    actions,
		accounts:   accounts,
		tiers:      tiers,
		warnings:   warnings,
		scorer:     scorer,
		thresholds: thresholds,
		now:        now,
		timeout:    timeout,
	}
}

// CheckAction решает, можно ли выполнить действие прямо сейчас.
//
// Порядок проверок:
//  1. Журнал за 24 часа, аккаунт, лимиты уровня (сбой любого чтения: отказ check_failed)
//  2. Часовой, суточный и потиповой лимиты; waitSeconds: пока старейшая запись не выйдет из окна
//  3. Минимальный интервал с последнего действия
//  4. Потолок действий в одном сообществе за час
//  5. Детектор аномалий
//  6. Здоровье аккаунта critical означает отказ при любом запасе лимитов
//
// Ошибка возвращается только при некорректном вводе. Сама проверка ничего не пишет.
func (s *Service) CheckAction(ctx context.Context, userID string, kind ledger.Kind, community string) (Decision, error) {
	if userID == "" {
		return Decision{}, common.ErrEmptyUserID
	}
	if _, err := ledger.ParseKind(string(kind)); err != nil {
		return Decision{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	logger := log.WithFields(log.Fields{"user_id": userID, "kind": kind})

	records, err := s.recent(ctx, userID, now)
	if err != nil {
		logger.WithError(err).Error("Ошибка чтения журнала действий")
		return failClosed(), nil
	}

	acc, err := s.accounts.Get(ctx, userID)
	if errors.Is(err, common.ErrAccountNotFound) {
		return deny(CodeAccountMissing, RiskCritical, "Аккаунт платформы не найден"), nil
	}
	if err != nil {
		logger.WithError(err).Error("Ошибка чтения аккаунта")
		return failClosed(), nil
	}

	tier, err := s.tiers.CurrentTier(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("Ошибка чтения уровня доверия")
		return failClosed(), nil
	}
	budget := tier.Benefits

	if d, denied := s.checkBudget(records, now, kind, budget); denied {
		return d, nil
	}

	if d, denied := checkInterval(records, now, budget.MinInterval); denied {
		return d, nil
	}

	if d, denied := s.checkCommunity(records, now, community); denied {
		return d, nil
	}

	if a, found := DetectAnomaly(records, now, s.thresholds); found {
		return deny(a.Code, RiskHigh, a.Reason), nil
	}

	report, err := s.score(ctx, userID, acc, records, now)
	if err != nil {
		logger.WithError(err).Error("Ошибка расчёта здоровья аккаунта")
		return failClosed(), nil
	}
	if report.RiskTier == health.RiskCritical {
		return deny(CodeHealthCritical, RiskCritical,
			fmt.Sprintf("Здоровье аккаунта критическое (%d/100), действия приостановлены", report.Score)), nil
	}

	return Decision{Allowed: true, RiskLevel: riskOf(report.RiskTier)}, nil
}

// Health собирает отчёт о здоровье аккаунта, уровне и активности за сутки.
// Паузу заполняет Gate.
func (s *Service) Health(ctx context.Context, userID string) (*HealthReport, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	records, err := s.recent(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала действий: %w", err)
	}
	acc, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения аккаунта: %w", err)
	}
	tier, err := s.tiers.CurrentTier(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения уровня доверия: %w", err)
	}
	report, err := s.score(ctx, userID, acc, records, now)
	if err != nil {
		return nil, err
	}

	return &HealthReport{
		Health:         report,
		Tier:           tier,
		ActionsLast24h: ledger.CountWindow(records, now, ledger.Day, ledger.All).Count,
	}, nil
}

// recent читает журнал за сутки и упорядочивает от новых к старым.
func (s *Service) recent(ctx context.Context, userID string, now time.Time) ([]ledger.ActionRecord, error) {
	records, err := s.actions.ListActions(ctx, userID, now.Add(-ledger.Day))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(records, func(a, b ledger.ActionRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return records, nil
}

func (s *Service) score(ctx context.Context, userID string, acc *accounts.Account, records []ledger.ActionRecord, now time.Time) (health.Report, error) {
	warnings, err := s.warnings.CountSince(ctx, userID, safetylog.KindWarning, now.Add(-safetylog.WarningsWindow))
	if err != nil {
		return health.Report{}, fmt.Errorf("ошибка подсчёта предупреждений: %w", err)
	}
	return s.scorer.Score(acc, records, warnings, now), nil
}

func (s *Service) checkBudget(records []ledger.ActionRecord, now time.Time, kind ledger.Kind, b trust.Budget) (Decision, bool) {
	hourly := ledger.CountWindow(records, now, ledger.Hour, ledger.All)
	if hourly.Count >= b.MaxActionsPerHour {
		d := withWait(deny(CodeHourlyLimit, RiskMedium, ""), hourly.ExpiresIn(now, ledger.Hour))
		d.Reason = fmt.Sprintf("Достигнут часовой лимит (%d/%d). Подождите %s",
			hourly.Count, b.MaxActionsPerHour, common.FormatWait(d.WaitSeconds))
		return d, true
	}

	daily := ledger.CountWindow(records, now, ledger.Day, ledger.All)
	if daily.Count >= b.MaxActionsPerDay {
		d := withWait(deny(CodeDailyLimit, RiskMedium, ""), daily.ExpiresIn(now, ledger.Day))
		d.Reason = fmt.Sprintf("Достигнут суточный лимит (%d/%d). Подождите %s",
			daily.Count, b.MaxActionsPerDay, common.FormatWait(d.WaitSeconds))
		return d, true
	}

	limit := b.KindCap(kind)
	if limit <= 0 {
		return deny(CodeKindLimit, RiskMedium,
			fmt.Sprintf("Действие %q недоступно на текущем уровне доверия", kind)), true
	}
	byKind := ledger.CountWindow(records, now, ledger.Hour, ledger.OfKind(kind))
	if byKind.Count >= limit {
		d := withWait(deny(CodeKindLimit, RiskMedium, ""), byKind.ExpiresIn(now, ledger.Hour))
		d.Reason = fmt.Sprintf("Достигнут часовой лимит для %q (%d/%d). Подождите %s",
			kind, byKind.Count, limit, common.FormatWait(d.WaitSeconds))
		return d, true
	}
	return Decision{}, false
}

func checkInterval(records []ledger.ActionRecord, now time.Time, interval time.Duration) (Decision, bool) {
	last, ok := ledger.Latest(records)
	if !ok || interval <= 0 {
		return Decision{}, false
	}
	elapsed := now.Sub(last.CreatedAt)
	if elapsed >= interval {
		return Decision{}, false
	}
	d := withWait(deny(CodeMinInterval, RiskLow, ""), interval-elapsed)
	d.Reason = fmt.Sprintf("Слишком частые действия. Подождите %s", common.FormatWait(d.WaitSeconds))
	return d, true
}

func (s *Service) checkCommunity(records []ledger.ActionRecord, now time.Time, community string) (Decision, bool) {
	ceiling := s.thresholds.CommunityHourlyCeiling
	if community == "" || ceiling <= 0 {
		return Decision{}, false
	}
	wc := ledger.CountWindow(records, now, ledger.Hour, ledger.InCommunity(community))
	if wc.Count < ceiling {
		return Decision{}, false
	}
	d := withWait(deny(CodeCommunityLimit, RiskMedium, ""), wc.ExpiresIn(now, ledger.Hour))
	d.Reason = fmt.Sprintf("Слишком много действий в r/%s за час (%d/%d). Подождите %s",
		community, wc.Count, ceiling, common.FormatWait(d.WaitSeconds))
	return d, true
}

func withWait(d Decision, wait time.Duration) Decision {
	d.WaitSeconds = common.CeilSeconds(wait)
	return d
}
