// Package trust — лестница уровней доверия и движок продвижения по ней.
// tiers.go содержит таблицу уровней и проверку её монотонности.
package trust

import (
	"fmt"
	"slices"
	"time"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
)

// Функции, открываемые уровнями доверия.
const (
	FeatureBasicVoting       = "basic_voting"
	FeatureManualCommenting  = "manual_commenting"
	FeatureAICommenting      = "ai_commenting"
	FeatureCommunityJoining  = "community_joining"
	FeatureOpportunityAlerts = "opportunity_alerts"
	FeatureBatchActions      = "batch_actions"
	FeatureAdvancedTargeting = "advanced_targeting"
	FeatureCustomSchedules   = "custom_schedules"
	FeaturePrioritySupport   = "priority_support"
	FeatureBeta              = "beta_features"
)

// Requirements — требования для перехода на уровень.
// Все пороги задают нижние границы, кроме MaxWarnings (верхняя граница).
type Requirements struct {
	MinAccountAgeDays    int     `json:"min_account_age_days"`
	MinKarma             int     `json:"min_karma"`
	MinSuccessfulActions int     `json:"min_successful_actions"`
	MinSuccessRate       float64 `json:"min_success_rate"`
	MaxWarnings          int     `json:"max_warnings"`
}

// Budget — лимиты, которые даёт уровень.
type Budget struct {
	MaxActionsPerHour int                 `json:"max_actions_per_hour"`
	MaxActionsPerDay  int                 `json:"max_actions_per_day"`
	KindHourly        map[ledger.Kind]int `json:"kind_hourly"` // Нет типа в карте: лимит 0
	MinInterval       time.Duration       `json:"min_interval"`
	Features          []string            `json:"features"`
}

// KindCap возвращает часовой лимит для типа действия.
func (b Budget) KindCap(k ledger.Kind) int {
	return b.KindHourly[k]
}

// HasFeature проверяет, открыта ли функция.
func (b Budget) HasFeature(feature string) bool {
	return slices.Contains(b.Features, feature)
}

// Tier — уровень доверия.
type Tier struct {
	Level        int          `json:"level"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Requirements Requirements `json:"requirements"`
	Benefits     Budget       `json:"benefits"`
}

// DefaultLadder — пять уровней: от новичка до элиты.
var DefaultLadder = []Tier{
	{
		Level:       1,
		Name:        "Newcomer",
		Description: "Базовая автоматизация со строгими лимитами",
		Requirements: Requirements{
			MaxWarnings: 999,
		},
		Benefits: Budget{
			MaxActionsPerHour: 3,
			MaxActionsPerDay:  15,
			KindHourly:        map[ledger.Kind]int{ledger.KindVote: 5, ledger.KindComment: 1, ledger.KindJoin: 1},
			MinInterval:       10 * time.Minute,
			Features:          []string{FeatureBasicVoting, FeatureManualCommenting},
		},
	},
	{
		Level:       2,
		Name:        "Trusted User",
		Description: "Подтверждённая надёжность: выше лимиты, AI-комментарии",
		Requirements: Requirements{
			MinAccountAgeDays:    7,
			MinKarma:             100,
			MinSuccessfulActions: 20,
			MinSuccessRate:       0.8,
			MaxWarnings:          2,
		},
		Benefits: Budget{
			MaxActionsPerHour: 6,
			MaxActionsPerDay:  35,
			KindHourly:        map[ledger.Kind]int{ledger.KindVote: 10, ledger.KindComment: 2, ledger.KindJoin: 1},
			MinInterval:       400 * time.Second,
			Features:          []string{FeatureBasicVoting, FeatureManualCommenting, FeatureAICommenting, FeatureCommunityJoining},
		},
	},
	{
		Level:       3,
		Name:        "Veteran",
		Description: "Опытный пользователь: расширенные функции и лимиты",
		Requirements: Requirements{
			MinAccountAgeDays:    30,
			MinKarma:             500,
			MinSuccessfulActions: 100,
			MinSuccessRate:       0.85,
			MaxWarnings:          1,
		},
		Benefits: Budget{
			MaxActionsPerHour: 10,
			MaxActionsPerDay:  60,
			KindHourly:        map[ledger.Kind]int{ledger.KindVote: 15, ledger.KindComment: 4, ledger.KindJoin: 2},
			MinInterval:       5 * time.Minute,
			Features: []string{
				FeatureBasicVoting, FeatureManualCommenting, FeatureAICommenting, FeatureCommunityJoining,
				FeatureOpportunityAlerts, FeatureBatchActions,
			},
		},
	},
	{
		Level:       4,
		Name:        "Expert",
		Description: "Максимум возможностей автоматизации",
		Requirements: Requirements{
			MinAccountAgeDays:    90,
			MinKarma:             2000,
			MinSuccessfulActions: 500,
			MinSuccessRate:       0.9,
			MaxWarnings:          0,
		},
		Benefits: Budget{
			MaxActionsPerHour: 15,
			MaxActionsPerDay:  100,
			KindHourly:        map[ledger.Kind]int{ledger.KindVote: 25, ledger.KindComment: 6, ledger.KindJoin: 3},
			MinInterval:       3 * time.Minute,
			Features: []string{
				FeatureBasicVoting, FeatureManualCommenting, FeatureAICommenting, FeatureCommunityJoining,
				FeatureOpportunityAlerts, FeatureBatchActions, FeatureAdvancedTargeting, FeatureCustomSchedules,
			},
		},
	},
	{
		Level:       5,
		Name:        "Elite",
		Description: "Элитный статус: наибольшие лимиты",
		Requirements: Requirements{
			MinAccountAgeDays:    180,
			MinKarma:             10000,
			MinSuccessfulActions: 2000,
			MinSuccessRate:       0.95,
			MaxWarnings:          0,
		},
		Benefits: Budget{
			MaxActionsPerHour: 25,
			MaxActionsPerDay:  200,
			KindHourly:        map[ledger.Kind]int{ledger.KindVote: 40, ledger.KindComment: 10, ledger.KindJoin: 4},
			MinInterval:       2 * time.Minute,
			Features: []string{
				FeatureBasicVoting, FeatureManualCommenting, FeatureAICommenting, FeatureCommunityJoining,
				FeatureOpportunityAlerts, FeatureBatchActions, FeatureAdvancedTargeting, FeatureCustomSchedules,
				FeaturePrioritySupport, FeatureBeta,
			},
		},
	},
}

// Ladder — проверенная лестница уровней. Создаётся только через NewLadder.
type Ladder struct {
	tiers []Tier
}

// NewLadder проверяет таблицу уровней и возвращает лестницу.
// Вызывается один раз при старте, нарушение монотонности считается фатальной ошибкой.
func NewLadder(tiers []Tier) (*Ladder, error) {
	if err := ValidateLadder(tiers); err != nil {
		return nil, err
	}
	return &Ladder{tiers: slices.Clone(tiers)}, nil
}

// ValidateLadder проверяет, что:
//  1. уровни идут подряд с 1 без пропусков
//  2. требования уровня j не ниже требований уровня i < j (MaxWarnings: не выше)
//  3. лимиты уровня j не ниже лимитов уровня i, интервал не больше, функции образуют надмножество
func ValidateLadder(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: нет ни одного уровня", common.ErrInvalidTierLadder)
	}
	for i, t := range tiers {
		if t.Level != i+1 {
			return fmt.Errorf("%w: уровень #%d имеет номер %d", common.ErrInvalidTierLadder, i+1, t.Level)
		}
		if t.Benefits.MaxActionsPerHour <= 0 || t.Benefits.MaxActionsPerDay < t.Benefits.MaxActionsPerHour {
			return fmt.Errorf("%w: уровень %d: некорректные лимиты час/сутки", common.ErrInvalidTierLadder, t.Level)
		}
		if i == 0 {
			continue
		}
		if err := compareTiers(tiers[i-1], t); err != nil {
			return fmt.Errorf("%w: %d → %d: %s", common.ErrInvalidTierLadder, tiers[i-1].Level, t.Level, err)
		}
	}
	return nil
}

// compareTiers сравнивает соседние уровни. Транзитивность даёт монотонность для любых i < j.
func compareTiers(lo, hi Tier) error {
	lr, hr := lo.Requirements, hi.Requirements
	switch {
	case hr.MinAccountAgeDays < lr.MinAccountAgeDays:
		return fmt.Errorf("возраст аккаунта убывает")
	case hr.MinKarma < lr.MinKarma:
		return fmt.Errorf("карма убывает")
	case hr.MinSuccessfulActions < lr.MinSuccessfulActions:
		return fmt.Errorf("число успешных действий убывает")
	case hr.MinSuccessRate < lr.MinSuccessRate:
		return fmt.Errorf("доля успешных действий убывает")
	case hr.MaxWarnings > lr.MaxWarnings:
		return fmt.Errorf("допустимое число предупреждений растёт")
	}

	lb, hb := lo.Benefits, hi.Benefits
	switch {
	case hb.MaxActionsPerHour < lb.MaxActionsPerHour:
		return fmt.Errorf("часовой лимит убывает")
	case hb.MaxActionsPerDay < lb.MaxActionsPerDay:
		return fmt.Errorf("суточный лимит убывает")
	case hb.MinInterval > lb.MinInterval:
		return fmt.Errorf("минимальный интервал растёт")
	}
	for _, k := range ledger.Kinds {
		if hb.KindCap(k) < lb.KindCap(k) {
			return fmt.Errorf("лимит %q убывает", k)
		}
	}
	for _, f := range lb.Features {
		if !hb.HasFeature(f) {
			return fmt.Errorf("функция %q пропадает", f)
		}
	}
	return nil
}

// Tier возвращает уровень по номеру.
func (l *Ladder) Tier(level int) (Tier, bool) {
	if level < 1 || level > len(l.tiers) {
		return Tier{}, false
	}
	return l.tiers[level-1], true
}

// First возвращает начальный уровень.
func (l *Ladder) First() Tier {
	return l.tiers[0]
}

// Top возвращает номер верхнего уровня.
func (l *Ladder) Top() int {
	return len(l.tiers)
}

// Next возвращает следующий уровень. На вершине false.
func (l *Ladder) Next(level int) (Tier, bool) {
	return l.Tier(level + 1)
}

// FeatureRequirement возвращает самый низкий уровень, открывающий функцию.
func (l *Ladder) FeatureRequirement(feature string) (Tier, bool) {
	for _, t := range l.tiers {
		if t.Benefits.HasFeature(feature) {
			return t, true
		}
	}
	return Tier{}, false
}

// Tiers возвращает копию таблицы уровней.
func (l *Ladder) Tiers() []Tier {
	return slices.Clone(l.tiers)
}
