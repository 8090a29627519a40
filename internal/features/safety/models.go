// Package safety — допуск действий: лимиты уровня, паттерны автоматизации,
// здоровье аккаунта. Отказ политики возвращается значением Decision, а не ошибкой.
package safety

import (
	"time"

	"serotonyl.ru/engagement-guard/internal/features/health"
	"serotonyl.ru/engagement-guard/internal/features/pause"
	"serotonyl.ru/engagement-guard/internal/features/trust"
)

// RiskLevel — уровень риска в решении допуска.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Коды причин отказа.
const (
	CodeHourlyLimit        = "hourly_limit"
	CodeDailyLimit         = "daily_limit"
	CodeKindLimit          = "kind_limit"
	CodeMinInterval        = "min_interval"
	CodeCommunityLimit     = "community_limit"
	CodeAnomalyMonotony    = "anomaly_monotony"
	CodeAnomalyTiming      = "anomaly_timing"
	CodeAnomalyFailureRate = "anomaly_failure_rate"
	CodeHealthCritical     = "health_critical"
	CodePaused             = "paused"
	CodeCheckFailed        = "check_failed"
	CodeAccountMissing     = "account_missing"
)

// IsAnomaly — отказ вызван детектором аномалий.
func IsAnomaly(code string) bool {
	switch code {
	case CodeAnomalyMonotony, CodeAnomalyTiming, CodeAnomalyFailureRate:
		return true
	}
	return false
}

// Decision — результат проверки действия.
type Decision struct {
	Allowed     bool       `json:"allowed"`
	Code        string     `json:"code,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	WaitSeconds int        `json:"wait_seconds,omitempty"`
	RiskLevel   RiskLevel  `json:"risk_level"`
	ResumeAt    *time.Time `json:"resume_at,omitempty"`
}

func deny(code string, risk RiskLevel, reason string) Decision {
	return Decision{Allowed: false, Code: code, Reason: reason, RiskLevel: risk}
}

// failClosed — отказ при сбое хранилища.
func failClosed() Decision {
	return deny(CodeCheckFailed, RiskHigh, "Проверка безопасности не удалась, риск высокий")
}

func riskOf(t health.RiskTier) RiskLevel {
	switch t {
	case health.RiskLow:
		return RiskLow
	case health.RiskMedium:
		return RiskMedium
	case health.RiskHigh:
		return RiskHigh
	}
	return RiskCritical
}

// Thresholds — эвристики детектора и потолок по сообществу.
type Thresholds struct {
	MonotonyWindow         int           // Сколько последних записей смотрит проверка монотонности
	MonotonyMinRecords     int           // Меньше записей: проверка молчит
	TimingGaps             int           // Сколько последних интервалов анализируется
	TimingStdDevRatio      float64       // Отклонение ниже этой доли от среднего: подозрительно
	TimingMaxMean          time.Duration // И только если средний интервал короче
	FailureRate            float64       // Доля неудач, выше которой: аномалия
	FailureMinRecords      int
	CommunityHourlyCeiling int // 0: без потолка
}

// DefaultThresholds — исходные значения эвристик.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MonotonyWindow:         10,
		MonotonyMinRecords:     5,
		TimingGaps:             5,
		TimingStdDevRatio:      0.1,
		TimingMaxMean:          10 * time.Minute,
		FailureRate:            0.3,
		FailureMinRecords:      5,
		CommunityHourlyCeiling: 2,
	}
}

// HealthReport — сводка безопасности пользователя.
type HealthReport struct {
	Health         health.Report `json:"health"`
	Tier           trust.Tier    `json:"tier"`
	Pause          pause.Status  `json:"pause"`
	ActionsLast24h int           `json:"actions_last_24h"`
}
