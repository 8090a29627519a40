// Package health считает здоровье аккаунта: композитный балл 0–100
// и категорию риска. Пакет только считает и в хранилище не ходит.
package health

// RiskTier — категория риска аккаунта.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// Factors — пять факторов здоровья, каждый в диапазоне [0, 1].
// Warnings — «давление» предупреждений: чем больше, тем хуже.
type Factors struct {
	AccountAge      float64 `json:"account_age"`
	Karma           float64 `json:"karma"`
	ActivityPattern float64 `json:"activity_pattern"`
	Warnings        float64 `json:"warnings"`
	SuccessRate     float64 `json:"success_rate"`
}

// Weights — веса факторов. Сумма весов равна 1.
type Weights struct {
	AccountAge      float64
	Karma           float64
	ActivityPattern float64
	Warnings        float64
	SuccessRate     float64
}

// DefaultWeights — фиксированные веса: возраст 0.20, карма 0.15,
// паттерн 0.25, предупреждения 0.20, успешность 0.20.
var DefaultWeights = Weights{
	AccountAge:      0.20,
	Karma:           0.15,
	ActivityPattern: 0.25,
	Warnings:        0.20,
	SuccessRate:     0.20,
}

// Report — результат оценки здоровья.
type Report struct {
	Score           int      `json:"score"`
	RiskTier        RiskTier `json:"risk_tier"`
	Factors         Factors  `json:"factors"`
	Recommendations []string `json:"recommendations"`
}
