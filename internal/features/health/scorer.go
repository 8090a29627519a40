// Package health — scorer.go содержит расчёт факторов и итогового балла.
package health

import (
	"math"
	"time"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
)

const (
	// karmaReference — карма, при которой фактор кармы равен 1.
	karmaReference = 1000.0
	// minPatternSample — меньше записей — паттерн нейтральный (0.5).
	minPatternSample = 3
)

// Scorer считает здоровье аккаунта.
type Scorer struct {
	weights        Weights
	warningCeiling int            // Число предупреждений, при котором давление равно 1
	loc            *time.Location // Часовой пояс для распределения по часам суток
}

// NewScorer создаёт оценщик здоровья.
func NewScorer(warningCeiling int, loc *time.Location) *Scorer {
	if warningCeiling <= 0 {
		warningCeiling = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scorer{weights: DefaultWeights, warningCeiling: warningCeiling, loc: loc}
}

// Score оценивает аккаунт по пяти факторам.
//
// Алгоритм:
//  1. Возраст в годах, максимум 1
//  2. Суммарная карма / 1000, максимум 1
//  3. Разнообразие активности: среднее (разных часов / 24) и (разных типов / 3)
//  4. Давление предупреждений за 30 дней: warnings / потолок, максимум 1
//  5. Доля успешных действий в выборке (1, если выборка пуста)
//
// Балл = взвешенная сумма × 100, предупреждения входят как (1 − давление).
func (s *Scorer) Score(acc *accounts.Account, recent []ledger.ActionRecord, warnings int, now time.Time) Report {
	f := Factors{
		AccountAge:      common.Clamp01(float64(acc.AgeDays(now)) / 365),
		Karma:           common.Clamp01(float64(acc.TotalKarma()) / karmaReference),
		ActivityPattern: s.activityPattern(recent),
		Warnings:        common.Clamp01(float64(warnings) / float64(s.warningCeiling)),
		SuccessRate:     successRate(recent),
	}

	score := Compose(f, s.weights)
	return Report{
		Score:           score,
		RiskTier:        TierFor(score),
		Factors:         f,
		Recommendations: Recommend(score, f),
	}
}

// Compose сводит факторы в балл 0–100. Монотонно не убывает по каждому фактору,
// кроме Warnings (по нему не возрастает).
func Compose(f Factors, w Weights) int {
	sum := common.Clamp01(f.AccountAge)*w.AccountAge +
		common.Clamp01(f.Karma)*w.Karma +
		common.Clamp01(f.ActivityPattern)*w.ActivityPattern +
		(1-common.Clamp01(f.Warnings))*w.Warnings +
		common.Clamp01(f.SuccessRate)*w.SuccessRate

	score := int(math.Round(sum * 100))
	return max(0, min(100, score))
}

// TierFor переводит балл в категорию риска: ≥80 low, ≥60 medium, ≥40 high, иначе critical.
func TierFor(score int) RiskTier {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 60:
		return RiskMedium
	case score >= 40:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Recommend формирует советы. На балл не влияет.
func Recommend(score int, f Factors) []string {
	var recs []string
	switch TierFor(score) {
	case RiskMedium:
		recs = append(recs, "Снизьте частоту действий")
	case RiskHigh:
		recs = append(recs, "Существенно снизьте активность", "Больше органического участия")
	case RiskCritical:
		recs = append(recs, "Остановите всю автоматизацию", "Требуется ручная проверка")
	}

	if f.AccountAge < 0.3 {
		recs = append(recs, "Аккаунту нужно больше времени на «выдержку»")
	}
	if f.Karma < 0.2 {
		recs = append(recs, "Набирайте карму органическим участием")
	}
	if f.ActivityPattern < 0.5 {
		recs = append(recs, "Разнообразьте время и типы действий")
	}
	if f.Warnings > 0.2 {
		recs = append(recs, "Разберитесь с недавними предупреждениями")
	}
	if f.SuccessRate < 0.7 {
		recs = append(recs, "Выясните причины неудачных действий")
	}
	return recs
}

func (s *Scorer) activityPattern(recent []ledger.ActionRecord) float64 {
	if len(recent) < minPatternSample {
		return 0.5
	}

	hours := make(map[int]struct{})
	kinds := make(map[ledger.Kind]struct{})
	for _, r := range recent {
		hours[r.CreatedAt.In(s.loc).Hour()] = struct{}{}
		kinds[r.Kind] = struct{}{}
	}

	hourSpread := float64(len(hours)) / 24
	kindSpread := math.Min(float64(len(kinds))/float64(len(ledger.Kinds)), 1)
	return (hourSpread + kindSpread) / 2
}

func successRate(recent []ledger.ActionRecord) float64 {
	if len(recent) == 0 {
		return 1
	}
	completed := 0
	for _, r := range recent {
		if r.Outcome == ledger.OutcomeCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(recent))
}
