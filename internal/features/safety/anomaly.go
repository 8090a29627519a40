// Package safety — anomaly.go содержит три независимые проверки на «роботность».
// Все функции чистые и ожидают записи, отсортированные от новых к старым.
package safety

import (
	"math"
	"time"

	"serotonyl.ru/engagement-guard/internal/features/ledger"
)

// minTimingRecords — меньше записей — интервалы не анализируются.
const minTimingRecords = 5

// Anomaly — сработавшая проверка.
type Anomaly struct {
	Code   string
	Reason string
}

// DetectAnomaly прогоняет проверки по очереди: монотонность, равномерность, доля неудач.
func DetectAnomaly(recent []ledger.ActionRecord, now time.Time, th Thresholds) (Anomaly, bool) {
	if Monotonous(recent, th) {
		return Anomaly{
			Code:   CodeAnomalyMonotony,
			Reason: "Обнаружен однообразный паттерн: только один тип действий подряд",
		}, true
	}
	if RegularTiming(recent, th) {
		return Anomaly{
			Code:   CodeAnomalyTiming,
			Reason: "Обнаружены слишком равномерные интервалы между действиями",
		}, true
	}
	if HighFailureRate(ledger.Since(recent, now.Add(-ledger.Day)), th) {
		return Anomaly{
			Code:   CodeAnomalyFailureRate,
			Reason: "Слишком много неудачных действий за последние сутки",
		}, true
	}
	return Anomaly{}, false
}

// Monotonous — среди последних MonotonyWindow записей встречается ровно один тип действий.
func Monotonous(recent []ledger.ActionRecord, th Thresholds) bool {
	window := recent[:min(len(recent), th.MonotonyWindow)]
	if len(window) < th.MonotonyMinRecords || len(window) == 0 {
		return false
	}
	kinds := make(map[ledger.Kind]struct{}, len(ledger.Kinds))
	for _, r := range window {
		kinds[r.Kind] = struct{}{}
	}
	return len(kinds) == 1
}

// RegularTiming — последние интервалы почти одинаковы и короткие.
// Флаг, если стандартное отклонение < TimingStdDevRatio × среднее и среднее < TimingMaxMean.
func RegularTiming(recent []ledger.ActionRecord, th Thresholds) bool {
	window := recent[:min(len(recent), th.TimingGaps+1)]
	if len(window) < minTimingRecords {
		return false
	}

	gaps := make([]float64, 0, len(window)-1)
	for i := 0; i+1 < len(window); i++ {
		gaps = append(gaps, window[i].CreatedAt.Sub(window[i+1].CreatedAt).Seconds())
	}

	mean, stddev := meanStdDev(gaps)
	if mean <= 0 {
		return false
	}
	return stddev < th.TimingStdDevRatio*mean && mean < th.TimingMaxMean.Seconds()
}

// HighFailureRate — доля неудачных действий выше порога при достаточной выборке.
func HighFailureRate(day []ledger.ActionRecord, th Thresholds) bool {
	if len(day) < th.FailureMinRecords || len(day) == 0 {
		return false
	}
	failed := 0
	for _, r := range day {
		if r.Outcome == ledger.OutcomeFailed {
			failed++
		}
	}
	return float64(failed)/float64(len(day)) > th.FailureRate
}

func meanStdDev(xs []float64) (mean, stddev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}
