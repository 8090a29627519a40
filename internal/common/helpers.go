// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: часы, округление, поиск подстрок без учёта регистра.
package common

import (
	"math"
	"strings"
	"time"
)

// Clock возвращает текущее время. Сервисы получают его через конструктор,
// чтобы тесты могли подставить фиксированный момент.
type Clock func() time.Time

// SystemClock — часы по умолчанию (UTC).
func SystemClock() time.Time {
	return time.Now().UTC()
}

// DaysBetween возвращает число полных суток между from и to.
// Если from позже to, возвращает 0.
func DaysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

// CeilSeconds округляет длительность вверх до целых секунд, минимум 1.
// Используется для waitSeconds: «подождите 0 секунд» не имеет смысла.
func CeilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// Clamp01 ограничивает значение диапазоном [0, 1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ContainsFold проверяет вхождение подстроки без учёта регистра.
func ContainsFold(text, sub string) bool {
	if sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(sub))
}

// NormalizeList обрезает пробелы, выкидывает пустые строки и дубликаты
// (без учёта регистра). Порядок первых вхождений сохраняется.
func NormalizeList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}
