// Package common — pluralize.go содержит склонение русских числительных
// для человекочитаемых причин отказа («подождите 3 минуты»).
package common

import (
	"fmt"
	"time"
)

// pluralForm выбирает форму слова по правилам русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, ...)
func pluralForm(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeMinutes возвращает правильную форму слова «минута».
func PluralizeMinutes(n int) string {
	return pluralForm(n, "минута", "минуты", "минут")
}

// PluralizeSeconds возвращает правильную форму слова «секунда».
func PluralizeSeconds(n int) string {
	return pluralForm(n, "секунда", "секунды", "секунд")
}

// FormatWait форматирует время ожидания для текста отказа.
//
// Примеры:
//
//	FormatWait(45)   → "45 секунд"
//	FormatWait(60)   → "1 минута"
//	FormatWait(1201) → "21 минута"
func FormatWait(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d %s", seconds, PluralizeSeconds(seconds))
	}
	minutes := int((time.Duration(seconds)*time.Second + time.Minute - 1) / time.Minute)
	return fmt.Sprintf("%d %s", minutes, PluralizeMinutes(minutes))
}
