// Package ledger — window.go считает действия в скользящих окнах.
// Чистые функции без состояния, на вход получают записи (новые первыми) и момент now.
package ledger

import (
	"strings"
	"time"
)

const (
	Hour = time.Hour
	Day  = 24 * time.Hour
)

// Filter отбирает записи, которые участвуют в подсчёте.
type Filter func(r ActionRecord) bool

// All — без фильтра.
func All(ActionRecord) bool { return true }

// OfKind — только записи данного типа.
func OfKind(k Kind) Filter {
	return func(r ActionRecord) bool { return r.Kind == k }
}

// InCommunity — только записи в данном сообществе (без учёта регистра).
func InCommunity(community string) Filter {
	return func(r ActionRecord) bool { return strings.EqualFold(r.Community, community) }
}

// WindowCount — результат подсчёта в окне.
type WindowCount struct {
	Count  int
	Oldest time.Time // Самая старая запись в окне (нулевое время, если окно пусто)
}

// ExpiresIn возвращает, через сколько самая старая запись покинет окно.
func (w WindowCount) ExpiresIn(now time.Time, window time.Duration) time.Duration {
	if w.Count == 0 {
		return 0
	}
	return w.Oldest.Add(window).Sub(now)
}

// CountWindow считает записи, попавшие в окно (now-window, now].
// Запись ровно на границе окна уже вышла из него.
func CountWindow(records []ActionRecord, now time.Time, window time.Duration, match Filter) WindowCount {
	cutoff := now.Add(-window)
	var wc WindowCount
	for _, r := range records {
		if !r.CreatedAt.After(cutoff) || r.CreatedAt.After(now) {
			continue
		}
		if !match(r) {
			continue
		}
		wc.Count++
		if wc.Oldest.IsZero() || r.CreatedAt.Before(wc.Oldest) {
			wc.Oldest = r.CreatedAt
		}
	}
	return wc
}

// Since возвращает записи новее момента since, сохраняя порядок.
func Since(records []ActionRecord, since time.Time) []ActionRecord {
	out := make([]ActionRecord, 0, len(records))
	for _, r := range records {
		if r.CreatedAt.After(since) {
			out = append(out, r)
		}
	}
	return out
}

// Latest возвращает самую свежую запись.
func Latest(records []ActionRecord) (ActionRecord, bool) {
	var latest ActionRecord
	found := false
	for _, r := range records {
		if !found || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
			found = true
		}
	}
	return latest, found
}
