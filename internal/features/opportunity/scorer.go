// Package opportunity — scorer.go содержит чистые функции оценки кандидатов.
package opportunity

import (
	"cmp"
	"math"
	"slices"
	"time"

	"serotonyl.ru/engagement-guard/internal/common"
)

// Потолки составляющих балла релевантности.
const (
	keywordPoints     = 40.0
	engagementPoints  = 30.0
	freshnessPoints   = 20.0
	competitionPoints = 10.0
)

// Evaluate проверяет пост по критериям алерта.
//
// Алгоритм:
//  1. Старше MaxAgeHours: отбрасываем
//  2. Рейтинг ниже MinPopularity: отбрасываем
//  3. Есть исключённое слово в заголовке или тексте: отбрасываем
//  4. Нет ни одного ключевого слова: отбрасываем
//  5. Считаем балл и рекомендацию; рекомендация вне фильтра алерта: отбрасываем
func Evaluate(alert *Alert, item Item, now time.Time) (Opportunity, bool) {
	age := now.Sub(item.CreatedAt).Hours()
	if age < 0 {
		age = 0
	}
	if alert.MaxAgeHours > 0 && age > alert.MaxAgeHours {
		return Opportunity{}, false
	}
	if alert.MinPopularity > 0 && item.Popularity < alert.MinPopularity {
		return Opportunity{}, false
	}

	text := item.Title + " " + item.Body
	for _, kw := range alert.ExcludeKeywords {
		if common.ContainsFold(text, kw) {
			return Opportunity{}, false
		}
	}

	var matched []string
	for _, kw := range alert.Keywords {
		if common.ContainsFold(text, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		return Opportunity{}, false
	}

	suggestion := SuggestAction(item)
	if !alert.Allows(suggestion) {
		return Opportunity{}, false
	}

	return Opportunity{
		ID:              OpportunityID(alert.UserID, item.ID),
		UserID:          alert.UserID,
		AlertID:         alert.ID,
		ItemID:          item.ID,
		Title:           item.Title,
		URL:             item.Permalink,
		Community:       item.Community,
		Popularity:      item.Popularity,
		Comments:        item.Comments,
		AgeHours:        age,
		MatchedKeywords: matched,
		Score:           RelevanceScore(item, len(alert.Keywords), len(matched), age),
		Suggestion:      suggestion,
		Status:          StatusNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, true
}

// RelevanceScore — сумма четырёх ограниченных составляющих, 0–100:
// покрытие ключевых слов (40), отношение рейтинга к комментариям (30),
// свежесть (20), низкая конкуренция (10).
func RelevanceScore(item Item, totalKeywords, matched int, ageHours float64) int {
	var coverage float64
	if totalKeywords > 0 {
		coverage = math.Min(float64(matched)/float64(totalKeywords)*keywordPoints, keywordPoints)
	}
	ratio := float64(item.Popularity) / float64(max(item.Comments, 1))
	engagement := math.Max(0, math.Min(ratio/10, engagementPoints))
	freshness := math.Min(math.Max(freshnessPoints-ageHours, 0), freshnessPoints)
	competition := math.Min(math.Max(competitionPoints-float64(item.Comments)/5, 0), competitionPoints)

	score := int(math.Round(coverage + engagement + freshness + competition))
	return max(0, min(100, score))
}

// SuggestAction — мало комментариев относительно рейтинга → comment;
// популярный и обсуждаемый пост → both; иначе upvote как самое безопасное.
func SuggestAction(item Item) Suggestion {
	commentRatio := float64(item.Comments) / float64(max(item.Popularity, 1))
	if commentRatio < 0.1 && item.Comments < 20 {
		return SuggestComment
	}
	if item.Popularity > 100 && item.Comments > 10 {
		return SuggestBoth
	}
	return SuggestUpvote
}

// Deduplicate оставляет первое вхождение каждого поста.
func Deduplicate(ops []Opportunity) []Opportunity {
	seen := make(map[string]struct{}, len(ops))
	out := make([]Opportunity, 0, len(ops))
	for _, op := range ops {
		if _, ok := seen[op.ItemID]; ok {
			continue
		}
		seen[op.ItemID] = struct{}{}
		out = append(out, op)
	}
	return out
}

// Rank сортирует по убыванию балла (при равенстве сохраняется порядок) и оставляет topN.
func Rank(ops []Opportunity, topN int) []Opportunity {
	ranked := slices.Clone(ops)
	slices.SortStableFunc(ranked, func(a, b Opportunity) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
