// Package opportunity — поиск постов, на которые стоит отреагировать:
// алерты пользователя, оценка релевантности, дедупликация и ранжирование.
package opportunity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
)

// Suggestion — рекомендуемая реакция на пост.
type Suggestion string

const (
	SuggestUpvote  Suggestion = "upvote"
	SuggestComment Suggestion = "comment"
	SuggestBoth    Suggestion = "both"
)

// ParseSuggestion разбирает рекомендацию.
func ParseSuggestion(s string) (Suggestion, error) {
	switch v := Suggestion(strings.ToLower(strings.TrimSpace(s))); v {
	case SuggestUpvote, SuggestComment, SuggestBoth:
		return v, nil
	}
	return "", fmt.Errorf("%w: рекомендация %q", common.ErrUnknownActionKind, s)
}

// Kinds — какие действия журнала нужны для рекомендации (в порядке выполнения).
func (s Suggestion) Kinds() []ledger.Kind {
	switch s {
	case SuggestComment:
		return []ledger.Kind{ledger.KindComment}
	case SuggestBoth:
		return []ledger.Kind{ledger.KindComment, ledger.KindVote}
	}
	return []ledger.Kind{ledger.KindVote}
}

// Status — статус возможности.
type Status string

const (
	StatusNew       Status = "new"
	StatusActed     Status = "acted"
	StatusDismissed Status = "dismissed"
)

// AlertType — назначение алерта (только для отображения).
type AlertType string

const (
	AlertKeyword        AlertType = "keyword"
	AlertTrending       AlertType = "trending"
	AlertLowCompetition AlertType = "low_competition"
)

// Alert — критерии поиска, заданные пользователем.
type Alert struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Name            string       `json:"name"`
	Type            AlertType    `json:"type"`
	Keywords        []string     `json:"keywords"`
	ExcludeKeywords []string     `json:"exclude_keywords"`
	Communities     []string     `json:"communities"`
	MinPopularity   int          `json:"min_popularity"` // 0: без порога
	MaxAgeHours     float64      `json:"max_age_hours"`  // 0: без порога
	ActionTypes     []Suggestion `json:"action_types"`   // Пусто: любые
	Active          bool         `json:"active"`
	CreatedAt       time.Time    `json:"created_at"`
	LastTriggered   *time.Time   `json:"last_triggered,omitempty"`
}

// Allows проверяет фильтр типов действий алерта.
func (a *Alert) Allows(s Suggestion) bool {
	if len(a.ActionTypes) == 0 {
		return true
	}
	for _, t := range a.ActionTypes {
		if t == s {
			return true
		}
	}
	return false
}

// AlertInput — данные для создания алерта.
type AlertInput struct {
	Name            string    `json:"name"`
	Type            AlertType `json:"type"`
	Keywords        []string  `json:"keywords"`
	ExcludeKeywords []string  `json:"exclude_keywords"`
	Communities     []string  `json:"communities"`
	MinPopularity   int       `json:"min_popularity"`
	MaxAgeHours     float64   `json:"max_age_hours"`
	ActionTypes     []string  `json:"action_types"`
}

// Item — пост, полученный от платформы.
type Item struct {
	ID         string
	Title      string
	Body       string
	Community  string
	Popularity int // Рейтинг (upvotes)
	Comments   int
	CreatedAt  time.Time
	Permalink  string
}

// SearchQuery — запрос к платформе.
type SearchQuery struct {
	Keywords  []string
	Community string
	Sort      string // Например, "new"
	Limit     int
}

// Opportunity — оценённый кандидат.
type Opportunity struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	AlertID         string     `json:"alert_id"`
	ItemID          string     `json:"item_id"`
	Title           string     `json:"title"`
	URL             string     `json:"url"`
	Community       string     `json:"community"`
	Popularity      int        `json:"popularity"`
	Comments        int        `json:"comments"`
	AgeHours        float64    `json:"age_hours"`
	MatchedKeywords []string   `json:"matched_keywords"`
	Score           int        `json:"score"`
	Suggestion      Suggestion `json:"suggestion"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// OpportunityID — детерминированный идентификатор: один пост у одного пользователя — одна запись.
func OpportunityID(userID, itemID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(userID+"/"+itemID)).String()
}
