// Package ledger — журнал попыток действий пользователя (append-only).
// models.go описывает запись журнала, типы действий и исходы.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"serotonyl.ru/engagement-guard/internal/common"
)

// Kind — тип действия. Закрытый список.
type Kind string

const (
	KindVote    Kind = "vote"
	KindComment Kind = "comment"
	KindJoin    Kind = "join"
)

// Kinds — все допустимые типы действий.
var Kinds = []Kind{KindVote, KindComment, KindJoin}

// ParseKind разбирает тип действия. Регистр не важен.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownActionKind, s)
}

// Outcome — исход действия.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// ParseOutcome разбирает исход действия.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomePending, OutcomeCompleted, OutcomeFailed:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownOutcome, s)
}

// CanTransition — единственный разрешённый переход: pending → completed|failed.
func (o Outcome) CanTransition(to Outcome) bool {
	return o == OutcomePending && (to == OutcomeCompleted || to == OutcomeFailed)
}

// ActionRecord — запись журнала. После записи меняются только Outcome и RiskScore,
// и только один раз (из pending).
type ActionRecord struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Kind      Kind      `db:"kind"`
	TargetRef string    `db:"target_ref"`
	Community string    `db:"community"` // Может быть пустым
	Outcome   Outcome   `db:"outcome"`
	RiskScore float64   `db:"risk_score"` // 0..1
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
