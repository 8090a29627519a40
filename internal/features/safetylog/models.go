// Package safetylog — журнал событий безопасности: предупреждения,
// аномалии, паузы, повышения уровня доверия.
package safetylog

import (
	"time"

	"github.com/google/uuid"
)

// Kind — тип события.
type Kind string

const (
	KindWarning        Kind = "warning"         // Явное предупреждение (учитывается в здоровье и доверии)
	KindAnomaly        Kind = "anomaly"         // Сработал детектор аномалий
	KindActivityPaused Kind = "activity_paused" // Активность поставлена на паузу
	KindLevelUp        Kind = "level_up"        // Повышение уровня доверия
	KindPointsAwarded  Kind = "points_awarded"  // Начислены очки доверия
)

// WarningsWindow — за какой период учитываются предупреждения.
const WarningsWindow = 30 * 24 * time.Hour

// Event — запись журнала безопасности.
type Event struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Kind      Kind           `db:"kind"`
	Details   map[string]any `db:"details"` // JSONB
	CreatedAt time.Time      `db:"created_at"`
}

// NewEvent создаёт событие с новым идентификатором.
func NewEvent(userID string, kind Kind, at time.Time, details map[string]any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Details:   details,
		CreatedAt: at,
	}
}
