// Package accounts — аккаунт пользователя на внешней платформе.
// Аккаунты пишет внешний синхронизатор через PUT /users/{userID}/account.
package accounts

import (
	"time"

	"serotonyl.ru/engagement-guard/internal/common"
)

// Account — аккаунт пользователя на платформе.
type Account struct {
	UserID       string    `db:"user_id" json:"user_id"`             // Идентификатор пользователя в нашей системе
	Username     string    `db:"username" json:"username"`           // Имя на платформе
	CreatedAt    time.Time `db:"created_at" json:"created_at"`       // Когда аккаунт создан на платформе (отсюда возраст)
	CommentKarma int       `db:"comment_karma" json:"comment_karma"` // Карма за комментарии
	LinkKarma    int       `db:"link_karma" json:"link_karma"`       // Карма за посты
	Verified     bool      `db:"verified" json:"verified"`           // Подтверждённая почта
	SyncedAt     time.Time `db:"synced_at" json:"synced_at"`         // Последняя синхронизация
}

// TotalKarma возвращает суммарную карму.
func (a *Account) TotalKarma() int {
	return a.CommentKarma + a.LinkKarma
}

// AgeDays возвращает возраст аккаунта в полных сутках на момент now.
func (a *Account) AgeDays(now time.Time) int {
	return common.DaysBetween(a.CreatedAt, now)
}
