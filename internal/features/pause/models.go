// Package pause — приостановка активности пользователя с автоматическим снятием.
// Пауза проверяется первой в цепочке допуска действия.
package pause

import "time"

// State — хранимое состояние паузы.
type State struct {
	UserID    string    `db:"user_id"`
	Paused    bool      `db:"is_paused"`
	Reason    string    `db:"pause_reason"`
	ResumeAt  time.Time `db:"paused_until"` // Нулевое время, если паузы нет
	UpdatedAt time.Time `db:"updated_at"`
}

// Status — ответ на вопрос «стоит ли пользователь на паузе».
type Status struct {
	Paused   bool       `json:"paused"`
	Reason   string     `json:"reason,omitempty"`
	ResumeAt *time.Time `json:"resume_at,omitempty"`
}

// Resolve — чистый переход состояния паузы на момент now.
// Если пауза истекла (now >= ResumeAt), возвращает снятое состояние и expired=true.
func Resolve(st State, now time.Time) (next State, expired bool) {
	if !st.Paused {
		return st, false
	}
	if now.Before(st.ResumeAt) {
		return st, false
	}
	return State{UserID: st.UserID, UpdatedAt: now}, true
}

// StatusOf переводит состояние в ответ API.
func StatusOf(st State) Status {
	if !st.Paused {
		return Status{}
	}
	resumeAt := st.ResumeAt
	return Status{Paused: true, Reason: st.Reason, ResumeAt: &resumeAt}
}
