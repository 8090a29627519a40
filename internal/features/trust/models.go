// Package trust — models.go описывает состояние доверия пользователя и результаты оценки.
package trust

import "time"

// UserTrustState — текущий уровень пользователя. Создаётся лениво на уровне 1.
type UserTrustState struct {
	UserID     string    `db:"user_id"`
	Level      int       `db:"current_level"`
	AssignedAt time.Time `db:"level_up_date"`
	Points     int64     `db:"total_points_earned"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Stats — показатели пользователя, с которыми сравниваются требования.
type Stats struct {
	AccountAgeDays    int     `json:"account_age_days"`
	TotalKarma        int     `json:"total_karma"`
	SuccessfulActions int     `json:"successful_actions"`
	SuccessRate       float64 `json:"success_rate"`
	RecentWarnings    int     `json:"recent_warnings"`
}

// RequirementProgress — прогресс по одному требованию.
type RequirementProgress struct {
	Current  float64 `json:"current"`
	Required float64 `json:"required"`
	Met      bool    `json:"met"`
}

// Progress — прогресс по всем пяти требованиям следующего уровня.
type Progress struct {
	AccountAge        RequirementProgress `json:"account_age"`
	Karma             RequirementProgress `json:"karma"`
	SuccessfulActions RequirementProgress `json:"successful_actions"`
	SuccessRate       RequirementProgress `json:"success_rate"`
	Warnings          RequirementProgress `json:"warnings"`
}

func (p Progress) all() []RequirementProgress {
	return []RequirementProgress{p.AccountAge, p.Karma, p.SuccessfulActions, p.SuccessRate, p.Warnings}
}

// MetCount возвращает число выполненных требований.
func (p Progress) MetCount() int {
	n := 0
	for _, r := range p.all() {
		if r.Met {
			n++
		}
	}
	return n
}

// Evaluation — результат оценки пользователя.
// OverallProgress — только для отображения; переход требует выполнения ВСЕХ требований.
type Evaluation struct {
	Current         Tier     `json:"current_tier"`
	Next            *Tier    `json:"next_tier,omitempty"`
	Stats           Stats    `json:"stats"`
	Progress        Progress `json:"progress"`
	OverallProgress float64  `json:"overall_progress"`
	Eligible        bool     `json:"eligible"`
}

// Advancement — результат попытки повышения.
type Advancement struct {
	Advanced bool  `json:"advanced"`
	NewTier  *Tier `json:"new_tier,omitempty"`
}
