// Package pause — repository.go хранит паузы в таблице user_safety_status.
package pause

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей user_safety_status.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий пауз.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает состояние паузы или nil.
func (r *Repository) Get(ctx context.Context, userID string) (*State, error) {
	query := `
		SELECT user_id, is_paused, pause_reason, paused_until, updated_at
		FROM user_safety_status WHERE user_id = $1
	`
	var st State
	var until *time.Time
	err := r.db.QueryRow(ctx, query, userID).Scan(&st.UserID, &st.Paused, &st.Reason, &until, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if until != nil {
		st.ResumeAt = *until
	}
	return &st, nil
}

const saveQuery = `
	INSERT INTO user_safety_status (user_id, is_paused, pause_reason, paused_until, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id) DO UPDATE SET
		is_paused = EXCLUDED.is_paused,
		pause_reason = EXCLUDED.pause_reason,
		paused_until = EXCLUDED.paused_until,
		updated_at = EXCLUDED.updated_at
`

// Снятая пауза хранит пустую причину: pause_reason объявлен NOT NULL.
const clearExpiredQuery = `
	UPDATE user_safety_status
	SET is_paused = FALSE, pause_reason = '', paused_until = NULL, updated_at = $1
	WHERE is_paused = TRUE AND paused_until <= $1
`

// saveArgs готовит параметры saveQuery. У снятой паузы нет времени окончания и причины.
func saveArgs(st State) []any {
	var until *time.Time
	reason := ""
	if st.Paused {
		until = &st.ResumeAt
		reason = st.Reason
	}
	return []any{st.UserID, st.Paused, reason, until, st.UpdatedAt}
}

// Save сохраняет состояние (upsert).
func (r *Repository) Save(ctx context.Context, st State) error {
	if _, err := r.db.Exec(ctx, saveQuery, saveArgs(st)...); err != nil {
		return fmt.Errorf("ошибка сохранения паузы: %w", err)
	}
	return nil
}

// ClearExpired снимает истёкшие паузы.
func (r *Repository) ClearExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, clearExpiredQuery, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
