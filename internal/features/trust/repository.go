// Package trust — repository.go выполняет операции с таблицей user_trust_levels.
package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/engagement-guard/internal/common"
)

// Repository работает с таблицей user_trust_levels.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий уровней доверия.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает состояние доверия или common.ErrTrustStateNotFound.
func (r *Repository) Get(ctx context.Context, userID string) (*UserTrustState, error) {
	query := `
		SELECT user_id, current_level, level_up_date, total_points_earned, updated_at
		FROM user_trust_levels WHERE user_id = $1
	`
	var s UserTrustState
	err := r.db.QueryRow(ctx, query, userID).Scan(&s.UserID, &s.Level, &s.AssignedAt, &s.Points, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTrustStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения уровня доверия: %w", err)
	}
	return &s, nil
}

// Create создаёт запись, если её нет.
func (r *Repository) Create(ctx context.Context, userID string, level int, at time.Time) error {
	query := `
		INSERT INTO user_trust_levels (user_id, current_level, level_up_date, total_points_earned, updated_at)
		VALUES ($1, $2, $3, 0, $3)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID, level, at)
	return err
}

// SetLevel меняет уровень атомарно: только если текущий уровень равен from.
func (r *Repository) SetLevel(ctx context.Context, userID string, from, to int, at time.Time) (bool, error) {
	query := `
		UPDATE user_trust_levels
		SET current_level = $3, level_up_date = $4, updated_at = $4
		WHERE user_id = $1 AND current_level = $2
	`
	tag, err := r.db.Exec(ctx, query, userID, from, to, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AddPoints прибавляет очки и возвращает новую сумму.
func (r *Repository) AddPoints(ctx context.Context, userID string, points int64) (int64, error) {
	query := `
		UPDATE user_trust_levels
		SET total_points_earned = total_points_earned + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING total_points_earned
	`
	var total int64
	err := r.db.QueryRow(ctx, query, userID, points).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrTrustStateNotFound
	}
	return total, err
}
