// Package safetylog — repository.go выполняет операции с таблицей safety_logs.
package safetylog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей safety_logs.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий журнала безопасности.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Log записывает событие.
func (r *Repository) Log(ctx context.Context, ev *Event) error {
	query := `INSERT INTO safety_logs (id, user_id, kind, details, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, query, ev.ID, ev.UserID, ev.Kind, ev.Details, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи события безопасности: %w", err)
	}
	return nil
}

// CountSince возвращает число событий данного типа новее since.
func (r *Repository) CountSince(ctx context.Context, userID string, kind Kind, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM safety_logs WHERE user_id = $1 AND kind = $2 AND created_at >= $3`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, kind, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта событий: %w", err)
	}
	return count, nil
}
