// Package ledger — repository.go выполняет операции с таблицей action_ledger.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/engagement-guard/internal/common"
)

// Repository работает с таблицей action_ledger.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий журнала.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListActions возвращает действия пользователя новее since, новые первыми.
func (r *Repository) ListActions(ctx context.Context, userID string, since time.Time) ([]ActionRecord, error) {
	query := `
		SELECT id, user_id, kind, target_ref, community, outcome, risk_score, created_at, updated_at
		FROM action_ledger
		WHERE user_id = $1 AND created_at > $2
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var a ActionRecord
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Kind, &a.TargetRef, &a.Community,
			&a.Outcome, &a.RiskScore, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения записи журнала: %w", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

// Append добавляет запись в журнал.
func (r *Repository) Append(ctx context.Context, a *ActionRecord) error {
	query := `
		INSERT INTO action_ledger (id, user_id, kind, target_ref, community, outcome, risk_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := r.db.Exec(ctx, query,
		a.ID, a.UserID, a.Kind, a.TargetRef, a.Community, a.Outcome, a.RiskScore, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return nil
}

// UpdateOutcome переводит действие из pending в completed|failed.
// Повторный переход запрещён: условие outcome = 'pending' в WHERE.
func (r *Repository) UpdateOutcome(ctx context.Context, id string, outcome Outcome) error {
	if !OutcomePending.CanTransition(outcome) {
		return common.ErrInvalidOutcomeTransition
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE action_ledger SET outcome = $2, updated_at = NOW()
		WHERE id = $1 AND outcome = 'pending'
	`, id, outcome)
	if err != nil {
		return fmt.Errorf("ошибка обновления исхода: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Ничего не обновили: либо записи нет, либо исход уже финальный
	var exists bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM action_ledger WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки действия: %w", err)
	}
	if !exists {
		return common.ErrActionNotFound
	}
	return common.ErrInvalidOutcomeTransition
}

// Totals возвращает число успешных и всех действий пользователя за всё время.
func (r *Repository) Totals(ctx context.Context, userID string) (completed, total int, err error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE outcome = 'completed'), COUNT(*)
		FROM action_ledger WHERE user_id = $1
	`
	err = r.db.QueryRow(ctx, query, userID).Scan(&completed, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчёта действий: %w", err)
	}
	return completed, total, nil
}
