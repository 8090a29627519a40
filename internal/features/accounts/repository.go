// Package accounts — repository.go выполняет операции с таблицей platform_accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/engagement-guard/internal/common"
)

// Repository работает с таблицей platform_accounts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий аккаунтов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает аккаунт пользователя или common.ErrAccountNotFound.
func (r *Repository) Get(ctx context.Context, userID string) (*Account, error) {
	query := `
		SELECT user_id, username, created_at, comment_karma, link_karma, verified, synced_at
		FROM platform_accounts WHERE user_id = $1
	`
	var a Account
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&a.UserID, &a.Username, &a.CreatedAt, &a.CommentKarma,
		&a.LinkKarma, &a.Verified, &a.SyncedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения аккаунта: %w", err)
	}
	return &a, nil
}

// Upsert создаёт или обновляет аккаунт.
func (r *Repository) Upsert(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO platform_accounts (user_id, username, created_at, comment_karma, link_karma, verified, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			created_at = EXCLUDED.created_at,
			comment_karma = EXCLUDED.comment_karma,
			link_karma = EXCLUDED.link_karma,
			verified = EXCLUDED.verified,
			synced_at = EXCLUDED.synced_at
	`
	_, err := r.db.Exec(ctx, query, a.UserID, a.Username, a.CreatedAt, a.CommentKarma, a.LinkKarma, a.Verified, a.SyncedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения аккаунта: %w", err)
	}
	return nil
}

// ListUserIDs возвращает всех пользователей с привязанным аккаунтом.
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM platform_accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
