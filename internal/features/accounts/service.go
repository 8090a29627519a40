// Package accounts — service.go принимает снимки аккаунтов от синхронизатора.
package accounts

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/engagement-guard/internal/common"
)

// Store хранит аккаунты.
type Store interface {
	Get(ctx context.Context, userID string) (*Account, error)
	Upsert(ctx context.Context, a *Account) error
}

// SyncInput — снимок аккаунта с платформы.
type SyncInput struct {
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	CommentKarma int       `json:"comment_karma"`
	LinkKarma    int       `json:"link_karma"`
	Verified     bool      `json:"verified"`
}

// Service проверяет и сохраняет снимки аккаунтов.
type Service struct {
	store   Store
	now     common.Clock
	timeout time.Duration
}

// NewService создаёт сервис аккаунтов.
func NewService(store Store, now common.Clock, timeout time.Duration) *Service {
	return &Service{store: store, now: now, timeout: timeout}
}

// Sync сохраняет снимок аккаунта. Дата создания не может быть в будущем, карма не отрицательна.
func (s *Service) Sync(ctx context.Context, userID string, in SyncInput) (*Account, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	now := s.now()
	switch {
	case in.Username == "":
		return nil, fmt.Errorf("%w: пустое имя", common.ErrInvalidAccount)
	case in.CreatedAt.IsZero() || in.CreatedAt.After(now):
		return nil, fmt.Errorf("%w: дата создания", common.ErrInvalidAccount)
	case in.CommentKarma < 0 || in.LinkKarma < 0:
		return nil, fmt.Errorf("%w: отрицательная карма", common.ErrInvalidAccount)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a := &Account{
		UserID:       userID,
		Username:     in.Username,
		CreatedAt:    in.CreatedAt.UTC(),
		CommentKarma: in.CommentKarma,
		LinkKarma:    in.LinkKarma,
		Verified:     in.Verified,
		SyncedAt:     now,
	}
	if err := s.store.Upsert(ctx, a); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"age_days": a.AgeDays(now),
		"karma":    a.TotalKarma(),
	}).Info("Аккаунт синхронизирован")
	return a, nil
}

// Get возвращает аккаунт пользователя.
func (s *Service) Get(ctx context.Context, userID string) (*Account, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Get(ctx, userID)
}
