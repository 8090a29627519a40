// Package opportunity — service.go сканирует платформу по активным алертам
// пользователя и управляет жизненным циклом найденных возможностей.
package opportunity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/trust"
	"serotonyl.ru/engagement-guard/internal/metrics"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Searcher ищет посты на платформе.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]Item, error)
}

// Store хранит алерты и возможности.
type Store interface {
	CreateAlert(ctx context.Context, a *Alert) error
	ListAlerts(ctx context.Context, userID string) ([]Alert, error)
	ListActiveAlerts(ctx context.Context, userID string) ([]Alert, error)
	TouchAlerts(ctx context.Context, alertIDs []string, at time.Time) error
	// Upsert перезаписывает данные существующей возможности, статус и дата создания сохраняются.
	// Возвращает сохранённый статус по id.
	Upsert(ctx context.Context, ops []Opportunity) (map[string]Status, error)
	ListNew(ctx context.Context, userID string, limit int) ([]Opportunity, error)
	// SetStatus переводит возможность пользователя из new в to. Для чужой возможности
	// или статуса не new возвращает ErrOpportunityNotFound.
	SetStatus(ctx context.Context, userID, id string, to Status, at time.Time) error
	UsersWithActiveAlerts(ctx context.Context) ([]string, error)
}

// FeatureGate проверяет доступ к функциям по уровню доверия.
type FeatureGate interface {
	HasFeature(ctx context.Context, userID, feature string) (bool, error)
	// RequiredTier — самый низкий уровень, открывающий функцию.
	RequiredTier(feature string) (trust.Tier, bool)
}

// Options — параметры сканера.
type Options struct {
	SearchLimit int           // Сколько постов запрашивать на сообщество
	TopN        int           // Сколько лучших возможностей оставлять
	Pacing      time.Duration // Пауза между запросами к платформе
	Timeout     time.Duration // Таймаут операций с хранилищем
}

// Service — сканер возможностей.
type Service struct {
	store    Store
	search   Searcher
	features FeatureGate
	pacer    *rate.Limiter
	opts     Options
	now      common.Clock
}

// NewService создаёт сканер.
func NewService(store Store, search Searcher, features FeatureGate, opts Options, now common.Clock) *Service {
	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}
	return &Service{
		store:    store,
		search:   search,
		features: features,
		pacer:    rate.NewLimiter(limit, 1),
		opts:     opts,
		now:      now,
	}
}

// Scan обходит активные алерты пользователя и возвращает лучшие возможности.
//
// Алгоритм:
//  1. Для каждого алерта и каждого его сообщества: запрос к платформе
//     (запросы идут последовательно, с паузой между ними)
//  2. Ошибка одного сообщества логируется и пропускается
//  3. Кандидаты всех алертов объединяются, дубликаты по посту убираются (первый выигрывает)
//  4. Сортировка по убыванию балла, остаются TopN, сохраняются в хранилище
//  5. В ответ попадают только возможности, которые в хранилище всё ещё new
func (s *Service) Scan(ctx context.Context, userID string) ([]Opportunity, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	logger := log.WithField("user_id", userID)

	var alerts []Alert
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		alerts, err = s.store.ListActiveAlerts(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения алертов: %w", err)
	}
	if len(alerts) == 0 {
		return []Opportunity{}, nil
	}

	var candidates []Opportunity
	var triggered []string
	for i := range alerts {
		alert := &alerts[i]
		found, err := s.scanAlert(ctx, logger, alert)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			triggered = append(triggered, alert.ID)
			candidates = append(candidates, found...)
		}
	}

	ranked := Rank(Deduplicate(candidates), s.opts.TopN)
	metrics.ScanOpportunities.Observe(float64(len(ranked)))

	var stored map[string]Status
	err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
		if stored, err = s.store.Upsert(ctx, ranked); err != nil {
			return fmt.Errorf("ошибка сохранения возможностей: %w", err)
		}
		if len(triggered) > 0 {
			if err := s.store.TouchAlerts(ctx, triggered, s.now()); err != nil {
				return fmt.Errorf("ошибка обновления алертов: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fresh := make([]Opportunity, 0, len(ranked))
	for _, op := range ranked {
		if stored[op.ID] == StatusNew {
			fresh = append(fresh, op)
		}
	}

	logger.WithFields(log.Fields{
		"alerts":     len(alerts),
		"candidates": len(candidates),
		"kept":       len(ranked),
		"fresh":      len(fresh),
	}).Info("Сканирование возможностей завершено")
	return fresh, nil
}

// scanAlert обходит сообщества одного алерта. Ошибку возвращает только при отмене контекста.
func (s *Service) scanAlert(ctx context.Context, logger *log.Entry, alert *Alert) ([]Opportunity, error) {
	var found []Opportunity
	for _, community := range alert.Communities {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("сканирование прервано: %w", err)
		}

		items, err := s.search.Search(ctx, SearchQuery{
			Keywords:  alert.Keywords,
			Community: community,
			Sort:      "new",
			Limit:     s.opts.SearchLimit,
		})
		if err != nil {
			metrics.ScanFetchErrors.Inc()
			logger.WithError(err).WithFields(log.Fields{
				"alert_id":  alert.ID,
				"community": community,
			}).Warn("Ошибка запроса к платформе, сообщество пропущено")
			continue
		}

		now := s.now()
		for _, item := range items {
			if op, ok := Evaluate(alert, item, now); ok {
				found = append(found, op)
			}
		}
	}
	return found, nil
}

// CreateAlert создаёт алерт. Нужна функция opportunity_alerts на уровне доверия.
func (s *Service) CreateAlert(ctx context.Context, userID string, in AlertInput) (*Alert, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	alert, err := buildAlert(userID, in, s.now())
	if err != nil {
		return nil, err
	}

	ok, err := s.features.HasFeature(ctx, userID, trust.FeatureOpportunityAlerts)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки доступа: %w", err)
	}
	if !ok {
		if tier, found := s.features.RequiredTier(trust.FeatureOpportunityAlerts); found {
			return nil, fmt.Errorf("%w: нужен уровень %s", common.ErrFeatureLocked, tier.Name)
		}
		return nil, common.ErrFeatureLocked
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.CreateAlert(ctx, alert)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания алерта: %w", err)
	}

	log.WithFields(log.Fields{"user_id": userID, "alert_id": alert.ID, "name": alert.Name}).Info("Создан алерт")
	return alert, nil
}

func buildAlert(userID string, in AlertInput, now time.Time) (*Alert, error) {
	a := &Alert{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            strings.TrimSpace(in.Name),
		Type:            in.Type,
		Keywords:        common.NormalizeList(in.Keywords),
		ExcludeKeywords: common.NormalizeList(in.ExcludeKeywords),
		Communities:     common.NormalizeList(in.Communities),
		MinPopularity:   max(in.MinPopularity, 0),
		MaxAgeHours:     max(in.MaxAgeHours, 0),
		Active:          true,
		CreatedAt:       now,
	}
	if a.Name == "" {
		return nil, common.ErrEmptyAlertName
	}
	if len(a.Keywords) == 0 {
		return nil, common.ErrEmptyKeywords
	}
	if len(a.Communities) == 0 {
		return nil, common.ErrEmptyCommunities
	}
	if a.Type == "" {
		a.Type = AlertKeyword
	}
	for _, t := range common.NormalizeList(in.ActionTypes) {
		sg, err := ParseSuggestion(t)
		if err != nil {
			return nil, err
		}
		a.ActionTypes = append(a.ActionTypes, sg)
	}
	return a, nil
}

// ListAlerts возвращает все алерты пользователя.
func (s *Service) ListAlerts(ctx context.Context, userID string) ([]Alert, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	var alerts []Alert
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		alerts, err = s.store.ListAlerts(ctx, userID)
		return err
	})
	return alerts, err
}

// ListNew возвращает необработанные возможности по убыванию балла.
func (s *Service) ListNew(ctx context.Context, userID string, limit int) ([]Opportunity, error) {
	if userID == "" {
		return nil, common.ErrEmptyUserID
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	var ops []Opportunity
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		ops, err = s.store.ListNew(ctx, userID, limit)
		return err
	})
	return ops, err
}

// MarkActed отмечает, что пользователь отреагировал на свою возможность.
func (s *Service) MarkActed(ctx context.Context, userID, id string) error {
	return s.setStatus(ctx, userID, id, StatusActed)
}

// Dismiss скрывает возможность пользователя.
func (s *Service) Dismiss(ctx context.Context, userID, id string) error {
	return s.setStatus(ctx, userID, id, StatusDismissed)
}

func (s *Service) setStatus(ctx context.Context, userID, id string, to Status) error {
	if userID == "" {
		return common.ErrEmptyUserID
	}
	if id == "" {
		return common.ErrOpportunityNotFound
	}
	return s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.SetStatus(ctx, userID, id, to, s.now())
	})
}

// UsersToScan возвращает пользователей с активными алертами.
func (s *Service) UsersToScan(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		ids, err = s.store.UsersWithActiveAlerts(ctx)
		return err
	})
	return ids, err
}

func (s *Service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.opts.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return fn(ctx)
}
