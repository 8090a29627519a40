// Package jobs управляет фоновыми задачами (cron): продвижение по уровням доверия,
// плановое сканирование возможностей и снятие истёкших пауз.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/engagement-guard/internal/features/opportunity"
	"serotonyl.ru/engagement-guard/internal/features/trust"
)

// UserLister перечисляет пользователей с привязанным аккаунтом.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// TrustAdvancer пробует повысить уровень доверия.
type TrustAdvancer interface {
	AdvanceIfEligible(ctx context.Context, userID string) (*trust.Advancement, error)
}

// Scanner — сканер возможностей.
type Scanner interface {
	UsersToScan(ctx context.Context) ([]string, error)
	Scan(ctx context.Context, userID string) ([]opportunity.Opportunity, error)
}

// PauseSweeper снимает истёкшие паузы.
type PauseSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Specs — расписания задач в формате cron.
type Specs struct {
	Trust      string
	Scan       string
	PauseSweep string
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron        *cron.Cron
	specs       Specs
	concurrency int

	users  UserLister
	trust  TrustAdvancer
	scan   Scanner
	pauses PauseSweeper
}

// NewScheduler создаёт планировщик в часовом поясе приложения.
// concurrency ограничивает число пользователей, обрабатываемых параллельно.
func NewScheduler(loc *time.Location, specs Specs, concurrency int, users UserLister, trustEngine TrustAdvancer, scanner Scanner, pauses PauseSweeper) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		specs:       specs,
		concurrency: concurrency,
		users:       users,
		trust:       trustEngine,
		scan:        scanner,
		pauses:      pauses,
	}
}

// Start регистрирует задачи и запускает cron. Неверное расписание возвращается ошибкой.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"trust", s.specs.Trust, s.AdvanceTrust},
		{"scan", s.specs.Scan, s.ScanOpportunities},
		{"pause_sweep", s.specs.PauseSweep, s.SweepPauses},
	}

	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		_, err := s.cron.AddFunc(j.spec, func() {
			logger := log.WithField("job", j.name)
			logger.Debug("[CRON] Запуск")
			if err := j.run(ctx); err != nil {
				logger.WithError(err).Error("[CRON] Задача завершилась с ошибкой")
			}
		})
		if err != nil {
			return fmt.Errorf("расписание %s (%q): %w", j.name, j.spec, err)
		}
	}

	s.cron.Start()
	log.Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("Планировщик задач остановлен")
}

// AdvanceTrust проверяет всех пользователей на повышение уровня.
func (s *Scheduler) AdvanceTrust(ctx context.Context) error {
	users, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("список пользователей: %w", err)
	}

	var promoted atomic.Int64
	s.forEach(ctx, users, func(ctx context.Context, userID string) error {
		adv, err := s.trust.AdvanceIfEligible(ctx, userID)
		if err != nil {
			return err
		}
		if adv.Advanced {
			promoted.Add(1)
		}
		return nil
	})
	log.WithField("users", len(users)).Infof("[CRON] Повышено уровней: %d", promoted.Load())
	return nil
}

// ScanOpportunities сканирует возможности всех пользователей с активными алертами.
func (s *Scheduler) ScanOpportunities(ctx context.Context) error {
	users, err := s.scan.UsersToScan(ctx)
	if err != nil {
		return fmt.Errorf("список пользователей для сканирования: %w", err)
	}
	s.forEach(ctx, users, func(ctx context.Context, userID string) error {
		_, err := s.scan.Scan(ctx, userID)
		return err
	})
	return nil
}

// SweepPauses снимает истёкшие паузы.
func (s *Scheduler) SweepPauses(ctx context.Context) error {
	n, err := s.pauses.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Infof("[CRON] Снято истёкших пауз: %d", n)
	}
	return nil
}

// forEach обрабатывает пользователей параллельно, не больше concurrency одновременно.
// Ошибка одного пользователя логируется и не останавливает остальных.
func (s *Scheduler) forEach(ctx context.Context, users []string, fn func(ctx context.Context, userID string) error) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := fn(ctx, userID); err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("[CRON] Ошибка обработки пользователя")
			}
			return nil
		})
	}
	_ = g.Wait()
}
