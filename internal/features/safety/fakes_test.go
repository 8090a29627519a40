package safety

import (
	"context"
	"errors"
	"sync"
	"time"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
	"serotonyl.ru/engagement-guard/internal/features/pause"
	"serotonyl.ru/engagement-guard/internal/features/safetylog"
	"serotonyl.ru/engagement-guard/internal/features/trust"
)

var errStoreDown = errors.New("хранилище недоступно")

type fakeActions struct {
	mu      sync.Mutex
	records []ledger.ActionRecord
	err     error
	reads   int
}

func (f *fakeActions) ListActions(_ context.Context, _ string, since time.Time) ([]ledger.ActionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return ledger.Since(f.records, since), nil
}

func (f *fakeActions) Append(_ context.Context, a *ledger.ActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append([]ledger.ActionRecord{*a}, f.records...)
	return nil
}

func (f *fakeActions) UpdateOutcome(_ context.Context, id string, outcome ledger.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID != id {
			continue
		}
		if !f.records[i].Outcome.CanTransition(outcome) {
			return common.ErrInvalidOutcomeTransition
		}
		f.records[i].Outcome = outcome
		return nil
	}
	return common.ErrActionNotFound
}

type fakeAccounts struct {
	acc *accounts.Account
	err error
}

func (f fakeAccounts) Get(context.Context, string) (*accounts.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.acc == nil {
		return nil, common.ErrAccountNotFound
	}
	return f.acc, nil
}

type fakeTiers struct {
	tier trust.Tier
	err  error
}

func (f fakeTiers) CurrentTier(context.Context, string) (trust.Tier, error) {
	return f.tier, f.err
}

type fakeEvents struct {
	mu       sync.Mutex
	logged   []*safetylog.Event
	warnings int
	err      error
}

func (f *fakeEvents) Log(_ context.Context, ev *safetylog.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, ev)
	return nil
}

func (f *fakeEvents) CountSince(_ context.Context, _ string, kind safetylog.Kind, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	if kind == safetylog.KindWarning {
		n = f.warnings
	}
	for _, ev := range f.logged {
		if ev.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (f *fakeEvents) kinds() []safetylog.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]safetylog.Kind, 0, len(f.logged))
	for _, ev := range f.logged {
		out = append(out, ev.Kind)
	}
	return out
}

type fakePauses struct {
	status pause.Status
	err    error
	paused []string // Причины постановленных пауз
}

func (f *fakePauses) IsPaused(context.Context, string) (pause.Status, error) {
	return f.status, f.err
}

func (f *fakePauses) Pause(_ context.Context, _ string, reason string, minutes int) (pause.Status, error) {
	resumeAt := now.Add(time.Duration(minutes) * time.Minute)
	f.status = pause.Status{Paused: true, Reason: reason, ResumeAt: &resumeAt}
	f.paused = append(f.paused, reason)
	return f.status, nil
}
