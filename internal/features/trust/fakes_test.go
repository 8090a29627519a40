package trust

import (
	"context"
	"sync"
	"time"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/safetylog"
)

type fakeStates struct {
	mu     sync.Mutex
	states map[string]UserTrustState
}

func newFakeStates() *fakeStates {
	return &fakeStates{states: make(map[string]UserTrustState)}
}

func (f *fakeStates) Get(_ context.Context, userID string) (*UserTrustState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[userID]
	if !ok {
		return nil, common.ErrTrustStateNotFound
	}
	return &s, nil
}

func (f *fakeStates) Create(_ context.Context, userID string, level int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[userID]; !ok {
		f.states[userID] = UserTrustState{UserID: userID, Level: level, AssignedAt: at, UpdatedAt: at}
	}
	return nil
}

func (f *fakeStates) SetLevel(_ context.Context, userID string, from, to int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[userID]
	if !ok || s.Level != from {
		return false, nil
	}
	s.Level, s.AssignedAt, s.UpdatedAt = to, at, at
	f.states[userID] = s
	return true, nil
}

func (f *fakeStates) AddPoints(_ context.Context, userID string, points int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[userID]
	if !ok {
		return 0, common.ErrTrustStateNotFound
	}
	s.Points += points
	f.states[userID] = s
	return s.Points, nil
}

type fakeAccounts map[string]*accounts.Account

func (f fakeAccounts) Get(_ context.Context, userID string) (*accounts.Account, error) {
	a, ok := f[userID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return a, nil
}

type fakeTotals struct{ completed, total int }

func (f fakeTotals) Totals(context.Context, string) (int, int, error) {
	return f.completed, f.total, nil
}

type fakeEvents struct {
	mu       sync.Mutex
	logged   []*safetylog.Event
	warnings int
}

func (f *fakeEvents) Log(_ context.Context, ev *safetylog.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, ev)
	return nil
}

func (f *fakeEvents) CountSince(_ context.Context, _ string, kind safetylog.Kind, _ time.Time) (int, error) {
	if kind == safetylog.KindWarning {
		return f.warnings, nil
	}
	return 0, nil
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
