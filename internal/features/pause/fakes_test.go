package pause

import (
	"context"
	"sync"
	"time"

	"serotonyl.ru/engagement-guard/internal/features/safetylog"
)

type memStore struct {
	mu     sync.Mutex
	states map[string]State
	saves  int
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]State)}
}

func (m *memStore) Get(_ context.Context, userID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *memStore) Save(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.states[st.UserID] = st
	return nil
}

func (m *memStore) ClearExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, st := range m.states {
		if next, expired := Resolve(st, now); expired {
			m.states[id] = next
			n++
		}
	}
	return n, nil
}

type recEvents struct {
	mu     sync.Mutex
	logged []*safetylog.Event
}

func (r *recEvents) Log(_ context.Context, ev *safetylog.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logged = append(r.logged, ev)
	return nil
}
