package opportunity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/trust"
)

type memStore struct {
	mu      sync.Mutex
	alerts  []Alert
	ops     map[string]Opportunity
	touched map[string]time.Time
}

func newMemStore(alerts ...Alert) *memStore {
	return &memStore{alerts: alerts, ops: make(map[string]Opportunity), touched: make(map[string]time.Time)}
}

func (m *memStore) CreateAlert(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *memStore) ListAlerts(_ context.Context, userID string) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Alert
	for _, a := range m.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveAlerts(ctx context.Context, userID string) ([]Alert, error) {
	all, _ := m.ListAlerts(ctx, userID)
	var out []Alert
	for _, a := range all {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) TouchAlerts(_ context.Context, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.touched[id] = at
	}
	return nil
}

func (m *memStore) Upsert(_ context.Context, ops []Opportunity) (map[string]Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make(map[string]Status, len(ops))
	for _, op := range ops {
		if prev, ok := m.ops[op.ID]; ok {
			op.Status, op.CreatedAt = prev.Status, prev.CreatedAt
		}
		m.ops[op.ID] = op
		stored[op.ID] = op.Status
	}
	return stored, nil
}

func (m *memStore) ListNew(_ context.Context, userID string, limit int) ([]Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Opportunity
	for _, op := range m.ops {
		if op.UserID == userID && op.Status == StatusNew {
			out = append(out, op)
		}
	}
	out = Rank(out, limit)
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, userID, id string, to Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok || op.UserID != userID || op.Status != StatusNew {
		return common.ErrOpportunityNotFound
	}
	op.Status, op.UpdatedAt = to, at
	m.ops[id] = op
	return nil
}

func (m *memStore) UsersWithActiveAlerts(context.Context) ([]string, error) {
	return []string{"u1"}, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	items   map[string][]Item
	failing map[string]bool
	queries []SearchQuery
}

func (f *fakeSearch) Search(_ context.Context, q SearchQuery) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.failing[q.Community] {
		return nil, errors.New("503 от платформы")
	}
	return f.items[q.Community], nil
}

type features bool

func (f features) HasFeature(context.Context, string, string) (bool, error) {
	return bool(f), nil
}

func (f features) RequiredTier(string) (trust.Tier, bool) {
	return trust.Tier{Level: 3, Name: "Veteran"}, true
}

func newScanner(store *memStore, search *fakeSearch, allowed bool) *Service {
	return NewService(store, search, features(allowed), Options{SearchLimit: 25, TopN: 50, Timeout: time.Second}, func() time.Time { return now })
}

func TestScanDeduplicatesAcrossAlerts(t *testing.T) {
	store := newMemStore(
		Alert{ID: "a1", UserID: "u1", Keywords: []string{"goroutine"}, Communities: []string{"golang"}, Active: true},
		Alert{ID: "a2", UserID: "u1", Keywords: []string{"goroutine", "leak"}, Communities: []string{"golang"}, Active: true},
	)
	search := &fakeSearch{items: map[string][]Item{
		"golang": {item("p1", 40, 1, time.Hour, "goroutine leak")},
	}}
	svc := newScanner(store, search, true)

	ops, err := svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "a1", ops[0].AlertID, "первое вхождение выигрывает")
	assert.Len(t, store.ops, 1)
	assert.Contains(t, store.touched, "a1")
	assert.Contains(t, store.touched, "a2")
}

func TestScanSkipsFailingCommunity(t *testing.T) {
	store := newMemStore(Alert{
		ID: "a1", UserID: "u1", Keywords: []string{"go"}, Communities: []string{"broken", "golang"}, Active: true,
	})
	search := &fakeSearch{
		items:   map[string][]Item{"golang": {item("p1", 40, 1, time.Hour, "go tips")}},
		failing: map[string]bool{"broken": true},
	}
	svc := newScanner(store, search, true)

	ops, err := svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Len(t, search.queries, 2)
	assert.Equal(t, 25, search.queries[1].Limit)
	assert.Equal(t, "new", search.queries[1].Sort)
}

func TestScanIgnoresInactiveAlerts(t *testing.T) {
	store := newMemStore(Alert{ID: "a1", UserID: "u1", Keywords: []string{"go"}, Communities: []string{"golang"}})
	search := &fakeSearch{}
	svc := newScanner(store, search, true)

	ops, err := svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Empty(t, search.queries)
}

func TestScanRanksAndTruncates(t *testing.T) {
	store := newMemStore(Alert{ID: "a1", UserID: "u1", Keywords: []string{"go"}, Communities: []string{"golang"}, Active: true})
	var items []Item
	for i := 0; i < 60; i++ {
		items = append(items, item(string(rune('A'+i)), 10+i, 3, time.Duration(i)*time.Hour, "go"))
	}
	svc := newScanner(store, &fakeSearch{items: map[string][]Item{"golang": items}}, true)

	ops, err := svc.Scan(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, ops, 50)
	for i := 1; i < len(ops); i++ {
		assert.GreaterOrEqual(t, ops[i-1].Score, ops[i].Score)
	}
}

func TestRescanKeepsStatus(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(Alert{ID: "a1", UserID: "u1", Keywords: []string{"go"}, Communities: []string{"golang"}, Active: true})
	search := &fakeSearch{items: map[string][]Item{"golang": {item("p1", 40, 1, time.Hour, "go")}}}
	svc := newScanner(store, search, true)

	ops, err := svc.Scan(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, svc.Dismiss(ctx, "u1", ops[0].ID))

	rescanned, err := svc.Scan(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rescanned, "скан не возвращает скрытую возможность")
	assert.Equal(t, StatusDismissed, store.ops[ops[0].ID].Status)

	fresh, err := svc.ListNew(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, fresh, "скрытая возможность не возвращается после повторного скана")

	assert.ErrorIs(t, svc.MarkActed(ctx, "u1", ops[0].ID), common.ErrOpportunityNotFound)
}

func TestRescanReturnsOnlyNew(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(Alert{ID: "a1", UserID: "u1", Keywords: []string{"go"}, Communities: []string{"golang"}, Active: true})
	search := &fakeSearch{items: map[string][]Item{"golang": {
		item("p1", 40, 1, time.Hour, "go"),
		item("p2", 80, 2, time.Hour, "go"),
	}}}
	svc := newScanner(store, search, true)

	ops, err := svc.Scan(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	acted := OpportunityID("u1", "p2")
	require.NoError(t, svc.MarkActed(ctx, "u1", acted))

	ops, err = svc.Scan(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "p1", ops[0].ItemID)
	assert.Equal(t, StatusNew, ops[0].Status)
}

func TestStatusChangeIsUserScoped(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(Alert{ID: "a1", UserID: "u1", Keywords: []string{"go"}, Communities: []string{"golang"}, Active: true})
	search := &fakeSearch{items: map[string][]Item{"golang": {item("p1", 40, 1, time.Hour, "go")}}}
	svc := newScanner(store, search, true)

	ops, err := svc.Scan(ctx, "u1")
	require.NoError(t, err)
	id := ops[0].ID

	assert.ErrorIs(t, svc.Dismiss(ctx, "u2", id), common.ErrOpportunityNotFound)
	assert.ErrorIs(t, svc.MarkActed(ctx, "u2", id), common.ErrOpportunityNotFound)
	assert.ErrorIs(t, svc.Dismiss(ctx, "", id), common.ErrEmptyUserID)
	assert.Equal(t, StatusNew, store.ops[id].Status, "чужой запрос не меняет статус")

	require.NoError(t, svc.MarkActed(ctx, "u1", id))
	assert.Equal(t, StatusActed, store.ops[id].Status)
}

func TestCreateAlertValidation(t *testing.T) {
	ctx := context.Background()
	svc := newScanner(newMemStore(), &fakeSearch{}, true)

	_, err := svc.CreateAlert(ctx, "u1", AlertInput{Name: "x", Keywords: []string{" ", ""}, Communities: []string{"golang"}})
	assert.ErrorIs(t, err, common.ErrEmptyKeywords)

	_, err = svc.CreateAlert(ctx, "u1", AlertInput{Name: "x", Keywords: []string{"go"}})
	assert.ErrorIs(t, err, common.ErrEmptyCommunities)

	_, err = svc.CreateAlert(ctx, "u1", AlertInput{Keywords: []string{"go"}, Communities: []string{"golang"}})
	assert.ErrorIs(t, err, common.ErrEmptyAlertName)

	_, err = svc.CreateAlert(ctx, "u1", AlertInput{Name: "x", Keywords: []string{"go"}, Communities: []string{"golang"}, ActionTypes: []string{"repost"}})
	assert.ErrorIs(t, err, common.ErrUnknownActionKind)

	a, err := svc.CreateAlert(ctx, "u1", AlertInput{
		Name: " Go ", Keywords: []string{"go", "Go", "channels"}, Communities: []string{"golang"}, ActionTypes: []string{"Comment"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Go", a.Name)
	assert.Equal(t, []string{"go", "channels"}, a.Keywords)
	assert.Equal(t, []Suggestion{SuggestComment}, a.ActionTypes)
	assert.Equal(t, AlertKeyword, a.Type)
	assert.True(t, a.Active)

	list, err := svc.ListAlerts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateAlertRequiresFeature(t *testing.T) {
	svc := newScanner(newMemStore(), &fakeSearch{}, false)
	_, err := svc.CreateAlert(context.Background(), "u1", AlertInput{Name: "x", Keywords: []string{"go"}, Communities: []string{"golang"}})
	assert.ErrorIs(t, err, common.ErrFeatureLocked)
	assert.Contains(t, err.Error(), "Veteran")
}

func TestScanStopsOnCancelledContext(t *testing.T) {
	store := newMemStore(Alert{ID: "a1", UserID: "u1", Keywords: []string{"go"}, Communities: []string{"golang"}, Active: true})
	svc := NewService(store, &fakeSearch{}, features(true), Options{TopN: 50, Pacing: time.Hour}, func() time.Time { return now })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Scan(ctx, "u1")
	assert.Error(t, err)
}
