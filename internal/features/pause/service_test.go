package pause

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/safetylog"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestResolve(t *testing.T) {
	st := State{UserID: "u1", Paused: true, Reason: "ручная", ResumeAt: base}

	next, expired := Resolve(st, base.Add(-time.Second))
	assert.False(t, expired)
	assert.True(t, next.Paused)

	next, expired = Resolve(st, base)
	assert.True(t, expired, "пауза истекает ровно в момент resumeAt")
	assert.False(t, next.Paused)
	assert.Empty(t, next.Reason)

	_, expired = Resolve(State{UserID: "u1"}, base)
	assert.False(t, expired)
}

func TestPauseAndLazyExpiry(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: base}
	store := newMemStore()
	events := &recEvents{}
	svc := NewService(store, events, c.now, time.Second)

	st, err := svc.Pause(ctx, "u1", "аномалия", 30)
	require.NoError(t, err)
	require.True(t, st.Paused)
	assert.Equal(t, base.Add(30*time.Minute), *st.ResumeAt)
	require.Len(t, events.logged, 1)
	assert.Equal(t, safetylog.KindActivityPaused, events.logged[0].Kind)

	c.t = base.Add(29 * time.Minute)
	st, err = svc.IsPaused(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Paused)
	assert.Equal(t, "аномалия", st.Reason)

	c.t = base.Add(31 * time.Minute)
	st, err = svc.IsPaused(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.Paused)
	assert.Nil(t, st.ResumeAt)

	// Снятая пауза не возвращается при следующем чтении
	saves := store.saves
	st, err = svc.IsPaused(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.Paused)
	assert.Equal(t, saves, store.saves)
}

func TestPauseValidation(t *testing.T) {
	svc := NewService(newMemStore(), &recEvents{}, (&clock{t: base}).now, time.Second)

	_, err := svc.Pause(context.Background(), "u1", "x", 0)
	assert.ErrorIs(t, err, common.ErrInvalidDuration)

	_, err = svc.Pause(context.Background(), "", "x", 10)
	assert.ErrorIs(t, err, common.ErrEmptyUserID)

	_, err = svc.IsPaused(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrEmptyUserID)
}

func TestUnknownUserIsNotPaused(t *testing.T) {
	svc := NewService(newMemStore(), &recEvents{}, (&clock{t: base}).now, time.Second)
	st, err := svc.IsPaused(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, st.Paused)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: base}
	store := newMemStore()
	svc := NewService(store, &recEvents{}, c.now, time.Second)

	_, err := svc.Pause(ctx, "u1", "a", 10)
	require.NoError(t, err)
	_, err = svc.Pause(ctx, "u2", "b", 60)
	require.NoError(t, err)

	c.t = base.Add(20 * time.Minute)
	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, _ := store.Get(ctx, "u2")
	assert.True(t, st.Paused)
}
