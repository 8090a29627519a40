package safety

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/accounts"
	"serotonyl.ru/engagement-guard/internal/features/health"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
	"serotonyl.ru/engagement-guard/internal/features/trust"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func agedAccount() *accounts.Account {
	return &accounts.Account{UserID: "u1", CreatedAt: now.AddDate(-2, 0, 0), CommentKarma: 900, LinkKarma: 300}
}

// roomyTier — уровень с запасом лимитов, чтобы до аномалий и здоровья доходила очередь.
func roomyTier() trust.Tier {
	return trust.Tier{
		Level: 9,
		Name:  "Test",
		Benefits: trust.Budget{
			MaxActionsPerHour: 100,
			MaxActionsPerDay:  500,
			KindHourly:        map[ledger.Kind]int{ledger.KindVote: 100, ledger.KindComment: 100, ledger.KindJoin: 100},
		},
	}
}

type limiterFixture struct {
	svc     *Service
	actions *fakeActions
	events  *fakeEvents
}

func newLimiter(acc *accounts.Account, tier trust.Tier, records ...ledger.ActionRecord) limiterFixture {
	actions := &fakeActions{records: records}
	events := &fakeEvents{}
	svc := NewService(
		actions,
		fakeAccounts{acc: acc},
		fakeTiers{tier: tier},
		events,
		health.NewScorer(5, time.UTC),
		DefaultThresholds(),
		fixedClock,
		time.Second,
	)
	return limiterFixture{svc: svc, actions: actions, events: events}
}

func rec(kind ledger.Kind, ago time.Duration, community string) ledger.ActionRecord {
	return ledger.ActionRecord{
		ID:        fmt.Sprintf("a-%s-%d", kind, ago),
		UserID:    "u1",
		Kind:      kind,
		Community: community,
		Outcome:   ledger.OutcomeCompleted,
		CreatedAt: now.Add(-ago),
	}
}

func tier1() trust.Tier { return trust.DefaultLadder[0] }

func TestCheckActionHourlyCapScenario(t *testing.T) {
	// Уровень 1 (3 в час), три голоса за последние 40 минут, пробуем четвёртый
	f := newLimiter(agedAccount(), tier1(),
		rec(ledger.KindVote, 12*time.Minute, ""),
		rec(ledger.KindVote, 25*time.Minute, ""),
		rec(ledger.KindVote, 40*time.Minute, ""),
	)

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "")
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, CodeHourlyLimit, d.Code)
	assert.Contains(t, d.Reason, "часовой лимит (3/3)")
	assert.Equal(t, 20*60, d.WaitSeconds, "старейшая запись выходит из окна через 20 минут")
	assert.Equal(t, RiskMedium, d.RiskLevel)
}

func TestCheckActionNeverAllowsAtHourlyCap(t *testing.T) {
	for _, tier := range trust.DefaultLadder {
		var records []ledger.ActionRecord
		step := 50 * time.Minute / time.Duration(tier.Benefits.MaxActionsPerHour)
		for i := 0; i < tier.Benefits.MaxActionsPerHour; i++ {
			kind := ledger.Kinds[i%len(ledger.Kinds)]
			records = append(records, rec(kind, time.Duration(i+1)*step, ""))
		}
		f := newLimiter(agedAccount(), tier, records...)

		for _, kind := range ledger.Kinds {
			d, err := f.svc.CheckAction(context.Background(), "u1", kind, "")
			require.NoError(t, err)
			assert.False(t, d.Allowed, "уровень %d, тип %s", tier.Level, kind)
		}
	}
}

func TestCheckActionDailyCap(t *testing.T) {
	var records []ledger.ActionRecord
	for i := 0; i < 15; i++ {
		kind := ledger.Kinds[i%len(ledger.Kinds)]
		records = append(records, rec(kind, 2*time.Hour+time.Duration(i)*75*time.Minute, ""))
	}
	// Самая старая: 2ч + 14×75мин = 19.5 часа назад
	f := newLimiter(agedAccount(), tier1(), records...)

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeDailyLimit, d.Code)
	assert.Equal(t, int((4*time.Hour + 30*time.Minute).Seconds()), d.WaitSeconds)
}

func TestCheckActionKindCap(t *testing.T) {
	f := newLimiter(agedAccount(), tier1(), rec(ledger.KindComment, 30*time.Minute, ""))

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindComment, "")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeKindLimit, d.Code)
	assert.Equal(t, 30*60, d.WaitSeconds)

	d, err = f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "лимит комментариев не мешает голосу")
}

func TestCheckActionMinInterval(t *testing.T) {
	f := newLimiter(agedAccount(), tier1(), rec(ledger.KindVote, 4*time.Minute, ""))

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeMinInterval, d.Code)
	assert.Equal(t, 6*60, d.WaitSeconds)
	assert.Equal(t, RiskLow, d.RiskLevel)
	assert.Contains(t, d.Reason, "6 минут")
}

func TestCheckActionCommunityCeiling(t *testing.T) {
	f := newLimiter(agedAccount(), tier1(),
		rec(ledger.KindVote, 30*time.Minute, "golang"),
		rec(ledger.KindVote, 50*time.Minute, "golang"),
	)

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "GoLang")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeCommunityLimit, d.Code)
	assert.Equal(t, 10*60, d.WaitSeconds)

	d, err = f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "rust")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheckActionMonotonyAnomaly(t *testing.T) {
	var records []ledger.ActionRecord
	gaps := []time.Duration{13, 41, 22, 95, 31, 57, 18, 140, 66, 27}
	ago := time.Duration(0)
	for _, g := range gaps {
		ago += g * time.Minute
		records = append(records, rec(ledger.KindVote, ago, ""))
	}
	f := newLimiter(agedAccount(), roomyTier(), records...)

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeAnomalyMonotony, d.Code)
	assert.Equal(t, RiskHigh, d.RiskLevel)
}

func TestCheckActionTimingAnomaly(t *testing.T) {
	var records []ledger.ActionRecord
	for i := 0; i < 6; i++ {
		records = append(records, rec(ledger.Kinds[i%3], time.Duration(i+1)*time.Minute, ""))
	}
	f := newLimiter(agedAccount(), roomyTier(), records...)

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindJoin, "")
	require.NoError(t, err)
	assert.Equal(t, CodeAnomalyTiming, d.Code)
}

func TestCheckActionCriticalHealthDenies(t *testing.T) {
	fresh := &accounts.Account{UserID: "u1", CreatedAt: now.Add(-time.Hour)}
	f := newLimiter(fresh, tier1())
	f.events.warnings = 5

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeHealthCritical, d.Code)
	assert.Equal(t, RiskCritical, d.RiskLevel)
}

func TestCheckActionAllowsWithHealthRisk(t *testing.T) {
	f := newLimiter(agedAccount(), tier1())

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "golang")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Code)
	assert.Equal(t, RiskLow, d.RiskLevel)
	assert.Empty(t, f.actions.records, "проверка ничего не пишет")
}

func TestCheckActionFailsClosed(t *testing.T) {
	cases := map[string]func(f *limiterFixture){
		"журнал": func(f *limiterFixture) { f.actions.err = errStoreDown },
		"уровень": func(f *limiterFixture) {
			f.svc.tiers = fakeTiers{err: errStoreDown}
		},
		"аккаунт": func(f *limiterFixture) {
			f.svc.accounts = fakeAccounts{err: errStoreDown}
		},
		"предупреждения": func(f *limiterFixture) { f.events.err = errStoreDown },
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			f := newLimiter(agedAccount(), tier1())
			breakIt(&f)

			d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, CodeCheckFailed, d.Code)
			assert.Equal(t, RiskHigh, d.RiskLevel)
		})
	}
}

func TestCheckActionMissingAccountIsHardDenial(t *testing.T) {
	f := newLimiter(nil, tier1())

	d, err := f.svc.CheckAction(context.Background(), "u1", ledger.KindVote, "")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeAccountMissing, d.Code)
}

func TestCheckActionValidation(t *testing.T) {
	f := newLimiter(agedAccount(), tier1())

	_, err := f.svc.CheckAction(context.Background(), "u1", ledger.Kind("share"), "")
	assert.ErrorIs(t, err, common.ErrUnknownActionKind)

	_, err = f.svc.CheckAction(context.Background(), "", ledger.KindVote, "")
	assert.ErrorIs(t, err, common.ErrEmptyUserID)

	assert.Zero(t, f.actions.reads, "некорректный ввод не доходит до хранилища")
}

func TestHealthReport(t *testing.T) {
	f := newLimiter(agedAccount(), tier1(),
		rec(ledger.KindVote, 2*time.Hour, ""),
		rec(ledger.KindComment, 5*time.Hour, ""),
		rec(ledger.KindJoin, 30*time.Hour, ""),
	)

	r, err := f.svc.Health(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, r.ActionsLast24h)
	assert.Equal(t, "Newcomer", r.Tier.Name)
	assert.Equal(t, health.RiskLow, r.Health.RiskTier)
}
