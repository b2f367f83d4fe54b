package dojo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-planner/dojo/internal/rpc"
	"github.com/dojo-planner/dojo/internal/shared"
)

type mockRepo struct {
	mu sync.Mutex

	totals        MemberTotals
	totalsErr     error
	totalsCalls   int
	belts         []BeltCount
	statuses      []StatusCount
	classes       []ScheduledClass
	classesFrom   time.Time
	classesTo     time.Time
	countStmt     CountStatement
	count         int
	payments      PaymentSummary
	paymentsFrom  *time.Time
	paymentsTo    *time.Time
	newMembers    []MemberRef
	newSince      time.Time
	overdue       []OverdueMember
	lapsed        []MemberRef
	lapsedCutoff  time.Time
	candidates    []PromotionCandidate
	recPayments   []PaymentEvent
	cancellations []CancellationEvent
	promotions    []PromotionEvent
	stats         DashboardStats
	earnings      []EarningsPoint
	earningsFrom  time.Time
	earningsMonth bool
	joinedBefore  int
	joins         []GrowthPoint
	upcoming      []UpcomingClass
	upcomingFrom  string
	upcomingTo    string
	birthdays     []MemberRef
}

func (m *mockRepo) MemberTotals(ctx context.Context) (MemberTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalsCalls++
	return m.totals, m.totalsErr
}

func (m *mockRepo) BeltDistribution(ctx context.Context) ([]BeltCount, error) { return m.belts, nil }

func (m *mockRepo) PaymentStatusDistribution(ctx context.Context) ([]StatusCount, error) {
	return m.statuses, nil
}

func (m *mockRepo) ClassesBetween(ctx context.Context, from, to time.Time) ([]ScheduledClass, error) {
	m.classesFrom, m.classesTo = from, to
	return m.classes, nil
}

func (m *mockRepo) Count(ctx context.Context, stmt CountStatement) (int, error) {
	m.countStmt = stmt
	return m.count, nil
}

func (m *mockRepo) PaymentSummary(ctx context.Context, from, to *time.Time) (PaymentSummary, error) {
	m.paymentsFrom, m.paymentsTo = from, to
	return m.payments, nil
}

func (m *mockRepo) NewMembers(ctx context.Context, since time.Time, limit int) ([]MemberRef, error) {
	m.newSince = since
	return m.newMembers, nil
}

func (m *mockRepo) OverdueMembers(ctx context.Context, limit int) ([]OverdueMember, error) {
	return m.overdue, nil
}

func (m *mockRepo) LapsedMembers(ctx context.Context, cutoff time.Time, limit int) ([]MemberRef, error) {
	m.lapsedCutoff = cutoff
	return m.lapsed, nil
}

func (m *mockRepo) PromotionCandidates(ctx context.Context, asOf time.Time, limit int) ([]PromotionCandidate, error) {
	return m.candidates, nil
}

func (m *mockRepo) RecentPayments(ctx context.Context, since time.Time, limit int) ([]PaymentEvent, error) {
	return m.recPayments, nil
}

func (m *mockRepo) RecentCancellations(ctx context.Context, since time.Time, limit int) ([]CancellationEvent, error) {
	return m.cancellations, nil
}

func (m *mockRepo) RecentPromotions(ctx context.Context, since time.Time, limit int) ([]PromotionEvent, error) {
	return m.promotions, nil
}

func (m *mockRepo) DashboardStats(ctx context.Context, today time.Time) (DashboardStats, error) {
	return m.stats, nil
}

func (m *mockRepo) EarningsTrend(ctx context.Context, from, to time.Time, monthly bool) ([]EarningsPoint, error) {
	m.earningsFrom, m.earningsMonth = from, monthly
	return m.earnings, nil
}

func (m *mockRepo) MembersJoinedBefore(ctx context.Context, before time.Time) (int, error) {
	return m.joinedBefore, nil
}

func (m *mockRepo) JoinsBetween(ctx context.Context, from, to time.Time, monthly bool) ([]GrowthPoint, error) {
	out := make([]GrowthPoint, len(m.joins))
	copy(out, m.joins)
	return out, nil
}

func (m *mockRepo) UpcomingClasses(ctx context.Context, day time.Time, fromClock, toClock string, limit int) ([]UpcomingClass, error) {
	m.upcomingFrom, m.upcomingTo = fromClock, toClock
	return m.upcoming, nil
}

func (m *mockRepo) BirthdayMembers(ctx context.Context, day time.Time, limit int) ([]MemberRef, error) {
	return m.birthdays, nil
}

type memoryCompletions struct {
	mu   sync.Mutex
	keys []string
}

func (c *memoryCompletions) CheckAndInsert(ctx context.Context, key, module string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.keys {
		if k == key {
			return shared.ErrIdempotencyConflict
		}
	}
	c.keys = append(c.keys, key)
	return nil
}

func (c *memoryCompletions) Keys(ctx context.Context, module string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...), nil
}

var fixedNow = time.Date(2025, 3, 31, 17, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, repo Repository) (*Service, *memoryCompletions) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	completions := &memoryCompletions{}
	svc := NewService(repo, NewCache(client, time.Minute), completions, time.UTC)
	svc.WithNow(func() time.Time { return fixedNow })
	return svc, completions
}

func TestMembersSummaryCaches(t *testing.T) {
	repo := &mockRepo{
		totals: MemberTotals{Total: 12, Active: 10, MonthlyFees: decimal.RequireFromString("1500.00")},
		belts:  []BeltCount{{Belt: BeltWhite, Count: 6}, {Belt: BeltBlue, Count: 4}},
	}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.MembersSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, first.ActiveMembers)
	assert.True(t, first.MonthlyRevenue.Equal(decimal.RequireFromString("1500")))
	assert.Len(t, first.BeltDistribution, 2)
	assert.NotNil(t, first.PaymentStatus)

	_, err = svc.MembersSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.totalsCalls)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.MembersSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.totalsCalls)
}

func TestMembersSummaryErrorNotCached(t *testing.T) {
	repo := &mockRepo{totalsErr: errors.New("db down")}
	svc, _ := newTestService(t, repo)

	_, err := svc.MembersSummary(context.Background())
	require.Error(t, err)

	repo.totalsErr = nil
	repo.totals = MemberTotals{Active: 3}
	out, err := svc.MembersSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, out.ActiveMembers)
}

func TestWeeklyScheduleGroupsSevenDays(t *testing.T) {
	repo := &mockRepo{classes: []ScheduledClass{
		{ID: "C-1", ClassName: "Fundamentals", ClassDate: "2025-03-31"},
		{ID: "C-2", ClassName: "No-Gi", ClassDate: "2025-03-31"},
		{ID: "C-3", ClassName: "Open Mat", ClassDate: "2025-04-05"},
	}}
	svc, _ := newTestService(t, repo)

	schedule, err := svc.WeeklySchedule(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, schedule["2025-03-31"], 2)
	assert.Len(t, schedule["2025-04-05"], 1)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), repo.classesFrom)
	assert.Equal(t, time.Date(2025, 4, 6, 0, 0, 0, 0, time.UTC), repo.classesTo)
}

func TestRecommendationsHideCompleted(t *testing.T) {
	repo := &mockRepo{
		newMembers: []MemberRef{{ID: "M-1", Name: "Ana"}, {ID: "M-2", Name: "Bo"}},
		lapsed:     []MemberRef{{ID: "M-9"}},
	}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	recs, err := svc.Recommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, fixedNow.AddDate(0, 0, -7).Truncate(24*time.Hour), repo.newSince)

	res, err := svc.CompleteRecommendation(ctx, "view_member:M-1")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)

	again, err := svc.CompleteRecommendation(ctx, "view_member:M-1")
	require.NoError(t, err)
	assert.Equal(t, "Recommendation already completed", again.Message)

	recs, err = svc.Recommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "view_member:M-2", recs[0].Action)
}

func TestRecentActivityEmptyIsList(t *testing.T) {
	svc, _ := newTestService(t, &mockRepo{})
	feed, err := svc.RecentActivity(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, feed)
	assert.Empty(t, feed)
}

func TestEarningsTrendWindows(t *testing.T) {
	cases := []struct {
		period  string
		start   time.Time
		monthly bool
	}{
		{period: shared.PeriodOneMonth, start: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), monthly: false},
		{period: shared.PeriodThreeMonths, start: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), monthly: false},
		{period: shared.PeriodSixMonths, start: time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC), monthly: true},
		{period: "decade", start: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), monthly: true},
	}
	for _, tc := range cases {
		t.Run(tc.period, func(t *testing.T) {
			repo := &mockRepo{}
			svc, _ := newTestService(t, repo)
			_, err := svc.EarningsTrend(context.Background(), tc.period)
			require.NoError(t, err)
			assert.Equal(t, tc.start, repo.earningsFrom)
			assert.Equal(t, tc.monthly, repo.earningsMonth)
		})
	}
}

func TestMemberGrowthIsCumulative(t *testing.T) {
	repo := &mockRepo{
		joinedBefore: 100,
		joins:        []GrowthPoint{{Period: "2025-01", NewMembers: 5}, {Period: "2025-02", NewMembers: 3}},
	}
	svc, _ := newTestService(t, repo)

	points, err := svc.MemberGrowth(context.Background(), shared.PeriodSixMonths)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 105, points[0].TotalMembers)
	assert.Equal(t, 108, points[1].TotalMembers)
}

func TestQuickActions(t *testing.T) {
	repo := &mockRepo{
		upcoming:  []UpcomingClass{{ID: "C-1", ClassName: "Kids", StartTime: "18:00", Instructor: "Prof. Lee"}},
		birthdays: []MemberRef{{ID: "M-1", Name: "Ana"}},
	}
	svc, _ := newTestService(t, repo)

	actions, err := svc.QuickActions(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "Class starting soon: Kids", actions[0].Title)
	assert.Equal(t, "at 18:00 with Prof. Lee", actions[0].Description)
	assert.Equal(t, "send_birthday_message:M-1", actions[1].Action)
	assert.Equal(t, "17:30", repo.upcomingFrom)
	assert.Equal(t, "19:30", repo.upcomingTo)
}

func TestRegisteredMethodsOverLocalCaller(t *testing.T) {
	repo := &mockRepo{
		totals:   MemberTotals{Active: 40, MonthlyFees: decimal.RequireFromString("6000")},
		count:    4,
		payments: PaymentSummary{TotalRevenue: decimal.RequireFromString("320.50"), DailyRevenue: []DailyRevenue{{PaymentDate: "2025-03-30", Total: decimal.RequireFromString("320.50"), Count: 2}}},
	}
	svc, _ := newTestService(t, repo)
	reg := rpc.NewRegistry()
	RegisterMethods(reg, svc)
	caller := rpc.NewLocal(reg, nil)
	ctx := context.Background()

	var summary struct {
		ActiveMembers  int    `json:"active_members"`
		MonthlyRevenue string `json:"monthly_revenue"`
	}
	require.NoError(t, caller.Call(ctx, rpc.MethodMembersSummary, nil, &summary))
	assert.Equal(t, 40, summary.ActiveMembers)
	assert.Equal(t, "6000", summary.MonthlyRevenue)

	var count int
	args := map[string]any{"doctype": "Belt Promotion", "filters": map[string]any{"promotion_date": []any{">=", "2025-03-01"}}}
	require.NoError(t, caller.Call(ctx, rpc.MethodGetCount, args, &count))
	assert.Equal(t, 4, count)
	assert.Equal(t, "belt_promotions", repo.countStmt.Table)

	var payments PaymentSummary
	require.NoError(t, caller.Call(ctx, rpc.MethodPaymentSummary, map[string]string{"start_date": "2024-03-31", "end_date": "2025-03-31"}, &payments))
	require.Len(t, payments.DailyRevenue, 1)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), *repo.paymentsFrom)

	err := caller.Call(ctx, rpc.MethodPaymentSummary, map[string]string{"start_date": "31/03/2025"}, nil)
	assert.True(t, errors.Is(err, rpc.ErrInvalidArgs))

	err = caller.Call(ctx, rpc.MethodGetCount, map[string]any{"doctype": "Secrets"}, nil)
	assert.True(t, errors.Is(err, ErrUnknownDoctype))

	var done CompletionResult
	require.NoError(t, caller.Call(ctx, rpc.MethodCompleteRecommendation, json.RawMessage(`{"recommendation_id":"setup_email_automation"}`), &done))
	assert.Equal(t, "success", done.Status)
	err = caller.Call(ctx, rpc.MethodCompleteRecommendation, nil, nil)
	assert.True(t, errors.Is(err, rpc.ErrInvalidArgs))

	for _, name := range []string{rpc.MethodWeeklySchedule, rpc.MethodRecommendations, rpc.MethodRecentActivity,
		rpc.MethodDashboardStats, rpc.MethodEarningsTrend, rpc.MethodMemberGrowth, rpc.MethodQuickActions} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, name)
	}
}
