package dojo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dojo-planner/dojo/internal/shared"
)

// CompletionModule scopes completed recommendation ids in the idempotency store.
const CompletionModule = "dojo.recommendation"

// CompletionStore records recommendations staff have acted on. Entries are
// purged by the idempotency cleanup job, after which a recommendation that
// still applies shows up again.
type CompletionStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Keys(ctx context.Context, module string) ([]string, error)
}

// Service coordinates repository queries with the cache layer.
type Service struct {
	repo        Repository
	cache       *Cache
	completions CompletionStore
	loc         *time.Location
	now         func() time.Time
}

// NewService wires a Repository with a Cache helper. Dates are evaluated in loc.
func NewService(repo Repository, cache *Cache, completions CompletionStore, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, cache: cache, completions: completions, loc: loc, now: time.Now}
}

// WithNow overrides the clock, primarily for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) today() time.Time {
	return shared.Day(s.now().In(s.loc))
}

// MembersSummary returns member counts, distributions and the monthly fee total.
func (s *Service) MembersSummary(ctx context.Context) (MembersSummary, error) {
	var out MembersSummary
	key, err := s.cache.BuildKey(ctx, "members_summary")
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		totals, err := s.repo.MemberTotals(ctx)
		if err != nil {
			return nil, err
		}
		belts, err := s.repo.BeltDistribution(ctx)
		if err != nil {
			return nil, err
		}
		statuses, err := s.repo.PaymentStatusDistribution(ctx)
		if err != nil {
			return nil, err
		}
		return MembersSummary{
			TotalMembers:     totals.Total,
			ActiveMembers:    totals.Active,
			MonthlyRevenue:   totals.MonthlyFees,
			BeltDistribution: nonNil(belts),
			PaymentStatus:    nonNil(statuses),
		}, nil
	})
	return out, err
}

// WeeklySchedule returns non-cancelled classes from start through start+6
// days grouped by date. A zero start means today.
func (s *Service) WeeklySchedule(ctx context.Context, start time.Time) (WeeklySchedule, error) {
	if start.IsZero() {
		start = s.today()
	}
	start = shared.Day(start)
	end := start.AddDate(0, 0, 6)

	out := WeeklySchedule{}
	key, err := s.cache.BuildKey(ctx, "weekly_schedule", start.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		classes, err := s.repo.ClassesBetween(ctx, start, end)
		if err != nil {
			return nil, err
		}
		schedule := WeeklySchedule{}
		for _, c := range classes {
			schedule[c.ClassDate] = append(schedule[c.ClassDate], c)
		}
		return schedule, nil
	})
	return out, err
}

// Count runs a whitelisted count query. Counts are not cached.
func (s *Service) Count(ctx context.Context, q CountQuery) (int, error) {
	stmt, err := q.Compile()
	if err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, stmt)
}

// PaymentSummary totals completed payments between start and end. Nil
// bounds are open.
func (s *Service) PaymentSummary(ctx context.Context, start, end *time.Time) (PaymentSummary, error) {
	var out PaymentSummary
	key, err := s.cache.BuildKey(ctx, "payment_summary", dateToken(start), dateToken(end))
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		summary, err := s.repo.PaymentSummary(ctx, start, end)
		if err != nil {
			return nil, err
		}
		summary.DailyRevenue = nonNil(summary.DailyRevenue)
		summary.RevenueByType = nonNil(summary.RevenueByType)
		summary.RevenueByMethod = nonNil(summary.RevenueByMethod)
		return summary, nil
	})
	return out, err
}

// Recommendations returns up to MaxRecommendations suggested actions.
// Completed recommendations are filtered after the cache so completing one
// takes effect immediately.
func (s *Service) Recommendations(ctx context.Context) ([]Recommendation, error) {
	today := s.today()
	var all []Recommendation
	key, err := s.cache.BuildKey(ctx, "recommendations", today.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	err = s.cache.FetchJSON(ctx, key, &all, func(ctx context.Context) (any, error) {
		in, err := s.recommendationInputs(ctx, today)
		if err != nil {
			return nil, err
		}
		return BuildRecommendations(in), nil
	})
	if err != nil {
		return nil, err
	}

	completed, err := s.completedRecommendations(ctx)
	if err != nil {
		return nil, err
	}
	return TopRecommendations(all, completed), nil
}

func (s *Service) recommendationInputs(ctx context.Context, today time.Time) (RecommendationInputs, error) {
	in := RecommendationInputs{AsOf: today}
	var err error
	if in.NewMembers, err = s.repo.NewMembers(ctx, today.AddDate(0, 0, -newMemberWindowDays), newMemberLimit); err != nil {
		return in, err
	}
	if in.Overdue, err = s.repo.OverdueMembers(ctx, overdueLimit); err != nil {
		return in, err
	}
	if in.Lapsed, err = s.repo.LapsedMembers(ctx, today.AddDate(0, 0, -lapsedWindowDays), lapsedLimit); err != nil {
		return in, err
	}
	if in.Candidates, err = s.repo.PromotionCandidates(ctx, today, promotionLimit); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Service) completedRecommendations(ctx context.Context) (map[string]bool, error) {
	if s.completions == nil {
		return nil, nil
	}
	keys, err := s.completions.Keys(ctx, CompletionModule)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}

// RecentActivity returns up to MaxActivities feed entries, newest first.
func (s *Service) RecentActivity(ctx context.Context) ([]Activity, error) {
	today := s.today()
	var out []Activity
	key, err := s.cache.BuildKey(ctx, "recent_activity", today.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		var in ActivityInputs
		var err error
		if in.Payments, err = s.repo.RecentPayments(ctx, today.AddDate(0, 0, -paymentWindowDays), paymentEventLimit); err != nil {
			return nil, err
		}
		if in.Cancellations, err = s.repo.RecentCancellations(ctx, today.AddDate(0, 0, -cancelWindowDays), cancellationLimit); err != nil {
			return nil, err
		}
		if in.Promotions, err = s.repo.RecentPromotions(ctx, today.AddDate(0, 0, -promotionWindowDays), promotionEventLimit); err != nil {
			return nil, err
		}
		return BuildActivity(in), nil
	})
	if out == nil {
		out = []Activity{}
	}
	return out, err
}

// DashboardStats returns the key statistics block.
func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	today := s.today()
	var out DashboardStats
	key, err := s.cache.BuildKey(ctx, "stats", today.Format(time.DateOnly))
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.DashboardStats(ctx, today)
	})
	return out, err
}

// EarningsTrend groups completed payments by day for short periods and by
// month for six months or more.
func (s *Service) EarningsTrend(ctx context.Context, period string) ([]EarningsPoint, error) {
	today := s.today()
	months := shared.PeriodMonths(period, 12)
	start := shared.AddMonths(today, -months)
	monthly := months >= 6

	var out []EarningsPoint
	key, err := s.cache.BuildKey(ctx, "earnings_trend", start.Format(time.DateOnly), today.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		points, err := s.repo.EarningsTrend(ctx, start, today, monthly)
		return nonNil(points), err
	})
	return out, err
}

// MemberGrowth returns new member counts per bucket with the running total
// of all members. Periods beyond six months are treated as six months.
func (s *Service) MemberGrowth(ctx context.Context, period string) ([]GrowthPoint, error) {
	today := s.today()
	months := shared.PeriodMonths(period, 6)
	if months > 6 {
		months = 6
	}
	start := shared.AddMonths(today, -months)
	monthly := months >= 6

	var out []GrowthPoint
	key, err := s.cache.BuildKey(ctx, "member_growth", start.Format(time.DateOnly), today.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		base, err := s.repo.MembersJoinedBefore(ctx, start)
		if err != nil {
			return nil, err
		}
		points, err := s.repo.JoinsBetween(ctx, start, today, monthly)
		if err != nil {
			return nil, err
		}
		running := base
		for i := range points {
			running += points[i].NewMembers
			points[i].TotalMembers = running
		}
		return nonNil(points), nil
	})
	return out, err
}

// QuickActions lists classes starting within two hours and today's birthdays.
func (s *Service) QuickActions(ctx context.Context) ([]QuickAction, error) {
	now := s.now().In(s.loc)
	today := shared.Day(now)
	until := now.Add(2 * time.Hour)
	if !shared.Day(until).Equal(today) {
		until = today.Add(24*time.Hour - time.Minute)
	}

	classes, err := s.repo.UpcomingClasses(ctx, today, now.Format("15:04"), until.Format("15:04"), 3)
	if err != nil {
		return nil, err
	}
	birthdays, err := s.repo.BirthdayMembers(ctx, today, 5)
	if err != nil {
		return nil, err
	}

	out := make([]QuickAction, 0, len(classes)+len(birthdays))
	for _, c := range classes {
		out = append(out, QuickAction{
			Title:       "Class starting soon: " + c.ClassName,
			Description: fmt.Sprintf("at %s with %s", c.StartTime, c.Instructor),
			Action:      "view_class:" + c.ID,
			Type:        "class",
			Urgency:     "high",
		})
	}
	for _, m := range birthdays {
		out = append(out, QuickAction{
			Title:       "Birthday: " + m.Name,
			Description: "Send birthday wishes",
			Action:      "send_birthday_message:" + m.ID,
			Type:        "birthday",
			Urgency:     "low",
		})
	}
	return out, nil
}

// CompleteRecommendation hides a recommendation. Completing it twice is not
// an error.
func (s *Service) CompleteRecommendation(ctx context.Context, id string) (CompletionResult, error) {
	if s.completions == nil {
		return CompletionResult{}, errors.New("dojo: completion store not configured")
	}
	err := s.completions.CheckAndInsert(ctx, id, CompletionModule)
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return CompletionResult{Status: "success", Message: "Recommendation already completed"}, nil
	case err != nil:
		return CompletionResult{}, err
	}
	return CompletionResult{Status: "success", Message: "Recommendation marked as completed"}, nil
}

// Invalidate drops every cached result.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func dateToken(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
