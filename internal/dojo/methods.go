package dojo

import (
	"context"
	"fmt"
	"time"

	"github.com/dojo-planner/dojo/internal/rpc"
)

// DateArgs carries an optional ISO date range.
type DateArgs struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// PeriodArgs selects a trailing window.
type PeriodArgs struct {
	Period string `json:"period" validate:"omitempty,max=16"`
}

// CompleteArgs identifies a recommendation.
type CompleteArgs struct {
	RecommendationID string `json:"recommendation_id" validate:"required,max=200"`
}

// RegisterMethods exposes svc on reg.
func RegisterMethods(reg *rpc.Registry, svc *Service) {
	reg.Register(rpc.MethodMembersSummary, rpc.NoArgs(func(ctx context.Context) (any, error) {
		return svc.MembersSummary(ctx)
	}))
	reg.Register(rpc.MethodWeeklySchedule, rpc.Typed(func(ctx context.Context, args DateArgs) (any, error) {
		start, err := parseDate(args.StartDate, svc.loc)
		if err != nil {
			return nil, err
		}
		var day time.Time
		if start != nil {
			day = *start
		}
		return svc.WeeklySchedule(ctx, day)
	}))
	reg.Register(rpc.MethodGetCount, rpc.Typed(func(ctx context.Context, args CountQuery) (any, error) {
		return svc.Count(ctx, args)
	}))
	reg.Register(rpc.MethodPaymentSummary, rpc.Typed(func(ctx context.Context, args DateArgs) (any, error) {
		start, err := parseDate(args.StartDate, svc.loc)
		if err != nil {
			return nil, err
		}
		end, err := parseDate(args.EndDate, svc.loc)
		if err != nil {
			return nil, err
		}
		return svc.PaymentSummary(ctx, start, end)
	}))
	reg.Register(rpc.MethodRecommendations, rpc.NoArgs(func(ctx context.Context) (any, error) {
		return svc.Recommendations(ctx)
	}))
	reg.Register(rpc.MethodRecentActivity, rpc.NoArgs(func(ctx context.Context) (any, error) {
		return svc.RecentActivity(ctx)
	}))
	reg.Register(rpc.MethodDashboardStats, rpc.NoArgs(func(ctx context.Context) (any, error) {
		return svc.DashboardStats(ctx)
	}))
	reg.Register(rpc.MethodEarningsTrend, rpc.Typed(func(ctx context.Context, args PeriodArgs) (any, error) {
		return svc.EarningsTrend(ctx, args.Period)
	}))
	reg.Register(rpc.MethodMemberGrowth, rpc.Typed(func(ctx context.Context, args PeriodArgs) (any, error) {
		return svc.MemberGrowth(ctx, args.Period)
	}))
	reg.Register(rpc.MethodQuickActions, rpc.NoArgs(func(ctx context.Context) (any, error) {
		return svc.QuickActions(ctx)
	}))
	reg.Register(rpc.MethodCompleteRecommendation, rpc.Typed(func(ctx context.Context, args CompleteArgs) (any, error) {
		res, err := svc.CompleteRecommendation(ctx, args.RecommendationID)
		if err != nil {
			return nil, err
		}
		if err := svc.Invalidate(ctx); err != nil {
			return nil, fmt.Errorf("dojo: invalidate cache: %w", err)
		}
		return res, nil
	}))
}

func parseDate(raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rpc.ErrInvalidArgs, err)
	}
	return &t, nil
}
