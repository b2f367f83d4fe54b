package rpc

// Method names shared by the dojo host and the dashboard.
const (
	MethodMembersSummary         = "dojo.members.summary"
	MethodWeeklySchedule         = "dojo.classes.weekly_schedule"
	MethodGetCount               = "client.get_count"
	MethodPaymentSummary         = "dojo.payments.summary"
	MethodRecommendations        = "dojo.dashboard.recommendations"
	MethodRecentActivity         = "dojo.dashboard.recent_activity"
	MethodDashboardStats         = "dojo.dashboard.stats"
	MethodEarningsTrend          = "dojo.dashboard.earnings_trend"
	MethodMemberGrowth           = "dojo.dashboard.member_growth"
	MethodQuickActions           = "dojo.dashboard.quick_actions"
	MethodCompleteRecommendation = "dojo.dashboard.complete_recommendation"
)
