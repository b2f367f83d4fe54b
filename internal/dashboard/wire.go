package dashboard

import "github.com/shopspring/decimal"

type membersSummaryReply struct {
	ActiveMembers  int             `json:"active_members"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
}

type dailyRevenueReply struct {
	PaymentDate string          `json:"payment_date"`
	Total       decimal.Decimal `json:"total"`
}

type paymentSummaryReply struct {
	TotalRevenue decimal.Decimal     `json:"total_revenue"`
	DailyRevenue []dailyRevenueReply `json:"daily_revenue"`
}

type recommendationReply struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	Action      string `json:"action"`
}

type activityReply struct {
	MemberName  string `json:"member_name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	Member      string `json:"member"`
}

type growthReply struct {
	Period       string `json:"period"`
	TotalMembers int    `json:"total_members"`
}

type scheduleArgs struct {
	StartDate string `json:"start_date"`
}

type dateRangeArgs struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type periodArgs struct {
	Period string `json:"period"`
}

type countArgs struct {
	Doctype string              `json:"doctype"`
	Filters map[string][]string `json:"filters"`
}
