// Package dojo implements the host-side methods the dashboard consumes:
// member, class, payment and promotion queries plus the recommendation and
// activity feeds built from them.
package dojo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Belt is a rank in the progression.
type Belt string

// Belts in progression order.
const (
	BeltWhite  Belt = "White"
	BeltBlue   Belt = "Blue"
	BeltPurple Belt = "Purple"
	BeltBrown  Belt = "Brown"
	BeltBlack  Belt = "Black"
	BeltCoral  Belt = "Coral"
	BeltRed    Belt = "Red"
)

// BeltOrder lists belts from lowest to highest.
var BeltOrder = []Belt{BeltWhite, BeltBlue, BeltPurple, BeltBrown, BeltBlack, BeltCoral, BeltRed}

// Rank returns the position of b in BeltOrder, or len(BeltOrder) when unknown.
func (b Belt) Rank() int {
	for i, belt := range BeltOrder {
		if belt == b {
			return i
		}
	}
	return len(BeltOrder)
}

// PromotionThresholdMonths is the time in belt after which a member is
// suggested for promotion.
func (b Belt) PromotionThresholdMonths() int {
	switch b {
	case BeltWhite, BeltBrown:
		return 12
	case BeltBlue, BeltPurple:
		return 24
	default:
		return 36
	}
}

// Member statuses.
const (
	MemberActive    = "Active"
	MemberInactive  = "Inactive"
	MemberSuspended = "Suspended"
)

// Payment statuses on the member record.
const (
	PaymentPaid    = "Paid"
	PaymentPending = "Pending"
	PaymentOverdue = "Overdue"
)

// Class statuses.
const (
	ClassScheduled = "Scheduled"
	ClassCompleted = "Completed"
	ClassCancelled = "Cancelled"
)

// BeltCount is one row of the active belt distribution.
type BeltCount struct {
	Belt  Belt `json:"current_belt"`
	Count int  `json:"count"`
}

// StatusCount is one row of the active payment status distribution.
type StatusCount struct {
	Status string `json:"payment_status"`
	Count  int    `json:"count"`
}

// MembersSummary answers dojo.members.summary.
type MembersSummary struct {
	TotalMembers     int             `json:"total_members"`
	ActiveMembers    int             `json:"active_members"`
	MonthlyRevenue   decimal.Decimal `json:"monthly_revenue"`
	BeltDistribution []BeltCount     `json:"belt_distribution"`
	PaymentStatus    []StatusCount   `json:"payment_status"`
}

// ScheduledClass is one entry of the weekly schedule.
type ScheduledClass struct {
	ID              string `json:"name"`
	ClassName       string `json:"class_name"`
	ClassType       string `json:"class_type"`
	ClassDate       string `json:"class_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Instructor      string `json:"instructor"`
	Status          string `json:"status"`
	AttendanceCount int    `json:"attendance_count"`
	MaxCapacity     int    `json:"max_capacity"`
}

// WeeklySchedule groups classes by ISO date.
type WeeklySchedule map[string][]ScheduledClass

// DailyRevenue is one day of completed payments.
type DailyRevenue struct {
	PaymentDate string          `json:"payment_date"`
	Total       decimal.Decimal `json:"total"`
	Count       int             `json:"count"`
}

// TypeRevenue groups revenue by payment type.
type TypeRevenue struct {
	PaymentType string          `json:"payment_type"`
	Total       decimal.Decimal `json:"total"`
	Count       int             `json:"count"`
}

// MethodRevenue groups revenue by payment method.
type MethodRevenue struct {
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	Count         int             `json:"count"`
}

// PaymentSummary answers dojo.payments.summary.
type PaymentSummary struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	DailyRevenue    []DailyRevenue  `json:"daily_revenue"`
	RevenueByType   []TypeRevenue   `json:"revenue_by_type"`
	RevenueByMethod []MethodRevenue `json:"revenue_by_method"`
}

// Recommendation is one suggested action for staff.
type Recommendation struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Avatar      string `json:"avatar,omitempty"`
	Action      string `json:"action"`
	Icon        string `json:"icon,omitempty"`
	Priority    string `json:"priority"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Member      string    `json:"member"`
	MemberName  string    `json:"member_name"`
	Description string    `json:"description"`
	Avatar      string    `json:"avatar,omitempty"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
}

// DashboardStats answers dojo.dashboard.stats.
type DashboardStats struct {
	TotalMembers        int             `json:"total_members"`
	ActiveMembers       int             `json:"active_members"`
	NewMembersThisMonth int             `json:"new_members_this_month"`
	ClassesToday        int             `json:"classes_today"`
	ClassesThisWeek     int             `json:"classes_this_week"`
	MonthlyRevenue      decimal.Decimal `json:"monthly_revenue"`
	AttendanceToday     int             `json:"attendance_today"`
	PromotionsThisMonth int             `json:"promotions_this_month"`
	OverduePayments     int             `json:"overdue_payments"`
}

// EarningsPoint is one bucket of the earnings trend.
type EarningsPoint struct {
	Period           string          `json:"period"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TransactionCount int             `json:"transaction_count"`
}

// GrowthPoint is one bucket of the member growth trend.
type GrowthPoint struct {
	Period       string `json:"period"`
	NewMembers   int    `json:"new_members"`
	TotalMembers int    `json:"total_members"`
}

// QuickAction is a time-sensitive prompt for staff.
type QuickAction struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Type        string `json:"type"`
	Urgency     string `json:"urgency"`
}

// CompletionResult answers dojo.dashboard.complete_recommendation.
type CompletionResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MemberRef identifies a member in recommendation inputs.
type MemberRef struct {
	ID       string
	Name     string
	Avatar   string
	JoinDate time.Time
}

// OverdueMember is an active member with an overdue balance.
type OverdueMember struct {
	MemberRef
	Outstanding decimal.Decimal
}

// PromotionCandidate is an active member and the date they reached their
// current belt.
type PromotionCandidate struct {
	MemberRef
	Belt      Belt
	BeltSince time.Time
}

// PaymentEvent is a completed payment for the activity feed.
type PaymentEvent struct {
	MemberRef
	Amount      decimal.Decimal
	PaymentType string
	PaymentDate time.Time
}

// CancellationEvent is a member that became inactive.
type CancellationEvent struct {
	MemberRef
	NextPaymentDue *time.Time
	Modified       time.Time
}

// PromotionEvent is a submitted belt promotion.
type PromotionEvent struct {
	MemberRef
	ToBelt        Belt
	PromotionDate time.Time
}

// UpcomingClass is a scheduled class starting soon.
type UpcomingClass struct {
	ID         string
	ClassName  string
	StartTime  string
	Instructor string
}
