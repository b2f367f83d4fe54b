package dashboard

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// AvatarPlaceholder is shown for items without an avatar.
const AvatarPlaceholder = "/static/img/avatar-placeholder.svg"

// Lifecycle is the controller state machine: uninitialized, active, closed.
type Lifecycle string

// Lifecycle states.
const (
	Uninitialized Lifecycle = "uninitialized"
	Active        Lifecycle = "active"
	Closed        Lifecycle = "closed"
)

// Region names a part of the page updated by one remote call.
type Region string

// Page regions.
const (
	RegionMembersSummary  Region = "members_summary"
	RegionClassesToday    Region = "classes_today"
	RegionBeltPromotions  Region = "belt_promotions"
	RegionEarnings        Region = "earnings"
	RegionMembers         Region = "members"
	RegionRecommendations Region = "recommendations"
	RegionActivity        Region = "activity"
)

// Regions lists every page region in display order.
var Regions = []Region{
	RegionMembersSummary, RegionClassesToday, RegionBeltPromotions,
	RegionEarnings, RegionMembers, RegionRecommendations, RegionActivity,
}

// Panel identifies a toggleable side panel by its control ID.
type Panel string

// Toggle controls.
const (
	PanelRecommendations Panel = "recommended-actions"
	PanelActivity        Panel = "recent-activity"
)

// Stats holds the summary figures at the top of the page.
type Stats struct {
	ActiveMembers  int             `json:"active_members"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
	ClassesToday   int             `json:"classes_today"`
	BeltPromotions int             `json:"belt_promotions"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
}

// Recommendation is one rendered recommendation.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	Action      string `json:"action"`
}

// Activity is one rendered activity entry.
type Activity struct {
	MemberName  string `json:"member_name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	Member      string `json:"member"`
}

// Panels records which side panels are visible.
type Panels struct {
	Recommendations bool `json:"recommendations"`
	Activity        bool `json:"activity"`
}

// State is a snapshot of the page.
type State struct {
	Lifecycle       Lifecycle         `json:"lifecycle"`
	Stats           Stats             `json:"stats"`
	EarningsPeriod  string            `json:"earnings_period"`
	MembersPeriod   string            `json:"members_period"`
	EarningsChart   *Chart            `json:"earnings_chart,omitempty"`
	MembersChart    *Chart            `json:"members_chart,omitempty"`
	Recommendations []Recommendation  `json:"recommendations"`
	Activities      []Activity        `json:"activities"`
	Panels          Panels            `json:"panels"`
	Revisions       map[Region]int    `json:"revisions"`
	Errors          map[Region]string `json:"errors,omitempty"`
	Loads           int               `json:"loads"`
	LastLoad        time.Time         `json:"last_load"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Stale reports whether the last call for region failed.
func (s State) Stale(region Region) bool {
	_, ok := s.Errors[region]
	return ok
}

func (s State) clone() State {
	cp := s
	cp.EarningsChart = s.EarningsChart.Clone()
	cp.MembersChart = s.MembersChart.Clone()
	cp.Recommendations = append(make([]Recommendation, 0, len(s.Recommendations)), s.Recommendations...)
	cp.Activities = append(make([]Activity, 0, len(s.Activities)), s.Activities...)
	cp.Revisions = maps.Clone(s.Revisions)
	cp.Errors = maps.Clone(s.Errors)
	return cp
}

func avatarOrPlaceholder(avatar string) string {
	if avatar == "" {
		return AvatarPlaceholder
	}
	return avatar
}
