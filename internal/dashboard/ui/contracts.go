// Package ui maps dashboard page state onto the template contract.
package ui

import (
	"html/template"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dojo-planner/dojo/internal/dashboard"
	"github.com/dojo-planner/dojo/internal/dashboard/svg"
)

// StatCard is one summary figure.
type StatCard struct {
	ID    string
	Label string
	Value string
	Stale bool
}

// PeriodOption is one entry of a chart's period picker.
type PeriodOption struct {
	Value    string
	Label    string
	Selected bool
}

// ChartView is a rendered chart with its period picker.
type ChartView struct {
	Anchor  string
	Title   string
	Action  string
	Options []PeriodOption
	SVG     template.HTML
	Empty   bool
	Stale   bool
}

// ListItem is one row of a side panel. Attr names the data attribute the
// row's button carries ("action" or "member").
type ListItem struct {
	Title       string
	Description string
	Avatar      string
	Button      string
	Attr        string
	Value       string
}

// PanelView is a toggleable side panel.
type PanelView struct {
	Control string
	Title   string
	Visible bool
	Stale   bool
	Items   []ListItem
}

// DashboardViewModel combines all dashboard data for rendering.
type DashboardViewModel struct {
	Stats           []StatCard
	Earnings        *ChartView
	Members         *ChartView
	Recommendations PanelView
	Activity        PanelView
	RefreshSeconds  int
	UpdatedAt       time.Time
	LastLoad        time.Time
	Closed          bool
}

// MoneyFormatter renders an amount as currency.
type MoneyFormatter func(decimal.Decimal) string

var periodLabels = []PeriodOption{
	{Value: "1month", Label: "Last month"},
	{Value: "3months", Label: "Last 3 months"},
	{Value: "6months", Label: "Last 6 months"},
	{Value: "1year", Label: "Last year"},
}

// Build converts a page snapshot into the view model.
func Build(s dashboard.State, money MoneyFormatter, refresh time.Duration) (DashboardViewModel, error) {
	vm := DashboardViewModel{
		RefreshSeconds: int(refresh / time.Second),
		UpdatedAt:      s.UpdatedAt,
		LastLoad:       s.LastLoad,
		Closed:         s.Lifecycle == dashboard.Closed,
	}
	vm.Stats = []StatCard{
		{ID: "active-members", Label: "Active Members", Value: strconv.Itoa(s.Stats.ActiveMembers), Stale: s.Stale(dashboard.RegionMembersSummary)},
		{ID: "monthly-revenue", Label: "Monthly Revenue", Value: money(s.Stats.MonthlyRevenue), Stale: s.Stale(dashboard.RegionMembersSummary)},
		{ID: "classes-today", Label: "Classes Today", Value: strconv.Itoa(s.Stats.ClassesToday), Stale: s.Stale(dashboard.RegionClassesToday)},
		{ID: "belt-promotions", Label: "Belt Promotions", Value: strconv.Itoa(s.Stats.BeltPromotions), Stale: s.Stale(dashboard.RegionBeltPromotions)},
		{ID: "total-earnings", Label: "Total Earnings", Value: money(s.Stats.TotalEarnings), Stale: s.Stale(dashboard.RegionEarnings)},
	}

	var err error
	if vm.Earnings, err = chartView(s.EarningsChart, "earnings-period", s.EarningsPeriod, s.Stale(dashboard.RegionEarnings)); err != nil {
		return DashboardViewModel{}, err
	}
	if vm.Members, err = chartView(s.MembersChart, "members-period", s.MembersPeriod, s.Stale(dashboard.RegionMembers)); err != nil {
		return DashboardViewModel{}, err
	}

	vm.Recommendations = PanelView{
		Control: string(dashboard.PanelRecommendations),
		Title:   "Recommended Actions",
		Visible: s.Panels.Recommendations,
		Stale:   s.Stale(dashboard.RegionRecommendations),
		Items:   make([]ListItem, 0, len(s.Recommendations)),
	}
	for _, r := range s.Recommendations {
		vm.Recommendations.Items = append(vm.Recommendations.Items, ListItem{
			Title: r.Title, Description: r.Description, Avatar: r.Avatar,
			Button: "Take Action", Attr: "action", Value: r.Action,
		})
	}

	vm.Activity = PanelView{
		Control: string(dashboard.PanelActivity),
		Title:   "Recent Activity",
		Visible: s.Panels.Activity,
		Stale:   s.Stale(dashboard.RegionActivity),
		Items:   make([]ListItem, 0, len(s.Activities)),
	}
	for _, a := range s.Activities {
		vm.Activity.Items = append(vm.Activity.Items, ListItem{
			Title: a.MemberName, Description: a.Description, Avatar: a.Avatar,
			Button: "View Member", Attr: "member", Value: a.Member,
		})
	}
	return vm, nil
}

func chartView(c *dashboard.Chart, action, period string, stale bool) (*ChartView, error) {
	if c == nil {
		return nil, nil
	}
	html, err := c.SVG(svg.DefaultWidth, svg.DefaultHeight)
	if err != nil {
		return nil, err
	}
	options := make([]PeriodOption, len(periodLabels))
	for i, opt := range periodLabels {
		opt.Selected = opt.Value == period
		options[i] = opt
	}
	return &ChartView{
		Anchor:  c.Anchor,
		Title:   c.Label,
		Action:  action,
		Options: options,
		SVG:     html,
		Empty:   c.Empty(),
		Stale:   stale,
	}, nil
}
