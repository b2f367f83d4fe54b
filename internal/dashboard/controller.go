// Package dashboard implements the dojo dashboard page controller. A
// Controller owns the page state for one viewer: summary stats, the earnings
// and members charts, the recommendations and activity panels, and the
// refresh timer that reloads them.
//
// All state changes run on the controller's event loop goroutine. Remote
// calls run concurrently and post their results back to the loop, where
// they apply in arrival order.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dojo-planner/dojo/internal/platform/httpx"
	"github.com/dojo-planner/dojo/internal/rpc"
	"github.com/dojo-planner/dojo/internal/shared"
)

// Chart anchors in the page template.
const (
	EarningsAnchor = "earnings-chart"
	MembersAnchor  = "members-chart"
)

// DefaultRefreshInterval reloads every region every five minutes.
const DefaultRefreshInterval = 5 * time.Minute

// DefaultDateFormat renders earnings chart labels.
const DefaultDateFormat = "02-01-2006"

var (
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("dashboard: page closed")
	// ErrUnknownPanel rejects toggles for controls the page does not have.
	ErrUnknownPanel = fmt.Errorf("dashboard: unknown panel: %w", httpx.ErrValidation)
)

// GrowthSource selects where the members chart gets its data.
type GrowthSource string

// Growth sources.
const (
	GrowthSimulated GrowthSource = "simulated"
	GrowthRemote    GrowthSource = "remote"
)

// Layout records which chart anchors exist in the rendered page.
type Layout struct {
	EarningsAnchor bool
	MembersAnchor  bool
}

// LayoutFrom builds a Layout from a lookup of defined template blocks.
func LayoutFrom(defined func(name string) bool) Layout {
	return Layout{EarningsAnchor: defined(EarningsAnchor), MembersAnchor: defined(MembersAnchor)}
}

// Config tunes a Controller.
type Config struct {
	RefreshInterval time.Duration
	// CallTimeout bounds each remote call; zero leaves calls unbounded.
	CallTimeout time.Duration
	Growth      GrowthSource
	Location    *time.Location
	DateFormat  string
}

func (c Config) withDefaults() Config {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.Growth == "" {
		c.Growth = GrowthSimulated
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.DateFormat == "" {
		c.DateFormat = DefaultDateFormat
	}
	return c
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRand overrides the random source behind simulated growth.
func WithRand(r Rand) Option {
	return func(c *Controller) {
		if r != nil {
			c.rng = r
		}
	}
}

// WithLogger sets the logger used for failed calls.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns one dashboard page.
type Controller struct {
	caller rpc.Caller
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	rng    Rand

	mu    sync.RWMutex
	state State

	cmds   chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	flight   sync.Mutex
	inflight int
	idle     chan struct{}
}

// New initialises a page: it builds the chart widgets for the anchors in
// layout, starts the event loop and refresh timer, and triggers the first
// load. The page lives until Close is called or ctx ends.
func New(ctx context.Context, caller rpc.Caller, layout Layout, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		caller: caller,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
		now:    time.Now,
		cmds:   make(chan func()),
		done:   make(chan struct{}),
		idle:   closedChan(),
		state: State{
			Lifecycle:       Uninitialized,
			EarningsPeriod:  DefaultEarningsPeriod,
			MembersPeriod:   DefaultMembersPeriod,
			Recommendations: []Recommendation{},
			Activities:      []Activity{},
			Revisions:       make(map[Region]int, len(Regions)),
			Errors:          make(map[Region]string),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = NewRand()
	}

	if layout.EarningsAnchor {
		c.state.EarningsChart = NewChart(EarningsAnchor, "Earnings", "#007bff", "rgba(0, 123, 255, 0.1)")
	}
	if layout.MembersAnchor {
		c.state.MembersChart = NewChart(MembersAnchor, "Active Members", "#28a745", "rgba(40, 167, 69, 0.1)")
	}
	c.state.Lifecycle = Active
	c.state.UpdatedAt = c.now()

	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run()
	c.post(c.loadAll)
	return c
}

// Snapshot returns a copy of the current page state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// LoadAll reloads every region.
func (c *Controller) LoadAll() error {
	return c.command(c.loadAll)
}

// SetEarningsPeriod reloads only the earnings chart for period.
func (c *Controller) SetEarningsPeriod(period string) error {
	return c.command(func() { c.loadEarnings(period) })
}

// SetMembersPeriod reloads only the members chart for period.
func (c *Controller) SetMembersPeriod(period string) error {
	return c.command(func() { c.loadMembers(period) })
}

// TogglePanel flips the visibility of panel and always hides the other one.
func (c *Controller) TogglePanel(panel Panel) error {
	if panel != PanelRecommendations && panel != PanelActivity {
		return fmt.Errorf("%w: %q", ErrUnknownPanel, panel)
	}
	return c.command(func() {
		c.update(func(s *State) {
			if panel == PanelRecommendations {
				s.Panels.Recommendations = !s.Panels.Recommendations
				s.Panels.Activity = false
			} else {
				s.Panels.Activity = !s.Panels.Activity
				s.Panels.Recommendations = false
			}
		})
	})
}

// Settle blocks until no command or remote call is outstanding.
func (c *Controller) Settle(ctx context.Context) error {
	for {
		c.flight.Lock()
		if c.inflight == 0 {
			c.flight.Unlock()
			return nil
		}
		idle := c.idle
		c.flight.Unlock()

		select {
		case <-idle:
		case <-c.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops the refresh timer and the event loop. Results of calls still
// in flight are discarded. Close is idempotent.
func (c *Controller) Close() {
	c.cancel()
	<-c.done
}

// Done is closed once the page has shut down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			c.update(func(s *State) { s.Lifecycle = Closed })
			return
		case fn := <-c.cmds:
			fn()
			c.end()
		case <-ticker.C:
			c.loadAll()
		}
	}
}

func (c *Controller) command(fn func()) error {
	if !c.post(fn) {
		return ErrClosed
	}
	return nil
}

// post hands fn to the event loop. It must not be called from the loop.
func (c *Controller) post(fn func()) bool {
	if c.ctx.Err() != nil {
		return false
	}
	c.begin()
	select {
	case c.cmds <- fn:
		return true
	case <-c.ctx.Done():
		c.end()
		return false
	}
}

func (c *Controller) begin() {
	c.flight.Lock()
	defer c.flight.Unlock()
	if c.inflight == 0 {
		c.idle = make(chan struct{})
	}
	c.inflight++
}

func (c *Controller) end() {
	c.flight.Lock()
	defer c.flight.Unlock()
	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
	}
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.state.UpdatedAt = c.now()
}

// apply runs fn against the state for a finished call. Failures keep the
// previous values and mark the region stale.
func (c *Controller) apply(region Region, err error, fn func(*State) error) {
	if c.ctx.Err() != nil {
		return
	}
	if err == nil {
		c.mu.Lock()
		err = fn(&c.state)
		if err == nil {
			c.state.Revisions[region]++
			delete(c.state.Errors, region)
			c.state.UpdatedAt = c.now()
		}
		c.mu.Unlock()
	}
	if err != nil {
		c.update(func(s *State) { s.Errors[region] = err.Error() })
		c.logger.Warn("dashboard region failed to load", slog.String("region", string(region)), slog.Any("error", err))
	}
}

// dispatch issues a call off the loop and posts its result back to it.
func dispatch[T any](c *Controller, region Region, method string, args any, fn func(*State, T) error) {
	ctx, cancel := c.ctx, context.CancelFunc(func() {})
	if c.cfg.CallTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.cfg.CallTimeout)
	}
	c.begin()
	results := rpc.Go[T](ctx, c.caller, method, args)
	go func() {
		defer c.end()
		res := <-results
		cancel()
		c.post(func() {
			c.apply(region, res.Err, func(s *State) error { return fn(s, res.Value) })
		})
	}()
}

func (c *Controller) today() time.Time {
	return shared.Day(c.now().In(c.cfg.Location))
}

func (c *Controller) loadAll() {
	c.update(func(s *State) {
		s.Loads++
		s.LastLoad = c.now()
	})
	c.loadSummary()
	c.loadEarnings(DefaultEarningsPeriod)
	c.loadMembers(DefaultMembersPeriod)
	c.loadRecommendations()
	c.loadActivity()
}

func (c *Controller) loadSummary() {
	today := c.today()
	todayKey := today.Format(time.DateOnly)

	dispatch(c, RegionMembersSummary, rpc.MethodMembersSummary, nil, func(s *State, v membersSummaryReply) error {
		s.Stats.ActiveMembers = v.ActiveMembers
		s.Stats.MonthlyRevenue = v.MonthlyRevenue
		return nil
	})
	dispatch(c, RegionClassesToday, rpc.MethodWeeklySchedule, scheduleArgs{StartDate: todayKey}, func(s *State, v map[string][]map[string]any) error {
		s.Stats.ClassesToday = len(v[todayKey])
		return nil
	})
	monthStart := shared.MonthStart(today).Format(time.DateOnly)
	args := countArgs{Doctype: "Belt Promotion", Filters: map[string][]string{"promotion_date": {">=", monthStart}}}
	dispatch(c, RegionBeltPromotions, rpc.MethodGetCount, args, func(s *State, n int) error {
		s.Stats.BeltPromotions = n
		return nil
	})
}

func (c *Controller) loadEarnings(period string) {
	period = normalizePeriod(period, DefaultEarningsPeriod)
	today := c.today()
	start := EarningsStart(period, today)
	c.update(func(s *State) { s.EarningsPeriod = period })

	args := dateRangeArgs{StartDate: start.Format(time.DateOnly), EndDate: today.Format(time.DateOnly)}
	dispatch(c, RegionEarnings, rpc.MethodPaymentSummary, args, func(s *State, v paymentSummaryReply) error {
		if s.EarningsChart != nil {
			labels := make([]string, 0, len(v.DailyRevenue))
			values := make([]float64, 0, len(v.DailyRevenue))
			for _, d := range v.DailyRevenue {
				labels = append(labels, c.formatDate(d.PaymentDate))
				values = append(values, d.Total.InexactFloat64())
			}
			if err := s.EarningsChart.Update(labels, values); err != nil {
				return err
			}
		}
		s.Stats.TotalEarnings = v.TotalRevenue
		return nil
	})
}

func (c *Controller) loadMembers(period string) {
	period = normalizePeriod(period, DefaultMembersPeriod)
	c.update(func(s *State) { s.MembersPeriod = period })

	if c.cfg.Growth == GrowthRemote {
		dispatch(c, RegionMembers, rpc.MethodMemberGrowth, periodArgs{Period: period}, func(s *State, points []growthReply) error {
			if s.MembersChart == nil {
				return nil
			}
			labels := make([]string, 0, len(points))
			values := make([]float64, 0, len(points))
			for _, p := range points {
				labels = append(labels, formatMonth(p.Period))
				values = append(values, float64(p.TotalMembers))
			}
			return s.MembersChart.Update(labels, values)
		})
		return
	}

	labels := MemberLabels(period, c.today())
	values := SimulateGrowth(c.rng, len(labels))
	c.apply(RegionMembers, nil, func(s *State) error {
		if s.MembersChart == nil {
			return nil
		}
		return s.MembersChart.Update(labels, values)
	})
}

func (c *Controller) loadRecommendations() {
	dispatch(c, RegionRecommendations, rpc.MethodRecommendations, nil, func(s *State, items []recommendationReply) error {
		list := make([]Recommendation, 0, len(items))
		for _, it := range items {
			list = append(list, Recommendation{
				Title:       it.Title,
				Description: it.Description,
				Avatar:      avatarOrPlaceholder(it.Avatar),
				Action:      it.Action,
			})
		}
		s.Recommendations = list
		return nil
	})
}

func (c *Controller) loadActivity() {
	dispatch(c, RegionActivity, rpc.MethodRecentActivity, nil, func(s *State, items []activityReply) error {
		list := make([]Activity, 0, len(items))
		for _, it := range items {
			list = append(list, Activity{
				MemberName:  it.MemberName,
				Description: it.Description,
				Avatar:      avatarOrPlaceholder(it.Avatar),
				Member:      it.Member,
			})
		}
		s.Activities = list
		return nil
	})
}

func (c *Controller) formatDate(raw string) string {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return raw
	}
	return t.Format(c.cfg.DateFormat)
}

func formatMonth(raw string) string {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return raw
	}
	return t.Format(LabelFormat)
}

// normalizePeriod maps unrecognised selectors to fallback.
func normalizePeriod(period, fallback string) string {
	for _, p := range shared.Periods {
		if p == period {
			return p
		}
	}
	return fallback
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
