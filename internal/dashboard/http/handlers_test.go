package dashboardhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-planner/dojo/internal/dashboard"
	"github.com/dojo-planner/dojo/internal/rpc"
	"github.com/dojo-planner/dojo/internal/shared"
	"github.com/dojo-planner/dojo/internal/view"
)

var (
	testNow     = time.Date(2025, time.March, 31, 10, 0, 0, 0, time.UTC)
	discardLogs = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func newTestRegistry() *rpc.Registry {
	reg := rpc.NewRegistry()
	reg.Register(rpc.MethodMembersSummary, rpc.NoArgs(func(ctx context.Context) (any, error) {
		return map[string]any{"total_members": 60, "active_members": 42, "monthly_revenue": "1234.5"}, nil
	}))
	reg.Register(rpc.MethodWeeklySchedule, func(ctx context.Context, args json.RawMessage) (any, error) {
		var in struct {
			StartDate string `json:"start_date"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		return map[string]any{in.StartDate: []map[string]any{{"name": "CLS-1", "class_name": "Fundamentals"}}}, nil
	})
	reg.Register(rpc.MethodGetCount, func(ctx context.Context, args json.RawMessage) (any, error) {
		return 3, nil
	})
	reg.Register(rpc.MethodPaymentSummary, func(ctx context.Context, args json.RawMessage) (any, error) {
		return map[string]any{
			"total_revenue": "9876.5",
			"daily_revenue": []map[string]any{
				{"payment_date": "2025-03-01", "total": "150", "count": 1},
				{"payment_date": "2025-03-15", "total": "300", "count": 2},
				{"payment_date": "2025-03-30", "total": "225", "count": 1},
			},
		}, nil
	})
	reg.Register(rpc.MethodRecommendations, rpc.NoArgs(func(ctx context.Context) (any, error) {
		return []map[string]any{{
			"title":       "Follow up with new members",
			"description": "2 members joined in the last week",
			"action":      "follow_up_new_members",
			"priority":    "high",
		}}, nil
	}))
	reg.Register(rpc.MethodRecentActivity, rpc.NoArgs(func(ctx context.Context) (any, error) {
		return []map[string]any{{
			"member_name": "Ana Silva",
			"description": "has been charged $150.00 for monthly fee",
			"member":      "M-0001",
			"avatar":      "/files/ana.png",
		}}, nil
	}))
	return reg
}

func newTestHandler(t *testing.T) (*Handler, *Pages, http.Handler) {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)

	caller := rpc.NewLocal(newTestRegistry(), nil)
	layout := dashboard.LayoutFrom(templates.Defined)
	pages := NewPages(context.Background(), discardLogs, func(ctx context.Context) *dashboard.Controller {
		return dashboard.New(ctx, caller, layout, dashboard.Config{},
			dashboard.WithClock(func() time.Time { return testNow }),
			dashboard.WithLogger(discardLogs),
		)
	}, 30*time.Minute)
	t.Cleanup(pages.Shutdown)

	handler := NewHandler(discardLogs, pages, templates, shared.NewCSRFManager("test-secret"), 5*time.Minute)
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return handler, pages, router
}

func withSession(req *http.Request, id string) *http.Request {
	sess := &shared.Session{ID: id}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func fetchState(t *testing.T, router http.Handler, session string) dashboard.State {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(httptest.NewRequest(http.MethodGet, "/dojo/dashboard/state", nil), session))
	require.Equal(t, http.StatusOK, rr.Code)
	var state dashboard.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	return state
}

func TestLayoutMatchesTemplates(t *testing.T) {
	templates, err := view.NewEngine()
	require.NoError(t, err)
	assert.Equal(t, dashboard.Layout{EarningsAnchor: true, MembersAnchor: true}, dashboard.LayoutFrom(templates.Defined))
}

func TestDashboardPageRenders(t *testing.T) {
	_, pages, router := newTestHandler(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(httptest.NewRequest(http.MethodGet, "/dojo/dashboard", nil), "s1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, pages.Len())

	body := rr.Body.String()
	assert.Contains(t, body, "Dojo Dashboard")
	assert.Contains(t, body, `id="active-members">42<`)
	assert.Contains(t, body, `id="classes-today">1<`)
	assert.Contains(t, body, `id="belt-promotions">3<`)
	assert.Contains(t, body, "1,234.50")
	assert.Contains(t, body, "9,876.50")
	assert.Contains(t, body, `id="earnings-chart"`)
	assert.Contains(t, body, `id="members-chart"`)
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, `data-action="follow_up_new_members"`)
	assert.Contains(t, body, `data-member="M-0001"`)
	assert.Contains(t, body, dashboard.AvatarPlaceholder)
	assert.Contains(t, body, "/files/ana.png")
	assert.Contains(t, body, `id="recommended-actions-panel" hidden`)
	assert.Contains(t, body, `id="recent-activity-panel" hidden`)
	assert.Contains(t, body, `<option value="1year" selected>`)
	assert.Contains(t, body, `<option value="6months" selected>`)
	assert.NotContains(t, body, "stale")
}

func TestDashboardStateJSON(t *testing.T) {
	_, _, router := newTestHandler(t)

	state := fetchState(t, router, "s1")
	assert.Equal(t, dashboard.Active, state.Lifecycle)
	assert.Equal(t, 42, state.Stats.ActiveMembers)
	assert.Equal(t, "9876.5", state.Stats.TotalEarnings.String())
	for _, region := range dashboard.Regions {
		assert.Equal(t, 1, state.Revisions[region], region)
	}
	require.NotNil(t, state.EarningsChart)
	assert.Equal(t, []string{"01-03-2025", "15-03-2025", "30-03-2025"}, state.EarningsChart.Labels)
}

func TestPagesAreKeyedBySession(t *testing.T) {
	_, pages, router := newTestHandler(t)

	fetchState(t, router, "s1")
	fetchState(t, router, "s2")
	fetchState(t, router, "s1")
	assert.Equal(t, 2, pages.Len())
}

func TestEarningsPeriodChange(t *testing.T) {
	_, _, router := newTestHandler(t)
	fetchState(t, router, "s1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(postForm("/dojo/dashboard/earnings-period", url.Values{"period": {"3months"}}), "s1"))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dojo/dashboard", rr.Header().Get("Location"))

	state := fetchState(t, router, "s1")
	assert.Equal(t, "3months", state.EarningsPeriod)
	assert.Equal(t, 2, state.Revisions[dashboard.RegionEarnings])
	assert.Equal(t, 1, state.Revisions[dashboard.RegionRecommendations])
}

func TestMembersPeriodChange(t *testing.T) {
	_, _, router := newTestHandler(t)
	fetchState(t, router, "s1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(postForm("/dojo/dashboard/members-period", url.Values{"period": {"1month"}}), "s1"))
	require.Equal(t, http.StatusSeeOther, rr.Code)

	state := fetchState(t, router, "s1")
	assert.Equal(t, "1month", state.MembersPeriod)
	assert.Equal(t, []string{"Feb 2025", "Mar 2025"}, state.MembersChart.Labels)
}

func TestPeriodFormRejectsOversizedValue(t *testing.T) {
	_, _, router := newTestHandler(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(postForm("/dojo/dashboard/earnings-period", url.Values{"period": {strings.Repeat("x", 40)}}), "s1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "problem+json")
}

func TestPanelToggleRoutes(t *testing.T) {
	_, _, router := newTestHandler(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(postForm("/dojo/dashboard/panels/recommended-actions/toggle", nil), "s1"))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, dashboard.Panels{Recommendations: true}, fetchState(t, router, "s1").Panels)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(postForm("/dojo/dashboard/panels/recent-activity/toggle", nil), "s1"))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, dashboard.Panels{Activity: true}, fetchState(t, router, "s1").Panels)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(httptest.NewRequest(http.MethodGet, "/dojo/dashboard", nil), "s1"))
	assert.Contains(t, rr.Body.String(), `id="recent-activity-panel">`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(postForm("/dojo/dashboard/panels/quick-actions/toggle", nil), "s1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRefreshReloadsEverything(t *testing.T) {
	_, _, router := newTestHandler(t)
	fetchState(t, router, "s1")

	sess := &shared.Session{ID: "s1"}
	req := postForm("/dojo/dashboard/refresh", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Dashboard data reloaded", flash.Message)

	state := fetchState(t, router, "s1")
	assert.Equal(t, 2, state.Loads)
	for _, region := range dashboard.Regions {
		assert.Equal(t, 2, state.Revisions[region], region)
	}
}

func TestClosePage(t *testing.T) {
	_, pages, router := newTestHandler(t)
	fetchState(t, router, "s1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withSession(postForm("/dojo/dashboard/close", nil), "s1"))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, pages.Len())

	state := fetchState(t, router, "s1")
	assert.Equal(t, 1, state.Loads)
	assert.Equal(t, 1, pages.Len())
}

func TestMissingSessionIsForbidden(t *testing.T) {
	_, _, router := newTestHandler(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/dojo/dashboard", nil),
		httptest.NewRequest(http.MethodGet, "/dojo/dashboard/state", nil),
		postForm("/dojo/dashboard/refresh", nil),
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code, req.URL.Path)
	}
}

func TestPagesSweepIdle(t *testing.T) {
	caller := rpc.NewLocal(newTestRegistry(), nil)
	now := testNow
	pages := NewPages(context.Background(), discardLogs, func(ctx context.Context) *dashboard.Controller {
		return dashboard.New(ctx, caller, dashboard.Layout{}, dashboard.Config{}, dashboard.WithLogger(discardLogs))
	}, time.Minute)
	pages.WithNow(func() time.Time { return now })
	t.Cleanup(pages.Shutdown)

	idle := pages.Open("idle")
	pages.Open("busy")
	now = now.Add(45 * time.Second)
	pages.Open("busy")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, pages.Sweep())
	assert.Equal(t, 1, pages.Len())
	select {
	case <-idle.Done():
	case <-time.After(time.Second):
		t.Fatal("idle page was not closed")
	}
	assert.Equal(t, dashboard.Closed, idle.Snapshot().Lifecycle)
}

func TestPagesReopenClosedPage(t *testing.T) {
	caller := rpc.NewLocal(newTestRegistry(), nil)
	pages := NewPages(context.Background(), discardLogs, func(ctx context.Context) *dashboard.Controller {
		return dashboard.New(ctx, caller, dashboard.Layout{}, dashboard.Config{}, dashboard.WithLogger(discardLogs))
	}, time.Minute)
	t.Cleanup(pages.Shutdown)

	first := pages.Open("s1")
	first.Close()
	second := pages.Open("s1")
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, pages.Len())
}

func TestPagesShutdownClosesAll(t *testing.T) {
	caller := rpc.NewLocal(newTestRegistry(), nil)
	pages := NewPages(context.Background(), discardLogs, func(ctx context.Context) *dashboard.Controller {
		return dashboard.New(ctx, caller, dashboard.Layout{}, dashboard.Config{}, dashboard.WithLogger(discardLogs))
	}, time.Minute)

	a := pages.Open("a")
	b := pages.Open("b")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pages.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done

	assert.Zero(t, pages.Len())
	for _, c := range []*dashboard.Controller{a, b} {
		select {
		case <-c.Done():
		default:
			t.Fatal("page still open after shutdown")
		}
	}
}
