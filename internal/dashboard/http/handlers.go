// Package dashboardhttp serves the dojo dashboard page.
package dashboardhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dojo-planner/dojo/internal/dashboard"
	"github.com/dojo-planner/dojo/internal/dashboard/ui"
	"github.com/dojo-planner/dojo/internal/platform/httpx"
	"github.com/dojo-planner/dojo/internal/shared"
	"github.com/dojo-planner/dojo/internal/view"
)

const (
	pagePath            = "/dojo/dashboard"
	defaultSettleWindow = 2 * time.Second
)

var errNoSession = fmt.Errorf("dashboard: session missing: %w", httpx.ErrForbidden)

// Handler coordinates HTTP requests for the dashboard page.
type Handler struct {
	logger    *slog.Logger
	pages     *Pages
	templates *view.Engine
	csrf      *shared.CSRFManager
	validate  *validator.Validate
	refresh   time.Duration
	settle    time.Duration
}

// NewHandler constructs the dashboard HTTP handler. refresh is advertised
// to the browser so the rendered page follows the controller's reloads.
func NewHandler(logger *slog.Logger, pages *Pages, templates *view.Engine, csrf *shared.CSRFManager, refresh time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		pages:     pages,
		templates: templates,
		csrf:      csrf,
		validate:  validator.New(),
		refresh:   refresh,
		settle:    defaultSettleWindow,
	}
}

// WithSettleWindow bounds how long a page render waits for in-flight loads.
func (h *Handler) WithSettleWindow(d time.Duration) {
	if d > 0 {
		h.settle = d
	}
}

type periodForm struct {
	// Unrecognised selectors fall back to the default window.
	Period string `validate:"max=16,printascii"`
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, errNoSession)
		return
	}
	ctrl := h.pages.Open(sess.ID)
	h.waitForLoads(r.Context(), ctrl)

	vm, err := ui.Build(ctrl.Snapshot(), h.templates.Money().Format, h.refresh)
	if err != nil {
		h.handleServerError(w, "build dashboard view", err)
		return
	}

	csrfToken := ""
	if h.csrf != nil {
		if csrfToken, err = h.csrf.EnsureToken(r.Context(), sess); err != nil {
			h.handleServerError(w, "csrf token", err)
			return
		}
	}
	data := view.TemplateData{
		Title:       "Dashboard",
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        vm,
	}
	if err := h.templates.Render(w, "pages/dashboard.html", data); err != nil {
		h.handleServerError(w, "render dashboard", err)
	}
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, errNoSession)
		return
	}
	ctrl := h.pages.Open(sess.ID)
	h.waitForLoads(r.Context(), ctrl)
	httpx.JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleEarningsPeriod(w http.ResponseWriter, r *http.Request) {
	h.handlePeriod(w, r, (*dashboard.Controller).SetEarningsPeriod)
}

func (h *Handler) handleMembersPeriod(w http.ResponseWriter, r *http.Request) {
	h.handlePeriod(w, r, (*dashboard.Controller).SetMembersPeriod)
}

func (h *Handler) handlePeriod(w http.ResponseWriter, r *http.Request, set func(*dashboard.Controller, string) error) {
	if err := r.ParseForm(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	form := periodForm{Period: strings.TrimSpace(r.PostFormValue("period"))}
	if err := h.validate.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: period", httpx.ErrValidation))
		return
	}
	h.mutate(w, r, func(c *dashboard.Controller) error { return set(c, form.Period) })
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	panel := dashboard.Panel(chi.URLParam(r, "panel"))
	h.mutate(w, r, func(c *dashboard.Controller) error { return c.TogglePanel(panel) })
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *dashboard.Controller) error {
		if err := c.LoadAll(); err != nil {
			return err
		}
		shared.SessionFromContext(r.Context()).AddFlash(shared.FlashMessage{Kind: "info", Message: "Dashboard data reloaded"})
		return nil
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, errNoSession)
		return
	}
	h.pages.Close(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// mutate applies fn to the session's page and sends the browser back to it.
// A page closed underneath the request is reopened once.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*dashboard.Controller) error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, errNoSession)
		return
	}
	err := fn(h.pages.Open(sess.ID))
	if errors.Is(err, dashboard.ErrClosed) {
		h.pages.Close(sess.ID)
		err = fn(h.pages.Open(sess.ID))
	}
	if err != nil {
		if errors.Is(err, dashboard.ErrClosed) {
			err = fmt.Errorf("%w: %v", httpx.ErrGone, err)
		}
		h.respondError(w, err)
		return
	}
	httpx.SeeOther(w, r, pagePath)
}

func (h *Handler) waitForLoads(ctx context.Context, ctrl *dashboard.Controller) {
	ctx, cancel := context.WithTimeout(ctx, h.settle)
	defer cancel()
	if err := ctrl.Settle(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		h.logger.Warn("dashboard settle", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error("dashboard request", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logger.Error(context, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
