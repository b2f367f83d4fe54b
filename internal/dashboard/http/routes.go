package dashboardhttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/dojo-planner/dojo/internal/shared"
)

// MountRoutes registers the dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get(pagePath, h.handlePage)
	r.Get(pagePath+"/state", h.handleState)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post(pagePath+"/earnings-period", h.handleEarningsPeriod)
		gr.Post(pagePath+"/members-period", h.handleMembersPeriod)
		gr.Post(pagePath+"/panels/{panel}/toggle", h.handleToggle)
		gr.Post(pagePath+"/refresh", h.handleRefresh)
		gr.Post(pagePath+"/close", h.handleClose)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if id := strings.TrimSpace(shared.SessionID(r.Context())); id != "" {
		return "session:" + id, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
