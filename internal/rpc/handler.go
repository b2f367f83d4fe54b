package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/dojo-planner/dojo/internal/platform/httpx"
)

const maxArgsBytes = 1 << 20

// Envelope is the success body of every call.
type Envelope struct {
	Message json.RawMessage `json:"message"`
}

// Handler exposes a Registry over HTTP.
type Handler struct {
	registry *Registry
	auth     *TokenAuth
	metrics  *Metrics
	logger   *slog.Logger
}

// NewHandler constructs the HTTP endpoint for registry.
func NewHandler(logger *slog.Logger, registry *Registry, auth *TokenAuth, metrics *Metrics) *Handler {
	return &Handler{registry: registry, auth: auth, metrics: metrics, logger: logger}
}

// MountRoutes registers /api/method/{method} for GET and POST.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.Limit(600, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		gr.Get("/api/method/{method}", h.handleCall)
		gr.Post("/api/method/{method}", h.handleCall)
	})
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "method")
	label := name
	if _, ok := h.registry.Lookup(name); !ok {
		label = "unknown"
	}

	result, err := h.serve(r, name)
	h.metrics.observe(label, "server", start, err)
	if err != nil {
		h.respondError(w, name, err)
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		h.respondError(w, name, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Envelope{Message: payload})
}

func (h *Handler) serve(r *http.Request, name string) (any, error) {
	if err := h.auth.Verify(r.Header.Get("Authorization")); err != nil {
		return nil, err
	}
	args, err := readArgs(r)
	if err != nil {
		return nil, err
	}
	return h.registry.Dispatch(r.Context(), name, args)
}

func (h *Handler) respondError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrUnauthorized):
	default:
		if h.logger != nil {
			h.logger.Error("rpc call", slog.String("method", name), slog.Any("error", err))
		}
	}
	httpx.RespondError(w, err)
}

// readArgs collects call arguments from a JSON body, a form body or the
// query string. Form values holding JSON objects or arrays are decoded so
// that filters can be sent as encoded strings.
func readArgs(r *http.Request) (json.RawMessage, error) {
	if r.Method == http.MethodPost {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/json" {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxArgsBytes))
			if err != nil {
				return nil, err
			}
			if len(strings.TrimSpace(string(body))) == 0 {
				return json.RawMessage("{}"), nil
			}
			if !json.Valid(body) {
				return nil, ErrInvalidArgs
			}
			return json.RawMessage(body), nil
		}
		if err := r.ParseForm(); err != nil {
			return nil, ErrInvalidArgs
		}
		return valuesToJSON(r.Form)
	}
	return valuesToJSON(r.URL.Query())
}

func valuesToJSON(values map[string][]string) (json.RawMessage, error) {
	args := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		raw := strings.TrimSpace(vals[0])
		if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
			var decoded any
			if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
				args[key] = decoded
				continue
			}
		}
		args[key] = vals[0]
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return data, nil
}
