package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryArgs struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

func newTestServer(t *testing.T, auth *TokenAuth) (*httptest.Server, *Metrics) {
	t.Helper()
	reg := NewRegistry()
	reg.Register("dojo.members.summary", NoArgs(func(ctx context.Context) (any, error) {
		return map[string]any{"total_members": 42, "active_members": 40}, nil
	}))
	reg.Register("dojo.payments.summary", Typed(func(ctx context.Context, args summaryArgs) (any, error) {
		return map[string]any{"start_date": args.StartDate}, nil
	}))
	reg.Register("dojo.boom", NoArgs(func(ctx context.Context) (any, error) {
		return nil, errors.New("database unavailable")
	}))

	metrics := NewMetrics(prometheus.NewRegistry())
	router := chi.NewRouter()
	NewHandler(nil, reg, auth, metrics).MountRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, metrics
}

func TestHandlerWrapsResultInMessage(t *testing.T) {
	srv, metrics := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/method/dojo.members.summary", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 42, body["message"]["total_members"])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.calls.WithLabelValues("dojo.members.summary", "server", "ok")))
}

func TestHandlerAcceptsQueryAndFormArgs(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/method/dojo.payments.summary?start_date=2025-01-01")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.JSONEq(t, `{"start_date":"2025-01-01"}`, string(body.Message))

	form := url.Values{"start_date": {"2025-02-01"}}
	resp2, err := http.PostForm(srv.URL+"/api/method/dojo.payments.summary", form)
	require.NoError(t, err)
	defer resp2.Body.Close()
	var body2 Envelope
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body2))
	assert.JSONEq(t, `{"start_date":"2025-02-01"}`, string(body2.Message))
}

func TestHandlerProblemResponses(t *testing.T) {
	srv, metrics := newTestServer(t, nil)

	cases := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "unknown method", method: "dojo.nope", body: `{}`, status: http.StatusNotFound},
		{name: "invalid args", method: "dojo.payments.summary", body: `{"start_date":"yesterday"}`, status: http.StatusBadRequest},
		{name: "malformed json", method: "dojo.payments.summary", body: `{`, status: http.StatusBadRequest},
		{name: "handler failure", method: "dojo.boom", body: `{}`, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/method/"+tc.method, "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.calls.WithLabelValues("unknown", "server", "not_found")))
}

func TestClientCallsRemoteHost(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	srv, _ := newTestServer(t, NewTokenAuth("dashboard", hash))

	client, err := NewClient(srv.URL+"/", WithToken("dashboard", "s3cret"))
	require.NoError(t, err)

	var summary struct {
		Total  int `json:"total_members"`
		Active int `json:"active_members"`
	}
	require.NoError(t, client.Call(context.Background(), "dojo.members.summary", nil, &summary))
	assert.Equal(t, 42, summary.Total)
	assert.Equal(t, 40, summary.Active)

	err = client.Call(context.Background(), "dojo.nope", nil, nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.Status)
	assert.True(t, errors.Is(err, ErrMethodNotFound))

	err = client.Call(context.Background(), "dojo.boom", nil, nil)
	require.ErrorAs(t, err, &remote)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestClientRejectsBadCredentials(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	srv, _ := newTestServer(t, NewTokenAuth("dashboard", hash))

	client, err := NewClient(srv.URL, WithToken("dashboard", "wrong"))
	require.NoError(t, err)
	err = client.Call(context.Background(), "dojo.members.summary", nil, nil)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	anonymous, err := NewClient(srv.URL)
	require.NoError(t, err)
	err = anonymous.Call(context.Background(), "dojo.members.summary", nil, nil)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client, err := NewClient(addr)
	require.NoError(t, err)
	err = client.Call(context.Background(), "dojo.members.summary", nil, nil)
	assert.True(t, errors.Is(err, ErrTransport))

	_, err = NewClient("ftp://example.com")
	assert.Error(t, err)
}

func TestParseToken(t *testing.T) {
	key, secret, ok := parseToken("Token abc:def")
	assert.True(t, ok)
	assert.Equal(t, "abc", key)
	assert.Equal(t, "def", secret)

	for _, header := range []string{"", "Bearer abc", "token abc", "token :def", "token abc:"} {
		_, _, ok := parseToken(header)
		assert.False(t, ok, header)
	}
}
