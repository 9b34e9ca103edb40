package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/HARD953/distribut-sub001/apiclient"
	"github.com/HARD953/distribut-sub001/auth"
	"github.com/HARD953/distribut-sub001/dashboard"
	"github.com/HARD953/distribut-sub001/internal/config"
	"github.com/HARD953/distribut-sub001/internal/metrics"
	fakesessionrepo "github.com/HARD953/distribut-sub001/sessions/repofakes"
	"github.com/HARD953/distribut-sub001/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const userJSON = `{"id":7,"username":"alice","profile":{"role":{"name":"commercial","dashboard":true,"points_vente":true,"commandes":true,"inventaire":false}}}`

type backendCall struct {
	method      string
	uri         string
	auth        string
	contentType string
	body        []byte
}

type testFixture struct {
	t       *testing.T
	backend *httptest.Server
	repo    *fakesessionrepo.FakeSessionRepo
	store   *auth.SessionStore
	handler http.Handler

	mu        sync.Mutex
	calls     []backendCall
	access    string // Access token the backend currently accepts
	refreshOK bool
	dashboard int
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("CORS_ORIGINS", "http://console.local")

	f := &testFixture{t: t, access: "A1", repo: fakesessionrepo.NewFakeSessionRepo()}
	f.backend = httptest.NewServer(http.HandlerFunc(f.serveBackend))
	t.Cleanup(f.backend.Close)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	api, err := apiclient.New(f.backend.URL+"/api", apiclient.WithLogger(zerolog.Nop()), apiclient.WithMetrics(m))
	require.NoError(t, err)
	f.store, err = auth.NewSessionStore(f.repo, api, auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	cache, err := dashboard.NewCache(api)
	require.NoError(t, err)
	cache.Attach(f.store)

	srv, err := server.New(config.New(), f.store, api, cache, server.WithLogger(zerolog.Nop()), server.WithGatherer(reg))
	require.NoError(t, err)
	f.handler = srv
	return f
}

func (f *testFixture) serveBackend(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, backendCall{
		method:      r.Method,
		uri:         r.URL.RequestURI(),
		auth:        r.Header.Get("Authorization"),
		contentType: r.Header.Get("Content-Type"),
		body:        body,
	})
	authorized := r.Header.Get("Authorization") == "Bearer "+f.access
	refreshOK := f.refreshOK
	if r.URL.Path == "/api/dashboard/" {
		f.dashboard++
	}
	dashboardHits := f.dashboard
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/token/":
		if !bytes.Contains(body, []byte(`"password":"pw"`)) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"No active account found with the given credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access":"A1","refresh":"R1"}`)
	case r.URL.Path == "/api/token/refresh/":
		if !refreshOK {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"access":"A2"}`)
	case !authorized:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Given token not valid for any token type"}`)
	case r.URL.Path == "/api/users/":
		_, _ = io.WriteString(w, userJSON)
	case r.URL.Path == "/api/dashboard/":
		_, _ = io.WriteString(w, `{"hits":`+strconv.Itoa(dashboardHits)+`}`)
	case r.URL.Path == "/api/orders/" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"quantity":["Ensure this value is greater than 0."]}`)
	case r.URL.Path == "/api/orders/":
		_, _ = io.WriteString(w, `{"count":1,"results":[{"id":1}]}`)
	case r.URL.Path == "/api/points-vente/":
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":4}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *testFixture) setBackend(fn func(f *testFixture)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *testFixture) backendCalls() []backendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backendCall(nil), f.calls...)
}

func (f *testFixture) do(method, target string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) login() {
	f.t.Helper()
	rec := f.do(http.MethodPost, server.RouteSessionLogin, strings.NewReader(`{"username":"alice","password":"pw"}`), "Content-Type", "application/json")
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := server.New(nil, nil, nil, nil)
	require.Error(t, err)
}

func TestSessionLogin(t *testing.T) {
	t.Run("json success", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteSessionLogin, strings.NewReader(`{"username":"alice","password":"pw"}`), "Content-Type", "application/json")
		require.Equal(t, http.StatusOK, rec.Code)

		var view server.SessionView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		require.Equal(t, "alice", view.User.Username)
		require.Len(t, view.Capabilities, 3)
		require.Equal(t, auth.Authenticated, f.store.State())
	})

	t.Run("invalid credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteSessionLogin, strings.NewReader(`{"username":"alice","password":"nope"}`), "Content-Type", "application/json")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "No active account found with the given credentials", decode(t, rec)["error"])
		require.Empty(t, f.repo.Slots())
	})

	t.Run("htmx form failure redirects to login", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteSessionLogin, strings.NewReader("username=alice&password=nope"),
			"Content-Type", "application/x-www-form-urlencoded", "HX-Request", "true")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.True(t, strings.HasPrefix(rec.Header().Get("HX-Redirect"), server.RouteLogin+"?error="))
	})

	t.Run("htmx form success redirects to dashboard", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteSessionLogin, strings.NewReader("username=alice&password=pw"),
			"Content-Type", "application/x-www-form-urlencoded", "HX-Request", "true")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, server.RouteDashboard, rec.Header().Get("HX-Redirect"))
	})

	t.Run("malformed body", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteSessionLogin, strings.NewReader(`{`), "Content-Type", "application/json")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, f.backendCalls())
	})
}

func TestSessionMeAndLogout(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(http.MethodGet, server.RouteSessionMe, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "session_expired", body["error"])
	require.Equal(t, server.RouteLogin, body["redirect"])

	f.login()
	rec = f.do(http.MethodGet, server.RouteSessionMe, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = f.do(http.MethodPost, server.RouteSessionLogout, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	require.Empty(t, f.repo.Slots())

	rec = f.do(http.MethodGet, server.RouteSessionMe, nil, "HX-Request", "true")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "/login?error=Session+expired", rec.Header().Get("HX-Redirect"))
}

func TestDashboard(t *testing.T) {
	f := setupTestFixture(t)
	f.login()

	rec := f.do(http.MethodGet, server.RouteDashboard, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"hits":1}`, rec.Body.String())

	rec = f.do(http.MethodGet, server.RouteDashboard, nil)
	require.JSONEq(t, `{"hits":1}`, rec.Body.String())

	// Logout drops the cached payload.
	f.do(http.MethodPost, server.RouteSessionLogout, nil)
	f.login()
	rec = f.do(http.MethodGet, server.RouteDashboard, nil)
	require.JSONEq(t, `{"hits":2}`, rec.Body.String())

	// So does a login that replaces the current session.
	f.login()
	rec = f.do(http.MethodGet, server.RouteDashboard, nil)
	require.JSONEq(t, `{"hits":3}`, rec.Body.String())
}

func TestProxy(t *testing.T) {
	f := setupTestFixture(t)
	f.login()

	t.Run("relays response with bearer", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/orders/?page=2", nil, "Accept-Language", "fr")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"count":1,"results":[{"id":1}]}`, rec.Body.String())
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		calls := f.backendCalls()
		last := calls[len(calls)-1]
		require.Equal(t, "/api/orders/?page=2", last.uri)
		require.Equal(t, "Bearer A1", last.auth)
	})

	t.Run("validation errors pass through", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/orders/", strings.NewReader(`{"quantity":0}`), "Content-Type", "application/json")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"quantity":["Ensure this value is greater than 0."]}`, rec.Body.String())
		calls := f.backendCalls()
		require.JSONEq(t, `{"quantity":0}`, string(calls[len(calls)-1].body))
	})

	t.Run("capability denied", func(t *testing.T) {
		before := len(f.backendCalls())
		rec := f.do(http.MethodGet, "/api/products/", nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "inventaire", decode(t, rec)["capability"])
		require.Len(t, f.backendCalls(), before)
	})

	t.Run("encoded delimiters cannot skip the gate", func(t *testing.T) {
		before := len(f.backendCalls())
		for _, target := range []string{"/api/products%3F/", "/api/products%23/", "/api/products%3F"} {
			rec := f.do(http.MethodGet, target, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, target)
		}
		require.Len(t, f.backendCalls(), before)
	})

	t.Run("multipart forwarded with its boundary", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("name", "Boutique"))
		part, err := mw.CreateFormFile("photo", "shop.jpg")
		require.NoError(t, err)
		_, _ = part.Write([]byte("jpeg"))
		require.NoError(t, mw.Close())

		rec := f.do(http.MethodPost, "/api/points-vente/", bytes.NewReader(buf.Bytes()), "Content-Type", mw.FormDataContentType())
		require.Equal(t, http.StatusCreated, rec.Code)

		calls := f.backendCalls()
		last := calls[len(calls)-1]
		require.Equal(t, mw.FormDataContentType(), last.contentType)
		require.Equal(t, buf.Bytes(), last.body)
	})
}

func TestProxySessionExpiry(t *testing.T) {
	f := setupTestFixture(t)
	f.login()
	f.setBackend(func(f *testFixture) { f.access = "other" })

	rec := f.do(http.MethodGet, "/api/orders/", nil, "HX-Request", "true")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "session_expired", decode(t, rec)["error"])
	require.Equal(t, "/login?error=Session+expired", rec.Header().Get("HX-Redirect"))
	require.Equal(t, auth.Unauthenticated, f.store.State())
	require.Empty(t, f.repo.Slots())

	rec = f.do(http.MethodGet, "/api/orders/", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProxyRefreshTransparent(t *testing.T) {
	f := setupTestFixture(t)
	f.login()
	f.setBackend(func(f *testFixture) {
		f.access = "A2"
		f.refreshOK = true
	})

	rec := f.do(http.MethodGet, "/api/orders/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "A2", f.store.AccessToken())
}

func TestOperationalRoutes(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(http.MethodGet, server.RouteHealth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "unauthenticated", decode(t, rec)["session"])

	rec = f.do(http.MethodGet, server.RouteLogin+"?error=Session+expired", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Session expired", decode(t, rec)["error"])

	f.login()
	rec = f.do(http.MethodGet, server.RouteMetrics, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "console_api_requests_total")
}

func TestCorsPreflight(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.do(http.MethodOptions, "/api/orders/", nil, "Origin", "http://console.local")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://console.local", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = f.do(http.MethodOptions, "/api/orders/", nil, "Origin", "http://evil.example")
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t)
	srv := f.handler.(*server.Server)
	h := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, srv.RecoverMiddleware)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
