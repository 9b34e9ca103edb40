package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/HARD953/distribut-sub001/apiclient"
	"github.com/HARD953/distribut-sub001/auth"
	"github.com/HARD953/distribut-sub001/internal/errors"
	"github.com/HARD953/distribut-sub001/token"
	"github.com/HARD953/distribut-sub001/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionView is the body of a successful login and of /session/me.
type SessionView struct {
	User         *users.SessionUser `json:"user"`
	Capabilities []users.Capability `json:"capabilities"`
}

func newSessionView(u *users.SessionUser) SessionView {
	caps := u.Capabilities()
	if caps == nil {
		caps = []users.Capability{}
	}
	return SessionView{User: u, Capabilities: caps}
}

// LoginHintHandler is the login entry point. The front-end renders the form;
// the gateway only reports where credentials go and any pending error.
func (s *Server) LoginHintHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"app":           s.config.GetAppName(),
			"login":         RouteSessionLogin,
			"authenticated": s.store.State() == auth.Authenticated,
			"error":         r.URL.Query().Get("error"),
		})
	}
}

// SessionLoginHandler accepts JSON {username,password} or a login form.
func (s *Server) SessionLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := readCredentials(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := s.store.Login(r.Context(), creds)
		if err != nil {
			var loginErr *auth.LoginError
			if !errors.As(err, &loginErr) {
				writeError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			if isHTMXRequest(r) {
				redirectWithError(w, r, RouteLogin, loginErr.Message)
				return
			}
			writeError(w, loginStatus(loginErr), loginErr.Message)
			return
		}

		if isHTMXRequest(r) {
			redirectSuccess(w, r, RouteDashboard)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(user))
	}
}

func readCredentials(w http.ResponseWriter, r *http.Request) (token.Credentials, error) {
	var creds token.Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return creds, err
		}
		creds.Username = r.PostFormValue("username")
		creds.Password = r.PostFormValue("password")
		return creds, nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&creds)
	return creds, err
}

func loginStatus(e *auth.LoginError) int {
	switch {
	case errors.Is(e.Reason, auth.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(e.Reason, auth.ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(e.Reason, auth.ErrServer):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) SessionLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.store.Logout()
		if isHTMXRequest(r) {
			redirectSuccess(w, r, RouteLogin)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) SessionMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.store.User()
		if user == nil {
			sessionExpired(w, r)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(user))
	}
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := s.cache.Get(r.Context())
		if err != nil {
			s.writeBackendError(w, r, nil, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Last-Modified", entry.FetchedAt.UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(entry.Payload)
	}
}

func (s *Server) MetricsHandler() http.HandlerFunc {
	h := promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	return h.ServeHTTP
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"session": s.store.State().String(),
		})
	}
}

// writeBackendError maps an API client failure onto the gateway response.
// Backend answers other than a terminal 401 are relayed verbatim.
func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, resp *apiclient.Response, err error) {
	switch {
	case errors.Is(err, apiclient.ErrAuthExpired):
		sessionExpired(w, r)
	case resp != nil:
		relay(w, resp)
	case errors.Is(err, apiclient.ErrNetwork):
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("backend unreachable")
		writeError(w, http.StatusBadGateway, "backend_unreachable")
	default:
		if apiErr, ok := apiclient.AsError(err); ok && apiErr.StatusCode != 0 {
			writeJSON(w, apiErr.StatusCode, map[string]string{"error": apiErr.Detail})
			return
		}
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("gateway request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func relay(w http.ResponseWriter, resp *apiclient.Response) {
	w.Header().Set("Content-Type", resp.ContentType())
	if id := resp.RequestID; id != "" {
		w.Header().Set("X-Request-ID", id)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
