package server

import (
	"net/http"
	"strings"

	"github.com/HARD953/distribut-sub001/auth"
	"github.com/HARD953/distribut-sub001/users"
)

type forbiddenBody struct {
	Error      string           `json:"error"`
	Capability users.Capability `json:"capability"`
}

// RequireSession rejects requests while the store holds no authenticated
// session.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.store.State() != auth.Authenticated {
				sessionExpired(w, r)
				return
			}
			next(w, r)
		}
	}
}

// RequireCapability denies the route unless the user holds c.
func (s *Server) RequireCapability(c users.Capability) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !s.store.Can(c) {
				writeJSON(w, http.StatusForbidden, forbiddenBody{Error: "forbidden", Capability: c})
				return
			}
			next(w, r)
		}
	}
}

// RequirePathCapability gates proxied resources by the section they belong
// to. Paths outside any section are left to the backend. A decoded path that
// still holds a query or fragment delimiter is refused, since the gate and
// the backend would disagree on where it points.
func (s *Server) RequirePathCapability() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p := backendPath(r)
			if strings.ContainsAny(p, "?#") {
				writeError(w, http.StatusBadRequest, "invalid path")
				return
			}
			c, ok := users.CapabilityForPath(p)
			if ok && !s.store.Can(c) {
				writeJSON(w, http.StatusForbidden, forbiddenBody{Error: "forbidden", Capability: c})
				return
			}
			next(w, r)
		}
	}
}

// backendPath strips the proxy prefix: /api/orders/ -> /orders/
func backendPath(r *http.Request) string {
	p := strings.TrimPrefix(r.URL.Path, RouteAPIPrefix)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
