package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/HARD953/distribut-sub001/apiclient"
)

// forwardedHeaders are copied from the browser request onto the backend call.
var forwardedHeaders = []string{"Accept-Language", "If-None-Match"}

// ProxyHandler relays /api/<path> to the backend <path> through the API
// client, so the bearer token and refresh contract apply to every call.
func (s *Server) ProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call := &apiclient.Call{
			Method: r.Method,
			Path:   backendPath(r),
			Query:  r.URL.Query(),
		}
		for _, h := range forwardedHeaders {
			if v := r.Header.Get(h); v != "" {
				if call.Header == nil {
					call.Header = http.Header{}
				}
				call.Header.Set(h, v)
			}
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		if len(body) > 0 {
			call.Body = proxyBody(r.Header.Get("Content-Type"), body)
		}

		resp, err := s.api.Do(r.Context(), call)
		if err != nil {
			s.writeBackendError(w, r, resp, err)
			return
		}
		relay(w, resp)
	}
}

// proxyBody keeps JSON as JSON and relays anything else, multipart uploads
// included, with its original content type and boundary.
func proxyBody(contentType string, body []byte) any {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if contentType == "" || (err == nil && mediaType == "application/json") {
		return json.RawMessage(body)
	}
	return apiclient.RawBody{ContentType: contentType, Data: body}
}
