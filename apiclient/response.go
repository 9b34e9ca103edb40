package apiclient

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// Response is the backend answer as received; the body is fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string // X-Request-ID sent on every attempt of the call
	Attempts   int    // 2 when the call was retried after a refresh
}

func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "[Response.Decode] unmarshal")
	}
	return nil
}

// ContentType returns the response Content-Type, defaulting to JSON.
func (r *Response) ContentType() string {
	if r == nil || r.Header.Get("Content-Type") == "" {
		return contentTypeJSON
	}
	return r.Header.Get("Content-Type")
}
