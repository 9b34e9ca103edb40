package apiclient

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	contentTypeJSON = "application/json"
	headerRequestID = "X-Request-ID"
)

// Call describes one logical backend call.
type Call struct {
	Method    string
	Path      string     // Backend path, starting with "/", escaped on the wire
	Query     url.Values // The only source of the query string
	Body      any        // JSON value, RawBody, or *Multipart when Multipart is set
	Multipart bool
	Anonymous bool        // No bearer token, no refresh on 401
	Header    http.Header // Extra headers copied onto every attempt
}

// RawBody is sent verbatim with its own content type. Used when relaying a
// body that was already encoded by someone else.
type RawBody struct {
	ContentType string
	Data        []byte
}

// prepared holds everything needed to replay a call byte for byte.
type prepared struct {
	method      string
	path        string
	url         string
	body        []byte
	contentType string
	header      http.Header
}

func (c *Client) prepare(call *Call) (*prepared, error) {
	if call == nil {
		return nil, errors.New("[Client.prepare] call is required")
	}
	method := strings.ToUpper(strings.TrimSpace(call.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(call.Path, "/") {
		return nil, errors.Errorf("[Client.prepare] path %q must start with /", call.Path)
	}

	if strings.ContainsAny(call.Path, "?#") {
		return nil, errors.Errorf("[Client.prepare] path %q must not carry a query or fragment", call.Path)
	}

	target := c.baseURL + (&url.URL{Path: call.Path}).EscapedPath()
	if len(call.Query) > 0 {
		target += "?" + call.Query.Encode()
	}

	p := &prepared{method: method, path: call.Path, url: target, header: call.Header}
	if err := p.encodeBody(call); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *prepared) encodeBody(call *Call) error {
	if call.Multipart {
		form, ok := call.Body.(*Multipart)
		if !ok || form == nil {
			return errors.New("[Client.prepare] multipart call requires a *Multipart body")
		}
		data, contentType, err := form.encode()
		if err != nil {
			return err
		}
		p.body, p.contentType = data, contentType
		return nil
	}

	switch body := call.Body.(type) {
	case nil:
		return nil
	case RawBody:
		p.body, p.contentType = body.Data, body.ContentType
	case *RawBody:
		p.body, p.contentType = body.Data, body.ContentType
	case json.RawMessage:
		p.body, p.contentType = body, contentTypeJSON
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.prepare] encode body")
		}
		p.body, p.contentType = data, contentTypeJSON
	}
	if p.contentType == "" {
		p.contentType = contentTypeJSON
	}
	return nil
}
