package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/HARD953/distribut-sub001/internal/errors"
	"github.com/HARD953/distribut-sub001/internal/utils"
)

// Sentinels callers branch on with errors.Is
var (
	ErrNetwork     = errors.ErrNetwork
	ErrAuthExpired = errors.ErrAuthExpired
	ErrServer      = errors.ErrServer
	ErrClient      = errors.ErrClient
)

// Kind classifies a failed call independently of the raw status code.
type Kind int

const (
	KindNetwork     Kind = iota + 1 // Transport failure, no response
	KindAuthExpired                 // 401 survived the single retry
	KindServer                      // 5xx
	KindClient                      // 4xx other than 401 on a protected call
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthExpired:
		return "auth_expired"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindAuthExpired:
		return ErrAuthExpired
	case KindServer:
		return ErrServer
	case KindClient:
		return ErrClient
	}
	return nil
}

// Error is returned for every failed call. For HTTP failures the response is
// returned alongside it, unmodified.
type Error struct {
	Kind       Kind
	StatusCode int    // 0 for network failures
	Method     string // HTTP method of the call
	Path       string // Backend path of the call
	Detail     string // Backend supplied message, when one could be extracted
	Err        error  // Underlying cause (transport error, refresh failure)
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Method, e.Path, e.Kind.sentinel())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call later may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, zero when err is not an API error.
func KindOf(err error) Kind {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Kind
	}
	return 0
}

// classify maps a final response to its error. authenticated tells whether a
// 401 means the session is gone or simply that anonymous credentials failed.
func classify(method, path string, resp *Response, authenticated bool) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized && authenticated:
		return &Error{Kind: KindAuthExpired, StatusCode: resp.StatusCode, Method: method, Path: path, Detail: DetailFromBody(resp.Body)}
	case resp.StatusCode >= 500:
		return &Error{Kind: KindServer, StatusCode: resp.StatusCode, Method: method, Path: path, Detail: DetailFromBody(resp.Body)}
	default:
		return &Error{Kind: KindClient, StatusCode: resp.StatusCode, Method: method, Path: path, Detail: DetailFromBody(resp.Body)}
	}
}

const maxDetailLength = 200

// DetailFromBody extracts a human readable message from a backend error body:
// {"detail": ".."}, {"message": ".."}, {"error": ".."}, {"non_field_errors": [..]}
// or field validation maps {"name": ["This field is required."]}.
func DetailFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		if strings.HasPrefix(trimmed, "<") {
			return "" // HTML error pages carry nothing displayable
		}
		return truncate(trimmed)
	}

	for _, key := range []string{"detail", "message", "error", "non_field_errors"} {
		if msg := messageOf(obj[key]); msg != "" {
			return truncate(msg)
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		if msg := messageOf(obj[k]); msg != "" {
			parts = append(parts, k+": "+msg)
		}
	}
	return truncate(strings.Join(parts, "; "))
}

func messageOf(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		return strings.Join(utils.ToStringSlice(val), " ")
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxDetailLength {
		return s
	}
	return s[:maxDetailLength] + "..."
}
