package auth

import (
	"github.com/HARD953/distribut-sub001/apiclient"
	"github.com/HARD953/distribut-sub001/internal/errors"
)

var (
	ErrInvalidCredentials = errors.ErrInvalidCredentials
	ErrNotAuthenticated   = errors.ErrNotAuthenticated
	ErrNoRefreshToken     = errors.ErrNoRefreshToken
	ErrRefreshRejected    = errors.ErrRefreshRejected
	ErrNetwork            = errors.ErrNetwork
	ErrServer             = errors.ErrServer
	ErrInternal           = errors.ErrInternal
)

// Displayable login failure messages used when the backend sends none.
const (
	MsgMissingCredentials = "Username and password are required"
	MsgInvalidCredentials = "Invalid username or password"
	MsgNetwork            = "Unable to reach the server, check your connection and try again"
	MsgServer             = "The server could not complete the login, try again later"
	MsgStorage            = "Unable to store the session on this device"
	MsgUnexpected         = "Unexpected response from the server"
)

// LoginError is the failure marker returned by Login. Message can be shown
// to the user as is.
type LoginError struct {
	Reason  error // ErrInvalidCredentials, ErrNetwork, ErrServer or ErrInternal
	Message string
	Err     error // Underlying cause, may be nil
}

func (e *LoginError) Error() string {
	return e.Message
}

func (e *LoginError) Unwrap() []error {
	errs := make([]error, 0, 2)
	for _, err := range []error{e.Reason, e.Err} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// loginFailure maps a failed call made during login to a LoginError.
func loginFailure(err error) *LoginError {
	apiErr, ok := apiclient.AsError(err)
	if !ok {
		return &LoginError{Reason: ErrInternal, Message: MsgUnexpected, Err: err}
	}

	switch apiErr.Kind {
	case apiclient.KindNetwork:
		return &LoginError{Reason: ErrNetwork, Message: MsgNetwork, Err: err}
	case apiclient.KindServer:
		return &LoginError{Reason: ErrServer, Message: orDefault(apiErr.Detail, MsgServer), Err: err}
	default:
		return &LoginError{Reason: ErrInvalidCredentials, Message: orDefault(apiErr.Detail, MsgInvalidCredentials), Err: err}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
