package token

import (
	"strings"
)

// Credentials are exchanged once for a TokenPair. They are never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// String never prints the password.
func (c Credentials) String() string {
	return "Credentials{Username: " + c.Username + "}"
}

// TokenPair is the response of the /token/ endpoint.
//
// Access is the short-lived bearer credential attached to every protected call:
// "Authorization: Bearer <access>".
// Refresh is the longer-lived credential used solely to mint a new Access.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (p TokenPair) Valid() bool {
	return p.Access != "" && p.Refresh != ""
}

// RefreshRequest is the body of the /token/refresh/ endpoint.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse is returned by /token/refresh/. Some backends rotate the
// refresh token and send it back as well; it is informational only.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}
