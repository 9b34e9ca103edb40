package users

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Profile is the console profile attached to a backend user account.
type Profile struct {
	ID        int    `json:"id,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Address   string `json:"address,omitempty"`
	UserType  string `json:"user_type,omitempty"`
	Role      *Role  `json:"role,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SessionUser is the authenticated identity returned by the "who am I" endpoint.
type SessionUser struct {
	ID         int      `json:"id,omitempty"`          // Backend user ID
	Username   string   `json:"username,omitempty"`    // Login name
	Email      string   `json:"email,omitempty"`       // User's email address
	FirstName  string   `json:"first_name,omitempty"`  // First name of the user
	LastName   string   `json:"last_name,omitempty"`   // Last name of the user
	IsStaff    bool     `json:"is_staff,omitempty"`    // Django staff flag
	IsActive   bool     `json:"is_active,omitempty"`   // Django active flag
	DateJoined string   `json:"date_joined,omitempty"` // Registration timestamp as sent by the backend
	LastLogin  string   `json:"last_login,omitempty"`  // Last login timestamp as sent by the backend
	Profile    *Profile `json:"profile,omitempty"`     // Console profile and role
}

// Can reports whether the user's role grants c. Any missing link denies.
func (u *SessionUser) Can(c Capability) bool {
	if u == nil || u.Profile == nil || u.Profile.Role == nil {
		return false
	}
	return u.Profile.Role.Permissions.Allows(c)
}

// Capabilities returns the granted capabilities in display order.
func (u *SessionUser) Capabilities() []Capability {
	if u == nil || u.Profile == nil || u.Profile.Role == nil {
		return nil
	}
	return u.Profile.Role.Permissions.Granted()
}

func (u *SessionUser) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// DecodeSessionUser decodes a "who am I" payload. The backend answers either
// with a single object or with a list. For a list the entry matching username
// is returned; without a username only a single entry list is accepted.
func DecodeSessionUser(data []byte, username string) (*SessionUser, bool) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []*SessionUser
		if err := json.Unmarshal(data, &list); err != nil || len(list) == 0 {
			return nil, false
		}
		if username == "" {
			return list[0], len(list) == 1 && list[0] != nil
		}
		for _, u := range list {
			if u != nil && strings.EqualFold(u.Username, username) {
				return u, true
			}
		}
		return nil, false
	}
	// Paginated list: {"count":..,"results":[..]}
	var page struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err == nil && len(page.Results) > 0 && strings.HasPrefix(strings.TrimSpace(string(page.Results)), "[") {
		return DecodeSessionUser(page.Results, username)
	}
	var u SessionUser
	if err := json.Unmarshal(data, &u); err != nil || (u.ID == 0 && u.Username == "") {
		return nil, false
	}
	return &u, true
}

// UsernameForID returns the username of the entry with the given id in a
// list payload, empty when there is no such entry.
func UsernameForID(data []byte, id string) string {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(data, &page); err != nil || len(page.Results) == 0 {
			return ""
		}
		data = page.Results
	}
	var list []struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return ""
	}
	for _, u := range list {
		if strconv.Itoa(u.ID) == id {
			return u.Username
		}
	}
	return ""
}
