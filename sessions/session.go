package sessions

import (
	"github.com/HARD953/distribut-sub001/token"
	"github.com/HARD953/distribut-sub001/users"
)

// Slot names one durable field of the persisted session record.
type Slot string

const (
	SlotAccess  Slot = "access"  // Short-lived access token
	SlotRefresh Slot = "refresh" // Refresh token
	SlotUser    Slot = "user"    // Cached SessionUser JSON
)

// Record is the durable representation of an authenticated session.
// Any field may be empty: a record read back from storage can be partial.
type Record struct {
	Access  string             // Access token, attached to every protected call
	Refresh string             // Refresh token, exchanged for a new Access
	User    *users.SessionUser // Cached identity, nil when absent or unreadable
}

func (r *Record) Empty() bool {
	return r == nil || (r.Access == "" && r.Refresh == "" && r.User == nil)
}

func (r *Record) Tokens() token.TokenPair {
	if r == nil {
		return token.TokenPair{}
	}
	return token.TokenPair{Access: r.Access, Refresh: r.Refresh}
}

// Clone returns a copy that shares the immutable user pointer.
func (r *Record) Clone() *Record {
	if r == nil {
		return &Record{}
	}
	c := *r
	return &c
}

// EndReason tells session end listeners why a session was torn down.
type EndReason string

const (
	EndedByLogout      EndReason = "logout"         // Explicit user logout
	EndedRefreshFailed EndReason = "refresh_failed" // Refresh token missing or rejected
	EndedAuthExpired   EndReason = "auth_expired"   // 401 survived the single retry
	EndedRestoreFailed EndReason = "restore_failed" // Persisted session did not validate at startup
)

// Forced reports whether the session ended without the user asking for it.
func (r EndReason) Forced() bool {
	return r != EndedByLogout
}
