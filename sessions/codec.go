package sessions

import (
	"encoding/json"

	"github.com/HARD953/distribut-sub001/users"
)

// EncodeUser serialises the cached user for a storage slot. A nil user
// encodes to the empty string.
func EncodeUser(u *users.SessionUser) (string, error) {
	if u == nil {
		return "", nil
	}
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUser reads a cached user slot. Empty or unreadable slots return nil so
// that the store fetches the user fresh instead of failing.
func DecodeUser(raw string) *users.SessionUser {
	if raw == "" {
		return nil
	}
	var u users.SessionUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil
	}
	return &u
}
