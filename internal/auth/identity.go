package auth

import "strings"

// Identity is the per-request result of successful token validation: the
// subject plus the role and permission sets snapshotted at issuance. It is
// never persisted; its lifetime is one request.
type Identity struct {
	UserID      string
	Username    string
	Email       string
	Roles       []string
	Permissions []string
}

// HasRole reports whether the identity carries the named role.
func (id Identity) HasRole(role string) bool {
	role = strings.TrimSpace(role)
	if role == "" {
		return false
	}
	for _, r := range id.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasPermission reports whether the identity carries the named permission.
// Authority is as of token issuance, not live role state.
func (id Identity) HasPermission(key string) bool {
	for _, p := range id.Permissions {
		if p == key {
			return true
		}
	}
	return false
}
