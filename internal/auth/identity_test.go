package auth

import "testing"

func TestIdentityHasRole(t *testing.T) {
	id := Identity{UserID: "user-1", Roles: []string{RoleUser, RoleModerator}}

	if !id.HasRole(RoleModerator) {
		t.Error("moderator role not found")
	}
	// Role names are matched case-insensitively.
	if !id.HasRole("moderator") {
		t.Error("role match should ignore case")
	}
	if id.HasRole(RoleAdmin) {
		t.Error("admin role reported but not held")
	}
	if id.HasRole("") || id.HasRole("   ") {
		t.Error("blank role name should never match")
	}
}

func TestIdentityHasPermission(t *testing.T) {
	id := Identity{UserID: "user-1", Permissions: []string{PermReviewsCreate}}

	if !id.HasPermission(PermReviewsCreate) {
		t.Error("held permission not found")
	}
	if id.HasPermission(PermReviewsModerate) {
		t.Error("permission reported but not held")
	}
}
