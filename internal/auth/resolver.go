package auth

import (
	"context"
	"sort"
	"strings"
)

// PermissionResolver computes a user's effective permission set from current
// role assignments. Pure read; results are only as fresh as the call and are
// snapshotted into tokens at issuance.
type PermissionResolver struct {
	store DirectoryStore
}

func NewPermissionResolver(store DirectoryStore) *PermissionResolver {
	return &PermissionResolver{store: store}
}

// Roles returns the user's currently assigned role names. An empty result is
// valid; the implicit-USER fallback is the issuer's decision, not ours.
func (r *PermissionResolver) Roles(ctx context.Context, userID string) ([]string, error) {
	roles, err := r.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dedupeSorted(roles), nil
}

// PermissionsFor returns the union of permission keys across the given roles.
func (r *PermissionResolver) PermissionsFor(ctx context.Context, roles []string) ([]string, error) {
	roles = dedupeSorted(roles)
	if len(roles) == 0 {
		return nil, nil
	}
	perms, err := r.store.PermissionsForRoles(ctx, roles)
	if err != nil {
		return nil, err
	}
	return dedupeSorted(perms), nil
}

func dedupeSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
