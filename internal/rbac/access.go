package rbac

import (
	"context"
)

// RuleStore resolves the allowed-role set for a path.
type RuleStore interface {
	// AllowedRoles returns the role names attached to the active page whose
	// path exactly equals the argument. mapped is false when no such page
	// exists; in that case roles is empty and the caller must default-allow.
	AllowedRoles(ctx context.Context, path string) (roles []string, mapped bool, err error)
}

// AccessService is the access decision function: (path, role set) -> allowed.
type AccessService struct {
	store RuleStore
}

// NewAccessService builds the decision service over a rule store.
func NewAccessService(store RuleStore) *AccessService {
	return &AccessService{store: store}
}

// Decide reports whether a caller holding the given role names may view the
// path. Paths with no active page row are allowed regardless of roles. A
// mapped path allows the caller iff the caller's role set intersects the
// page's allowed set, so a page with zero attached roles denies every caller.
func (s *AccessService) Decide(ctx context.Context, path string, roles []string) (bool, error) {
	allowed, mapped, err := s.store.AllowedRoles(ctx, path)
	if err != nil {
		return false, err
	}
	if !mapped {
		return true, nil
	}
	if len(allowed) == 0 {
		return false, nil
	}
	held := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		held[r] = struct{}{}
	}
	for _, name := range allowed {
		if _, ok := held[name]; ok {
			return true, nil
		}
	}
	return false, nil
}
