package shared

// Principal describes the authenticated actor. It is derived once at login
// by flattening the user's roles and the permissions attached to those roles,
// then carried in the session for the session lifetime. It is never mutated
// after construction; a fresh login (or session refresh) produces a new one.
type Principal struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`

	// SuperUser marks the reserved administrative role. The request gate and
	// navigation honor it as an explicit bypass instead of comparing role
	// name strings at every call site.
	SuperUser bool `json:"super_user"`
}

// HasRole reports whether the principal holds the named role.
func (p *Principal) HasRole(name string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// HasPermission reports whether the principal holds the named permission.
func (p *Principal) HasPermission(name string) bool {
	if p == nil {
		return false
	}
	for _, perm := range p.Permissions {
		if perm == name {
			return true
		}
	}
	return false
}

// DisplayName returns the name shown in the header and audit records.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.LastName == "" {
		return p.Name
	}
	return p.Name + " " + p.LastName
}
