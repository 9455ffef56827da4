// Package rbac implements the page-level authorization core: the access
// rule store, the access decision function, the request gate, and the
// transactional assignment service for role and page associations.
//
// Gating is opt-in: a path with no page row is open to every authenticated
// user. Administrators gate a path by creating a page for it and attaching
// the allowed roles. A page whose allowed-role set is empty denies everyone;
// that state is reachable on purpose and is not treated as an error.
package rbac

import (
	"errors"
	"time"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Role groups permissions under a name unique across the system.
type Role struct {
	ID          int64
	Name        string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is an atomic, unscoped capability. There is no hierarchy.
type Permission struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Page is a navigable route administrators can gate by role.
type Page struct {
	ID          int64
	Name        string
	Path        string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ref is an id/name pair used in assignment results and audit metadata.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func refIDs(refs []Ref) []int64 {
	ids := make([]int64, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}

func refNames(refs []Ref) []string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	return names
}
