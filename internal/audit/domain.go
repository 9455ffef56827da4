package audit

import "time"

// Action identifies what an administrative actor did.
type Action string

// Actions recorded by the application.
const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionAssign Action = "ASSIGN"
	ActionLogin  Action = "LOGIN"
	ActionLogout Action = "LOGOUT"
)

// Entity identifies the kind of record an action targeted.
type Entity string

// Entities referenced by audit records.
const (
	EntityUser       Entity = "user"
	EntityRole       Entity = "role"
	EntityPermission Entity = "permission"
	EntityPage       Entity = "page"
	EntityTicket     Entity = "ticket"
)

// Record is a single append-only audit entry. Meta carries structured
// before/after data for assignment replacements.
type Record struct {
	ActorID   int64
	ActorName string
	Action    Action
	Entity    Entity
	EntityID  string
	Detail    string
	IPAddress string
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

// Entry is a stored audit record as read back from the timeline.
type Entry struct {
	ID        int64
	ActorID   int64
	ActorName string
	Action    Action
	Entity    Entity
	EntityID  string
	Detail    string
	IPAddress string
	UserAgent string
	Meta      map[string]any
	CreatedAt time.Time
}

// Filters narrows the audit timeline. Zero values mean "no filter".
type Filters struct {
	ActorID  int64
	Action   Action
	Entity   Entity
	EntityID string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// PagingInfo carries simple pagination metadata for the timeline.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles timeline rows with paging information.
type Result struct {
	Entries []Entry
	Paging  PagingInfo
}
