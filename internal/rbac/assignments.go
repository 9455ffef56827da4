package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// AssignmentStore is the persistence boundary for the replace-all operations.
// Reads outside InTx feed the audit before/after snapshot; everything inside
// InTx happens in one RepeatableRead transaction so concurrent readers never
// observe a half-replaced association set.
type AssignmentStore interface {
	RoleRef(ctx context.Context, id int64) (Ref, error)
	UserRef(ctx context.Context, id int64) (Ref, error)
	PageRef(ctx context.Context, id int64) (Ref, error)

	RolePermissions(ctx context.Context, roleID int64) ([]Ref, error)
	UserRoles(ctx context.Context, userID int64) ([]Ref, error)
	PageRoles(ctx context.Context, pageID int64) ([]Ref, error)

	InTx(ctx context.Context, fn func(AssignmentTx) error) error
}

// AssignmentTx exposes the join-table mutations available inside one
// transaction.
type AssignmentTx interface {
	DeleteRolePermissions(ctx context.Context, roleID int64) error
	InsertRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	ExistingPermissions(ctx context.Context, ids []int64) ([]Ref, error)

	DeleteUserRoles(ctx context.Context, userID int64) error
	InsertUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	ExistingRoles(ctx context.Context, ids []int64) ([]Ref, error)

	DeletePageRoles(ctx context.Context, pageID int64) error
	InsertPageRoles(ctx context.Context, pageID int64, roleIDs []int64) error
}

// Recorder appends audit records. Satisfied by *audit.Recorder.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// MissingIDsError reports desired association ids that do not reference an
// existing entity. It aborts the enclosing transaction; no partial writes
// survive.
type MissingIDsError struct {
	IDs []int64
}

func (e *MissingIDsError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "the following ids do not exist: " + strings.Join(parts, ", ")
}

// Unwrap lets errors.Is match the validation sentinel.
func (e *MissingIDsError) Unwrap() error { return httpx.ErrValidation }

// ReplaceResult describes the outcome of one replace-all call, including the
// set arithmetic recorded in the audit trail.
type ReplaceResult struct {
	Target  Ref
	Before  []Ref
	After   []Ref
	Added   []int64
	Removed []int64
}

// AssignmentService replaces a target's full association set atomically:
// delete everything, re-validate the desired ids, bulk insert, commit. The
// audit append runs after commit and never fails the mutation.
type AssignmentService struct {
	store    AssignmentStore
	recorder Recorder
	logger   *slog.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(store AssignmentStore, recorder Recorder, logger *slog.Logger) *AssignmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentService{store: store, recorder: recorder, logger: logger}
}

// RolePermissions returns the role's current permission set.
func (s *AssignmentService) RolePermissions(ctx context.Context, roleID int64) ([]Ref, error) {
	return s.store.RolePermissions(ctx, roleID)
}

// UserRoles returns the user's current role set.
func (s *AssignmentService) UserRoles(ctx context.Context, userID int64) ([]Ref, error) {
	return s.store.UserRoles(ctx, userID)
}

// PageRoles returns the page rule's current allowed roles.
func (s *AssignmentService) PageRoles(ctx context.Context, pageID int64) ([]Ref, error) {
	return s.store.PageRoles(ctx, pageID)
}

// ReplaceRolePermissions replaces a role's permission set.
func (s *AssignmentService) ReplaceRolePermissions(ctx context.Context, roleID int64, desired []int64) (ReplaceResult, error) {
	return s.replace(ctx, replaceSpec{
		entity:   audit.EntityRole,
		targetID: roleID,
		loadTarget: func(ctx context.Context) (Ref, error) {
			return s.store.RoleRef(ctx, roleID)
		},
		current: func(ctx context.Context) ([]Ref, error) {
			return s.store.RolePermissions(ctx, roleID)
		},
		deleteAll: func(ctx context.Context, tx AssignmentTx) error {
			return tx.DeleteRolePermissions(ctx, roleID)
		},
		existing: func(ctx context.Context, tx AssignmentTx, ids []int64) ([]Ref, error) {
			return tx.ExistingPermissions(ctx, ids)
		},
		insert: func(ctx context.Context, tx AssignmentTx, ids []int64) error {
			return tx.InsertRolePermissions(ctx, roleID, ids)
		},
		detail: "replace role permissions",
	}, desired)
}

// ReplaceUserRoles replaces a user's role set.
func (s *AssignmentService) ReplaceUserRoles(ctx context.Context, userID int64, desired []int64) (ReplaceResult, error) {
	return s.replace(ctx, replaceSpec{
		entity:   audit.EntityUser,
		targetID: userID,
		loadTarget: func(ctx context.Context) (Ref, error) {
			return s.store.UserRef(ctx, userID)
		},
		current: func(ctx context.Context) ([]Ref, error) {
			return s.store.UserRoles(ctx, userID)
		},
		deleteAll: func(ctx context.Context, tx AssignmentTx) error {
			return tx.DeleteUserRoles(ctx, userID)
		},
		existing: func(ctx context.Context, tx AssignmentTx, ids []int64) ([]Ref, error) {
			return tx.ExistingRoles(ctx, ids)
		},
		insert: func(ctx context.Context, tx AssignmentTx, ids []int64) error {
			return tx.InsertUserRoles(ctx, userID, ids)
		},
		detail: "replace user roles",
	}, desired)
}

// ReplacePageRoles replaces the allowed-role set of a page rule.
func (s *AssignmentService) ReplacePageRoles(ctx context.Context, pageID int64, desired []int64) (ReplaceResult, error) {
	return s.replace(ctx, replaceSpec{
		entity:   audit.EntityPage,
		targetID: pageID,
		loadTarget: func(ctx context.Context) (Ref, error) {
			return s.store.PageRef(ctx, pageID)
		},
		current: func(ctx context.Context) ([]Ref, error) {
			return s.store.PageRoles(ctx, pageID)
		},
		deleteAll: func(ctx context.Context, tx AssignmentTx) error {
			return tx.DeletePageRoles(ctx, pageID)
		},
		existing: func(ctx context.Context, tx AssignmentTx, ids []int64) ([]Ref, error) {
			return tx.ExistingRoles(ctx, ids)
		},
		insert: func(ctx context.Context, tx AssignmentTx, ids []int64) error {
			return tx.InsertPageRoles(ctx, pageID, ids)
		},
		detail: "replace page roles",
	}, desired)
}

type replaceSpec struct {
	entity     audit.Entity
	targetID   int64
	loadTarget func(ctx context.Context) (Ref, error)
	current    func(ctx context.Context) ([]Ref, error)
	deleteAll  func(ctx context.Context, tx AssignmentTx) error
	existing   func(ctx context.Context, tx AssignmentTx, ids []int64) ([]Ref, error)
	insert     func(ctx context.Context, tx AssignmentTx, ids []int64) error
	detail     string
}

func (s *AssignmentService) replace(ctx context.Context, spec replaceSpec, desired []int64) (ReplaceResult, error) {
	target, err := spec.loadTarget(ctx)
	if err != nil {
		return ReplaceResult{}, err
	}

	before, err := spec.current(ctx)
	if err != nil {
		return ReplaceResult{}, err
	}

	desired = dedupeIDs(desired)

	var after []Ref
	err = s.store.InTx(ctx, func(tx AssignmentTx) error {
		if err := spec.deleteAll(ctx, tx); err != nil {
			return err
		}
		if len(desired) == 0 {
			return nil
		}
		found, err := spec.existing(ctx, tx, desired)
		if err != nil {
			return err
		}
		if missing := missingIDs(desired, found); len(missing) > 0 {
			return &MissingIDsError{IDs: missing}
		}
		if err := spec.insert(ctx, tx, desired); err != nil {
			return err
		}
		after = found
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}

	result := ReplaceResult{
		Target:  target,
		Before:  before,
		After:   after,
		Added:   diffIDs(desired, refIDs(before)),
		Removed: diffIDs(refIDs(before), desired),
	}
	s.recordReplace(ctx, spec, result)
	return result, nil
}

// recordReplace appends the audit entry for a committed replace. Failures
// are logged and swallowed: the mutation already committed and must not be
// reported as failed because the trail is behind.
func (s *AssignmentService) recordReplace(ctx context.Context, spec replaceSpec, result ReplaceResult) {
	if s.recorder == nil {
		return
	}
	rec := audit.Record{
		Action:   audit.ActionAssign,
		Entity:   spec.entity,
		EntityID: strconv.FormatInt(spec.targetID, 10),
		Detail:   fmt.Sprintf("%s %q", spec.detail, result.Target.Name),
		Meta: map[string]any{
			"target":  result.Target,
			"before":  map[string]any{"ids": refIDs(result.Before), "names": refNames(result.Before)},
			"after":   map[string]any{"ids": refIDs(result.After), "names": refNames(result.After)},
			"added":   result.Added,
			"removed": result.Removed,
		},
	}
	if principal := shared.PrincipalFromContext(ctx); principal != nil {
		rec.ActorID = principal.ID
		rec.ActorName = principal.DisplayName()
	}
	client := shared.ClientFromContext(ctx)
	rec.IPAddress = client.IP
	rec.UserAgent = client.UserAgent
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.logger.Error("audit append failed after assignment commit",
			slog.String("entity", string(spec.entity)),
			slog.Int64("target", spec.targetID),
			slog.Any("error", err))
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(desired []int64, found []Ref) []int64 {
	present := make(map[int64]struct{}, len(found))
	for _, ref := range found {
		present[ref.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range desired {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// diffIDs returns the members of a that are not in b, sorted.
func diffIDs(a, b []int64) []int64 {
	inB := make(map[int64]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	diff := make([]int64, 0)
	for _, id := range a {
		if _, ok := inB[id]; !ok {
			diff = append(diff, id)
		}
	}
	sort.Slice(diff, func(i, j int) bool { return diff[i] < diff[j] })
	return diff
}
