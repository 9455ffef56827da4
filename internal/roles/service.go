package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/rbac"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]rbac.Role, error)
	Get(ctx context.Context, id int64) (rbac.Role, error)
	Create(ctx context.Context, name, description string, active bool) (rbac.Role, error)
	Update(ctx context.Context, id int64, name, description string, active bool) (rbac.Role, error)
	Delete(ctx context.Context, id int64) error
}

// Recorder appends audit records.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Service handles role business logic. The reserved super role cannot be
// renamed, deactivated or deleted through it.
type Service struct {
	repo      RepositoryPort
	recorder  Recorder
	logger    *slog.Logger
	superRole string
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, recorder Recorder, logger *slog.Logger, superRole string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, recorder: recorder, logger: logger, superRole: superRole}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]rbac.Role, error) {
	return s.repo.List(ctx)
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id int64) (rbac.Role, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a role with a canonicalized name.
func (s *Service) Create(ctx context.Context, name, description string, active bool) (rbac.Role, error) {
	name = CanonicalName(name)
	if name == "" {
		return rbac.Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	role, err := s.repo.Create(ctx, name, description, active)
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, audit.ActionCreate, role.ID, fmt.Sprintf("created role %q", role.Name), nil)
	return role, nil
}

// Update modifies a role. The reserved role keeps its name and stays active.
func (s *Service) Update(ctx context.Context, id int64, name, description string, active bool) (rbac.Role, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return rbac.Role{}, err
	}
	if current.Name == s.superRole {
		// The reserved role keeps its exact name; canonicalization would
		// reject a legitimate description edit.
		if strings.TrimSpace(name) != s.superRole || !active {
			return rbac.Role{}, fmt.Errorf("%w: the %s role cannot be renamed or deactivated", httpx.ErrValidation, s.superRole)
		}
		name = s.superRole
	} else {
		name = CanonicalName(name)
		if name == "" {
			return rbac.Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
		}
	}
	role, err := s.repo.Update(ctx, id, name, description, active)
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, audit.ActionUpdate, role.ID, fmt.Sprintf("updated role %q", role.Name), map[string]any{
		"before": map[string]any{"name": current.Name, "description": current.Description, "active": current.Active},
		"after":  map[string]any{"name": role.Name, "description": role.Description, "active": role.Active},
	})
	return role, nil
}

// Delete removes a role; its assignment rows cascade in the same transaction.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Name == s.superRole {
		return fmt.Errorf("%w: the %s role cannot be deleted", httpx.ErrValidation, s.superRole)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionDelete, id, fmt.Sprintf("deleted role %q", current.Name), nil)
	return nil
}

func (s *Service) record(ctx context.Context, action audit.Action, roleID int64, detail string, meta map[string]any) {
	if s.recorder == nil {
		return
	}
	rec := audit.Record{
		Action:   action,
		Entity:   audit.EntityRole,
		EntityID: strconv.FormatInt(roleID, 10),
		Detail:   detail,
		Meta:     meta,
	}
	if principal := shared.PrincipalFromContext(ctx); principal != nil {
		rec.ActorID = principal.ID
		rec.ActorName = principal.DisplayName()
	}
	client := shared.ClientFromContext(ctx)
	rec.IPAddress = client.IP
	rec.UserAgent = client.UserAgent
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.logger.Error("audit append failed", slog.String("action", string(action)), slog.Any("error", err))
	}
}
