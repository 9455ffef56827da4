package permissions

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

// RepositoryPort defines data access methods for permissions.
type RepositoryPort interface {
	List(ctx context.Context) ([]rbac.Permission, error)
	Get(ctx context.Context, id int64) (rbac.Permission, error)
	Create(ctx context.Context, name, description string) (rbac.Permission, error)
	Delete(ctx context.Context, id int64) error
}

// Recorder appends audit records.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Service handles permission catalog logic. Permission names are stored
// lowercase in dotted form, e.g. "users.edit".
type Service struct {
	repo     RepositoryPort
	recorder Recorder
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, recorder: recorder, logger: logger}
}

// List returns the full catalog.
func (s *Service) List(ctx context.Context) ([]rbac.Permission, error) {
	return s.repo.List(ctx)
}

// Create inserts a permission with a normalized name.
func (s *Service) Create(ctx context.Context, name, description string) (rbac.Permission, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return rbac.Permission{}, fmt.Errorf("%w: permission name required", httpx.ErrValidation)
	}
	perm, err := s.repo.Create(ctx, name, description)
	if err != nil {
		return rbac.Permission{}, err
	}
	s.record(ctx, audit.ActionCreate, perm.ID, fmt.Sprintf("created permission %q", perm.Name), nil)
	return perm, nil
}

// Delete removes a permission and its role grants.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionDelete, id, fmt.Sprintf("deleted permission %q", current.Name), nil)
	return nil
}

func (s *Service) record(ctx context.Context, action audit.Action, permID int64, detail string, meta map[string]any) {
	if s.recorder == nil {
		return
	}
	rec := audit.Record{
		Action:   action,
		Entity:   audit.EntityPermission,
		EntityID: strconv.FormatInt(permID, 10),
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
