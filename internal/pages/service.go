package pages

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

// RepositoryPort defines data access methods for pages.
type RepositoryPort interface {
	List(ctx context.Context) ([]Listing, error)
	Get(ctx context.Context, id int64) (rbac.Page, error)
	Create(ctx context.Context, name, path, description string, active bool) (rbac.Page, error)
	Update(ctx context.Context, id int64, name, path, description string, active bool) (rbac.Page, error)
	Delete(ctx context.Context, id int64) error
}

// Recorder appends audit records.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Service handles page rule logic. Paths are matched exactly by the access
// decision function, so they are normalized on the way in: leading slash,
// no trailing slash, lowercase.
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

// CanonicalPath normalizes a page path for exact matching.
func CanonicalPath(path string) string {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// List returns all page rules with allowed role names.
func (s *Service) List(ctx context.Context) ([]Listing, error) {
	return s.repo.List(ctx)
}

// Get fetches one page rule.
func (s *Service) Get(ctx context.Context, id int64) (rbac.Page, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a page rule. A freshly created page has no allowed roles
// and therefore denies everyone until roles are attached.
func (s *Service) Create(ctx context.Context, name, path, description string, active bool) (rbac.Page, error) {
	path = CanonicalPath(path)
	if path == "" {
		return rbac.Page{}, fmt.Errorf("%w: page path required", httpx.ErrValidation)
	}
	if name = strings.TrimSpace(name); name == "" {
		return rbac.Page{}, fmt.Errorf("%w: page name required", httpx.ErrValidation)
	}
	page, err := s.repo.Create(ctx, name, path, description, active)
	if err != nil {
		return rbac.Page{}, err
	}
	s.record(ctx, audit.ActionCreate, page.ID, fmt.Sprintf("created page %q (%s)", page.Name, page.Path), nil)
	return page, nil
}

// Update modifies a page rule.
func (s *Service) Update(ctx context.Context, id int64, name, path, description string, active bool) (rbac.Page, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return rbac.Page{}, err
	}
	path = CanonicalPath(path)
	if path == "" {
		return rbac.Page{}, fmt.Errorf("%w: page path required", httpx.ErrValidation)
	}
	if name = strings.TrimSpace(name); name == "" {
		return rbac.Page{}, fmt.Errorf("%w: page name required", httpx.ErrValidation)
	}
	page, err := s.repo.Update(ctx, id, name, path, description, active)
	if err != nil {
		return rbac.Page{}, err
	}
	s.record(ctx, audit.ActionUpdate, page.ID, fmt.Sprintf("updated page %q (%s)", page.Name, page.Path), map[string]any{
		"before": map[string]any{"name": current.Name, "path": current.Path, "active": current.Active},
		"after":  map[string]any{"name": page.Name, "path": page.Path, "active": page.Active},
	})
	return page, nil
}

// Delete removes a page rule, ungating its path.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionDelete, id, fmt.Sprintf("deleted page %q (%s)", current.Name, current.Path), nil)
	return nil
}

func (s *Service) record(ctx context.Context, action audit.Action, pageID int64, detail string, meta map[string]any) {
	if s.recorder == nil {
		return
	}
	rec := audit.Record{
		Action:   action,
		Entity:   audit.EntityPage,
		EntityID: strconv.FormatInt(pageID, 10),
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
