package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
}

// Recorder appends audit records.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Email    string
	Name     string
	LastName string
	Password string
	Active   bool
}

// UpdateInput carries the editable profile fields. Password, when set,
// replaces the stored hash.
type UpdateInput struct {
	Email    string
	Name     string
	LastName string
	Password string
	Active   bool
}

// Service handles account management logic.
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

// List returns all accounts with role names.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new account with a bcrypt hashed password.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email required", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: string(hash),
		Active:       in.Active,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, audit.ActionCreate, user.ID, fmt.Sprintf("created user %q", user.Email), nil)
	return user, nil
}

// Update modifies an account; an empty password leaves the hash untouched.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email required", httpx.ErrValidation)
	}
	user, err := s.repo.Update(ctx, User{
		ID:       id,
		Email:    email,
		Name:     strings.TrimSpace(in.Name),
		LastName: strings.TrimSpace(in.LastName),
		Active:   in.Active,
	})
	if err != nil {
		return User{}, err
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
			return User{}, err
		}
	}
	s.record(ctx, audit.ActionUpdate, user.ID, fmt.Sprintf("updated user %q", user.Email), map[string]any{
		"before": map[string]any{"email": current.Email, "name": current.Name, "last_name": current.LastName, "active": current.Active},
		"after":  map[string]any{"email": user.Email, "name": user.Name, "last_name": user.LastName, "active": user.Active},
	})
	return user, nil
}

// Delete removes an account. The signed-in administrator cannot delete
// itself.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if principal := shared.PrincipalFromContext(ctx); principal != nil && principal.ID == id {
		return fmt.Errorf("%w: you cannot delete your own account", httpx.ErrValidation)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionDelete, id, fmt.Sprintf("deleted user %q", current.Email), nil)
	return nil
}

func (s *Service) record(ctx context.Context, action audit.Action, userID int64, detail string, meta map[string]any) {
	if s.recorder == nil {
		return
	}
	rec := audit.Record{
		Action:   action,
		Entity:   audit.EntityUser,
		EntityID: strconv.FormatInt(userID, 10),
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
