package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

const resetTokenTTL = time.Hour

// Mailer enqueues outbound mail. Satisfied by *jobs.Enqueuer.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// Recorder appends audit records. Satisfied by *audit.Recorder.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Service wraps authentication business rules: credential checks, principal
// derivation and password recovery.
type Service struct {
	repo      Repository
	redis     *redis.Client
	mailer    Mailer
	recorder  Recorder
	logger    *slog.Logger
	superRole string
	baseURL   string
}

// ServiceConfig collects the service collaborators.
type ServiceConfig struct {
	Repo      Repository
	Redis     *redis.Client
	Mailer    Mailer
	Recorder  Recorder
	Logger    *slog.Logger
	SuperRole string
	BaseURL   string
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      cfg.Repo,
		redis:     cfg.Redis,
		mailer:    cfg.Mailer,
		recorder:  cfg.Recorder,
		logger:    logger,
		superRole: cfg.SuperRole,
		baseURL:   cfg.BaseURL,
	}
}

// Authenticate validates credentials and derives the session principal by
// flattening the user's roles and the permissions attached to them. The
// principal holds for the session lifetime; it is not re-derived per request.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*shared.Principal, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	roles, err := s.repo.RoleNames(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	permissions, err := s.repo.PermissionNames(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	principal := &shared.Principal{
		ID:          user.ID,
		Name:        user.Name,
		LastName:    user.LastName,
		Email:       user.Email,
		Roles:       roles,
		Permissions: permissions,
	}
	for _, role := range roles {
		if role == s.superRole {
			principal.SuperUser = true
			break
		}
	}

	s.record(ctx, principal, audit.ActionLogin, "signed in")
	return principal, nil
}

// RecordLogout appends a best-effort logout entry.
func (s *Service) RecordLogout(ctx context.Context, principal *shared.Principal) {
	s.record(ctx, principal, audit.ActionLogout, "signed out")
}

// StartPasswordReset issues a single-use reset token and enqueues the mail.
// Unknown emails succeed silently so the endpoint cannot be used to probe
// which addresses exist.
func (s *Service) StartPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, resetKey(token), strconv.FormatInt(user.ID, 10), resetTokenTTL).Err(); err != nil {
		return err
	}

	link := s.baseURL + "/auth/password/reset?token=" + token
	html := fmt.Sprintf(`<p>Hello %s,</p><p>Use <a href=%q>this link</a> to choose a new password. It expires in one hour.</p>`,
		user.Name, link)
	if err := s.mailer.SendEmail(ctx, user.Email, "Reset your Vantage password", html); err != nil {
		return err
	}
	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	raw, err := s.redis.GetDel(ctx, resetKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.ErrResetTokenInvalid
		}
		return err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return shared.ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

func (s *Service) record(ctx context.Context, principal *shared.Principal, action audit.Action, detail string) {
	if s.recorder == nil || principal == nil {
		return
	}
	client := shared.ClientFromContext(ctx)
	err := s.recorder.Record(ctx, audit.Record{
		ActorID:   principal.ID,
		ActorName: principal.DisplayName(),
		Action:    action,
		Entity:    audit.EntityUser,
		EntityID:  strconv.FormatInt(principal.ID, 10),
		Detail:    detail,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})
	if err != nil {
		s.logger.Error("audit append failed", slog.String("action", string(action)), slog.Any("error", err))
	}
}

func resetKey(token string) string {
	return "pwreset:" + token
}
