package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// RepositoryPort defines data access methods for tickets.
type RepositoryPort interface {
	List(ctx context.Context, f Filters, offset, limit int) ([]Ticket, int, error)
	Get(ctx context.Context, id int64) (Ticket, error)
	Create(ctx context.Context, t Ticket) (Ticket, error)
	UpdateStatus(ctx context.Context, id int64, status Status, assigneeID *int64) error
	Comments(ctx context.Context, ticketID int64) ([]Comment, error)
	AddComment(ctx context.Context, c Comment) (Comment, error)
}

// Recorder appends audit records.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// ListResult bundles a ticket page with pagination metadata.
type ListResult struct {
	Tickets    []Ticket
	Pagination shared.Pagination
}

// Service handles ticket logic.
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

// List returns a page of tickets newest first.
func (s *Service) List(ctx context.Context, f Filters) (ListResult, error) {
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Status != "" && !f.Status.Valid() {
		return ListResult{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, f.Status)
	}
	offset := (f.Page - 1) * f.PageSize
	tickets, total, err := s.repo.List(ctx, f, offset, f.PageSize)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Tickets:    tickets,
		Pagination: shared.NewPagination(f.Page, f.PageSize, total),
	}, nil
}

// Get fetches a ticket with its comments.
func (s *Service) Get(ctx context.Context, id int64) (Ticket, []Comment, error) {
	ticket, err := s.repo.Get(ctx, id)
	if err != nil {
		return Ticket{}, nil, err
	}
	comments, err := s.repo.Comments(ctx, id)
	if err != nil {
		return Ticket{}, nil, err
	}
	return ticket, comments, nil
}

// Create opens a ticket on behalf of the signed-in administrator.
func (s *Service) Create(ctx context.Context, title, description string) (Ticket, error) {
	principal := shared.PrincipalFromContext(ctx)
	if principal == nil {
		return Ticket{}, shared.ErrNotFound
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Ticket{}, fmt.Errorf("%w: ticket title required", httpx.ErrValidation)
	}
	ticket, err := s.repo.Create(ctx, Ticket{
		Code:        newCode(),
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      StatusOpen,
		ReporterID:  principal.ID,
	})
	if err != nil {
		return Ticket{}, err
	}
	ticket.ReporterName = principal.DisplayName()
	s.record(ctx, audit.ActionCreate, ticket.ID, fmt.Sprintf("opened ticket %s %q", ticket.Code, ticket.Title), nil)
	return ticket, nil
}

// Transition moves a ticket to a new status. Moving to in_progress assigns
// the acting administrator when the ticket has no assignee yet.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (Ticket, error) {
	if !to.Valid() {
		return Ticket{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, to)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if current.Status == to {
		return current, nil
	}
	if !allowedTransition(current.Status, to) {
		return Ticket{}, fmt.Errorf("%w: cannot move a %s ticket to %s", httpx.ErrValidation, current.Status, to)
	}

	var assignee *int64
	if to == StatusInProgress && current.AssigneeID == nil {
		if principal := shared.PrincipalFromContext(ctx); principal != nil {
			assignee = &principal.ID
		}
	}
	if err := s.repo.UpdateStatus(ctx, id, to, assignee); err != nil {
		return Ticket{}, err
	}
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	s.record(ctx, audit.ActionUpdate, id, fmt.Sprintf("ticket %s moved from %s to %s", current.Code, current.Status, to), map[string]any{
		"before": map[string]any{"status": string(current.Status)},
		"after":  map[string]any{"status": string(to)},
	})
	return updated, nil
}

// AddComment appends a note by the signed-in administrator.
func (s *Service) AddComment(ctx context.Context, ticketID int64, body string) (Comment, error) {
	principal := shared.PrincipalFromContext(ctx)
	if principal == nil {
		return Comment{}, shared.ErrNotFound
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, fmt.Errorf("%w: comment body required", httpx.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, ticketID); err != nil {
		return Comment{}, err
	}
	comment, err := s.repo.AddComment(ctx, Comment{
		TicketID: ticketID,
		AuthorID: principal.ID,
		Body:     body,
	})
	if err != nil {
		return Comment{}, err
	}
	comment.AuthorName = principal.DisplayName()
	return comment, nil
}

// allowedTransition encodes the ticket lifecycle: open -> in_progress ->
// closed, with closed -> in_progress as the reopen path and open -> closed
// as a shortcut for tickets resolved without work.
func allowedTransition(from, to Status) bool {
	switch from {
	case StatusOpen:
		return to == StatusInProgress || to == StatusClosed
	case StatusInProgress:
		return to == StatusClosed
	case StatusClosed:
		return to == StatusInProgress
	}
	return false
}

func newCode() string {
	return "TCK-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *Service) record(ctx context.Context, action audit.Action, ticketID int64, detail string, meta map[string]any) {
	if s.recorder == nil {
		return
	}
	rec := audit.Record{
		Action:   action,
		Entity:   audit.EntityTicket,
		EntityID: strconv.FormatInt(ticketID, 10),
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
