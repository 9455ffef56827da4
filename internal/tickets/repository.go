package tickets

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// Repository provides PostgreSQL backed persistence for tickets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ticketColumns = `
	t.id, t.code, t.title, t.description, t.status,
	t.reporter_id, rep.name || ' ' || rep.last_name,
	t.assignee_id, COALESCE(ass.name || ' ' || ass.last_name, ''),
	t.created_at, t.updated_at`

// List returns tickets newest first, optionally filtered by status, plus the
// total count the filter matches.
func (r *Repository) List(ctx context.Context, f Filters, offset, limit int) ([]Ticket, int, error) {
	where := ``
	args := []any{limit, offset}
	if f.Status != "" {
		where = `WHERE t.status = $3`
		args = append(args, string(f.Status))
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets t
		JOIN users rep ON rep.id = t.reporter_id
		LEFT JOIN users ass ON ass.id = t.assignee_id
		`+where+`
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM tickets t`
	countArgs := []any{}
	if f.Status != "" {
		countQuery += ` WHERE t.status = $1`
		countArgs = append(countArgs, string(f.Status))
	}
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

// Get fetches a ticket by id.
func (r *Repository) Get(ctx context.Context, id int64) (Ticket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets t
		JOIN users rep ON rep.id = t.reporter_id
		LEFT JOIN users ass ON ass.id = t.assignee_id
		WHERE t.id = $1`, id)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, shared.ErrNotFound
		}
		return Ticket{}, err
	}
	return t, nil
}

// Create inserts a ticket.
func (r *Repository) Create(ctx context.Context, t Ticket) (Ticket, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tickets (code, title, description, status, reporter_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		t.Code, t.Title, t.Description, string(t.Status), t.ReporterID).Scan(
		&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// UpdateStatus moves a ticket to a new status, optionally setting the
// assignee.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, assigneeID *int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET status = $2, assignee_id = COALESCE($3, assignee_id), updated_at = NOW()
		WHERE id = $1`, id, string(status), assigneeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Comments returns a ticket's comments oldest first.
func (r *Repository) Comments(ctx context.Context, ticketID int64) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.ticket_id, c.author_id, u.name || ' ' || u.last_name, c.body, c.created_at
		FROM ticket_comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.ticket_id = $1
		ORDER BY c.created_at, c.id`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// AddComment appends a comment to a ticket.
func (r *Repository) AddComment(ctx context.Context, c Comment) (Comment, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ticket_comments (ticket_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		c.TicketID, c.AuthorID, c.Body).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	var status string
	err := row.Scan(
		&t.ID, &t.Code, &t.Title, &t.Description, &status,
		&t.ReporterID, &t.ReporterName,
		&t.AssigneeID, &t.AssigneeName,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Ticket{}, err
	}
	t.Status = Status(status)
	return t, nil
}
