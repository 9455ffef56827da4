package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit entries from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Timeline fetches entries ordered newest first with the supplied filters.
func (r *PGRepository) Timeline(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filters.ActorID != 0 {
		add("actor_id = $%d", filters.ActorID)
	}
	if filters.Action != "" {
		add("action = $%d", string(filters.Action))
	}
	if filters.Entity != "" {
		add("entity = $%d", string(filters.Entity))
	}
	if filters.EntityID != "" {
		add("entity_id = $%d", filters.EntityID)
	}
	if !filters.From.IsZero() {
		add("created_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("created_at < $%d", filters.To)
	}

	query := `SELECT id, actor_id, actor_name, action, entity, entity_id, detail, ip_address, user_agent, meta, created_at FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			action   string
			entity   string
			metaJSON []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorName, &action, &entity,
			&entry.EntityID, &entry.Detail, &entry.IPAddress, &entry.UserAgent, &metaJSON, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = Action(action)
		entry.Entity = Entity(entity)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &entry.Meta); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
