package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder appends records to audit_logs. The table is append-only: nothing
// in the application updates or deletes rows.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a Recorder backed by the provided pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists one entry. Callers on mutation paths treat a failure here
// as log-and-continue: an audit write must never roll back or block the
// business operation that triggered it.
func (r *Recorder) Record(ctx context.Context, rec Record) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if rec.Action == "" || rec.Entity == "" || rec.EntityID == "" {
		return errors.New("audit: record requires action, entity and entity id")
	}
	metaJSON, err := json.Marshal(rec.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, actor_name, action, entity, entity_id, detail, ip_address, user_agent, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE(NULLIF($10, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`,
		rec.ActorID, rec.ActorName, string(rec.Action), string(rec.Entity), rec.EntityID,
		rec.Detail, rec.IPAddress, rec.UserAgent, metaJSON, rec.At)
	return err
}
