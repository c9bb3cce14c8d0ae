package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	admindomain "github.com/loanrecovery/backend/internal/domain/admin"
)

// AdminAuditRepository appends to and reads back the admin_audit_logs trail.
type AdminAuditRepository struct {
	pool *pgxpool.Pool
}

func NewAdminAuditRepository(pool *pgxpool.Pool) *AdminAuditRepository {
	return &AdminAuditRepository{pool: pool}
}

func (r *AdminAuditRepository) Log(ctx context.Context, in admindomain.AuditLogInput) error {
	payload := in.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	var actor any
	if validID(in.ActorID) {
		actor = in.ActorID
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO admin_audit_logs (actor_id, action, target_type, target_id, payload)
VALUES ($1, $2, $3, $4, $5::jsonb)
`, actor, in.Action, in.TargetType, in.TargetID, string(payload))
	if err != nil {
		return fmt.Errorf("insert audit %s: %w", in.Action, err)
	}
	return nil
}

// Recent returns the newest entries first, actor names resolved.
func (r *AdminAuditRepository) Recent(ctx context.Context, limit int32) ([]admindomain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
SELECT a.id, COALESCE(a.actor_id::text, ''), COALESCE(u.name, ''), a.action,
       a.target_type, a.target_id, a.payload::text, a.created_at
FROM admin_audit_logs a
LEFT JOIN users u ON u.id = a.actor_id
ORDER BY a.created_at DESC, a.id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]admindomain.AuditEntry, 0)
	for rows.Next() {
		var e admindomain.AuditEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.TargetType, &e.TargetID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}
