package postgres

import (
	"context"

	"github.com/soonrec/identity/internal/auth/domain"
)

type activityLogsRepo struct {
	db dbtx
}

func (r *activityLogsRepo) AppendActivity(ctx context.Context, e domain.ActivityLogEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, user_id, action, ip_address, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, string(e.Action), e.IPAddress, e.Metadata, e.CreatedAt.UTC(),
	)
	return err
}

func (r *activityLogsRepo) ListUserActivity(
	ctx context.Context,
	userID string,
	limit int,
) ([]domain.ActivityLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, ip_address, metadata, created_at
		 FROM activity_logs WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityLogEntry
	for rows.Next() {
		var (
			e      domain.ActivityLogEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &action, &e.IPAddress, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = domain.Action(action)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
