package sqlite

import (
	"context"
	"fmt"
)

func (r *SQLiteRepository) AddSchedule(ctx context.Context, linkID string, fireAt int64) error {
	const op = "sqlite.schedules.AddSchedule"

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules (link_id, fire_at) VALUES (?, ?)
		 ON CONFLICT(link_id) DO UPDATE SET fire_at = excluded.fire_at, lease_until = 0`,
		linkID, fireAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClaimDue leases due jobs in one statement so two pollers never claim
// the same job within a lease.
func (r *SQLiteRepository) ClaimDue(ctx context.Context, now, leaseUntil int64, limit int) ([]string, error) {
	const op = "sqlite.schedules.ClaimDue"

	rows, err := r.db.QueryContext(ctx,
		`UPDATE schedules SET lease_until = ?, attempts = attempts + 1
		 WHERE link_id IN (
			SELECT link_id FROM schedules
			WHERE fire_at <= ? AND lease_until <= ?
			ORDER BY fire_at LIMIT ?
		 )
		 RETURNING link_id`,
		leaseUntil, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

func (r *SQLiteRepository) RemoveSchedule(ctx context.Context, linkID string) error {
	const op = "sqlite.schedules.RemoveSchedule"

	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE link_id = ?`, linkID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
