package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

const linkColumns = `id, owner_id, destination, active, visit_count, created_at, expires_at`

func scanLink(s scanner) (*domain.Link, error) {
	var (
		l         domain.Link
		active    int
		expiresAt sql.NullInt64
	)
	if err := s.Scan(&l.ID, &l.OwnerID, &l.Destination, &active, &l.VisitCount, &l.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	l.Active = active == 1
	if expiresAt.Valid {
		v := expiresAt.Int64
		l.ExpiresAt = &v
	}
	return &l, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*domain.Link, error) {
	const op = "sqlite.links.Get"

	row := r.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return link, nil
}

func (r *SQLiteRepository) InsertIfAbsent(ctx context.Context, link *domain.Link) error {
	const op = "sqlite.links.InsertIfAbsent"

	var expiresAt sql.NullInt64
	if link.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: *link.ExpiresAt, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		link.ID, link.OwnerID, link.Destination, boolToInt(link.Active), link.VisitCount, link.CreatedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *SQLiteRepository) Deactivate(ctx context.Context, id string, ownerID *string) (*domain.Link, error) {
	const op = "sqlite.links.Deactivate"

	var row *sql.Row
	if ownerID != nil {
		row = r.db.QueryRowContext(ctx,
			`UPDATE links SET active = 0 WHERE id = ? AND active = 1 AND owner_id = ?
			 RETURNING `+linkColumns, id, *ownerID)
	} else {
		row = r.db.QueryRowContext(ctx,
			`UPDATE links SET active = 0 WHERE id = ? AND active = 1
			 RETURNING `+linkColumns, id)
	}

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return link, nil
}

func (r *SQLiteRepository) RecordVisit(ctx context.Context, id string, now int64, consume bool) (*domain.Link, error) {
	const op = "sqlite.links.RecordVisit"

	var row *sql.Row
	if consume {
		row = r.db.QueryRowContext(ctx,
			`UPDATE links SET visit_count = visit_count + 1, active = 0
			 WHERE id = ? AND active = 1 AND expires_at IS NULL
			 RETURNING `+linkColumns, id)
	} else {
		row = r.db.QueryRowContext(ctx,
			`UPDATE links SET visit_count = visit_count + 1
			 WHERE id = ? AND active = 1 AND (expires_at IS NULL OR expires_at > ?)
			 RETURNING `+linkColumns, id, now)
	}

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return link, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	const op = "sqlite.links.ListByOwner"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	links, err := collectLinks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return links, nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	const op = "sqlite.links.Dump"

	rows, err := r.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	links, err := collectLinks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return links, nil
}

func collectLinks(rows *sql.Rows) ([]domain.Link, error) {
	links := []domain.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}
