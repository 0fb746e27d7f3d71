package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

func (r *SQLiteRepository) PutToken(ctx context.Context, entry *domain.LedgerEntry) error {
	const op = "sqlite.tokens.PutToken"

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (token, user_id, kind, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token) DO NOTHING`,
		entry.Token, entry.UserID, string(entry.Kind), entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return nil
}

func scanEntry(s scanner) (*domain.LedgerEntry, error) {
	var (
		e    domain.LedgerEntry
		kind string
	)
	if err := s.Scan(&e.Token, &e.UserID, &kind, &e.ExpiresAt); err != nil {
		return nil, err
	}
	e.Kind = domain.TokenKind(kind)
	return &e, nil
}

func (r *SQLiteRepository) GetToken(ctx context.Context, token string) (*domain.LedgerEntry, error) {
	const op = "sqlite.tokens.GetToken"

	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT token, user_id, kind, expires_at FROM tokens WHERE token = ?`, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func (r *SQLiteRepository) TakeToken(ctx context.Context, token string) (*domain.LedgerEntry, error) {
	const op = "sqlite.tokens.TakeToken"

	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`DELETE FROM tokens WHERE token = ? RETURNING token, user_id, kind, expires_at`, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func (r *SQLiteRepository) DeleteToken(ctx context.Context, token string) error {
	const op = "sqlite.tokens.DeleteToken"

	if _, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredTokens(ctx context.Context, now int64) (int64, error) {
	const op = "sqlite.tokens.DeleteExpiredTokens"

	res, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}
