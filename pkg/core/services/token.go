package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// TokenConfig holds signing parameters. Access and refresh tokens use
// independent secrets.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// SessionClaims is the payload of both token kinds.
type SessionClaims struct {
	Kind domain.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// CredentialIssuer signs session tokens and records them in the ledger.
type CredentialIssuer struct {
	ledger  ports.LedgerRepository
	cfg     TokenConfig
	nowFunc func() time.Time
}

func NewCredentialIssuer(ledger ports.LedgerRepository, cfg TokenConfig) *CredentialIssuer {
	return &CredentialIssuer{ledger: ledger, cfg: cfg, nowFunc: time.Now}
}

func (i *CredentialIssuer) secret(kind domain.TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case domain.TokenAccess:
		return []byte(i.cfg.AccessSecret), i.cfg.AccessTTL, nil
	case domain.TokenRefresh:
		return []byte(i.cfg.RefreshSecret), i.cfg.RefreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown token kind %q", kind)
	}
}

func (i *CredentialIssuer) sign(userID string, kind domain.TokenKind, now time.Time) (string, *SessionClaims, error) {
	key, ttl, err := i.secret(kind)
	if err != nil {
		return "", nil, err
	}

	claims := &SessionClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Issue signs an access/refresh pair for userID. Both tokens are in the
// ledger before they are returned; otherwise domain.ErrIssuance.
func (i *CredentialIssuer) Issue(ctx context.Context, userID string) (*domain.TokenPair, error) {
	const op = "services.token.Issue"

	lg := logger.From(ctx)
	now := i.nowFunc()

	access, accessClaims, err := i.sign(userID, domain.TokenAccess, now)
	if err != nil {
		return nil, fmt.Errorf("%s: sign access: %w: %w", op, domain.ErrIssuance, err)
	}
	refresh, refreshClaims, err := i.sign(userID, domain.TokenRefresh, now)
	if err != nil {
		return nil, fmt.Errorf("%s: sign refresh: %w: %w", op, domain.ErrIssuance, err)
	}

	if err := i.ledger.PutToken(ctx, &domain.LedgerEntry{
		Token:     access,
		UserID:    userID,
		Kind:      domain.TokenAccess,
		ExpiresAt: accessClaims.ExpiresAt.Unix(),
	}); err != nil {
		lg.Error("ledger_put_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrIssuance, err)
	}

	if err := i.ledger.PutToken(ctx, &domain.LedgerEntry{
		Token:     refresh,
		UserID:    userID,
		Kind:      domain.TokenRefresh,
		ExpiresAt: refreshClaims.ExpiresAt.Unix(),
	}); err != nil {
		lg.Error("ledger_put_failed", slog.String("op", op), slog.String("err", err.Error()))
		if derr := i.ledger.DeleteToken(ctx, access); derr != nil {
			lg.Warn("ledger_rollback_failed", slog.String("op", op), slog.String("err", derr.Error()))
		}
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrIssuance, err)
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, issuer, expiry and kind of a token.
func (i *CredentialIssuer) Verify(kind domain.TokenKind, token string) (*SessionClaims, error) {
	const op = "services.token.Verify"

	key, _, err := i.secret(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}

	if !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	return claims, nil
}
