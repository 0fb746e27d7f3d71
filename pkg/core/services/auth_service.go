package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,4}$`)
	passwordPattern = regexp.MustCompile(`^[A-Za-z0-9]{8,100}$`)
	hasLetter       = regexp.MustCompile(`[A-Za-z]`)
	hasDigit        = regexp.MustCompile(`[0-9]`)
)

type AuthServiceConfig struct {
	BcryptCost int
	Metrics    *metrics.Metrics
}

// AuthService owns accounts and the session token lifecycle.
type AuthService struct {
	users   ports.UserRepository
	ledger  ports.LedgerRepository
	issuer  *CredentialIssuer
	cost    int
	metrics *metrics.Metrics
	nowFunc func() time.Time
}

func NewAuthService(users ports.UserRepository, ledger ports.LedgerRepository, issuer *CredentialIssuer, cfg AuthServiceConfig) *AuthService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:   users,
		ledger:  ledger,
		issuer:  issuer,
		cost:    cost,
		metrics: cfg.Metrics,
		nowFunc: time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validPassword(p string) bool {
	return passwordPattern.MatchString(p) && hasLetter.MatchString(p) && hasDigit.MatchString(p)
}

func (s *AuthService) SignUp(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	const op = "services.auth.SignUp"

	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, nil, fmt.Errorf("%s: email: %w", op, domain.ErrInvalidRequest)
	}
	if !validPassword(password) {
		return nil, nil, fmt.Errorf("%s: password: %w", op, domain.ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: hash: %w", op, err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.nowFunc().Unix(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, nil, domain.ErrEmailTaken
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.From(ctx).Info("user_signed_up", slog.String("user_id", user.ID))
	return user, pair, nil
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	const op = "services.auth.SignIn"

	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) || password == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, domain.ErrInvalidRequest)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	// Accounts created through Google have no password.
	if user.PasswordHash == "" {
		return nil, nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, pair, nil
}

// SignInExternal issues tokens for an email verified by an identity
// provider, creating the account on first use.
func (s *AuthService) SignInExternal(ctx context.Context, email string) (*domain.User, *domain.TokenPair, error) {
	const op = "services.auth.SignInExternal"

	email = normalizeEmail(email)
	if email == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, domain.ErrInvalidRequest)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		user = &domain.User{ID: uuid.NewString(), Email: email, CreatedAt: s.nowFunc().Unix()}
		err = s.users.CreateUser(ctx, user)
		if errors.Is(err, domain.ErrEmailTaken) {
			user, err = s.users.GetUserByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, pair, nil
}

// Authorize admits an access token only if it is in the ledger and
// verifies. A recorded token that fails verification is removed.
func (s *AuthService) Authorize(ctx context.Context, token string) (*domain.Identity, error) {
	const op = "services.auth.Authorize"

	lg := logger.From(ctx)

	if token == "" {
		s.metrics.AuthDecision("denied")
		return nil, domain.ErrDenied
	}

	entry, err := s.ledger.GetToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.AuthDecision("denied")
		return nil, domain.ErrDenied
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims, err := s.issuer.Verify(domain.TokenAccess, token)
	if err == nil && (entry.Kind != domain.TokenAccess || claims.Subject != entry.UserID) {
		err = ErrTokenInvalid
	}
	if err != nil {
		lg.Info("token_burned", slog.String("op", op), slog.String("reason", err.Error()))
		if derr := s.ledger.DeleteToken(ctx, token); derr != nil {
			return nil, fmt.Errorf("%s: burn: %w", op, derr)
		}
		s.metrics.AuthDecision("burned")
		return nil, domain.ErrDenied
	}

	user, err := s.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.AuthDecision("denied")
		return nil, domain.ErrDenied
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthDecision("admit")
	return &domain.Identity{UserID: user.ID, Email: user.Email}, nil
}

// Refresh rotates a refresh token. The presented token is removed from
// the ledger whether or not it verifies.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	const op = "services.auth.Refresh"

	if refreshToken == "" {
		return nil, domain.ErrDenied
	}

	entry, err := s.ledger.TakeToken(ctx, refreshToken)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrDenied
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims, err := s.issuer.Verify(domain.TokenRefresh, refreshToken)
	if err != nil || entry.Kind != domain.TokenRefresh || claims.Subject != entry.UserID {
		s.metrics.AuthDecision("burned")
		return nil, domain.ErrDenied
	}

	if _, err := s.users.GetUser(ctx, claims.Subject); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrDenied
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuer.Issue(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pair, nil
}

// SignOut revokes the access token and, if it belongs to the same user,
// the refresh token.
func (s *AuthService) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	const op = "services.auth.SignOut"

	entry, err := s.ledger.TakeToken(ctx, accessToken)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if refreshToken == "" {
		return nil
	}
	ref, err := s.ledger.GetToken(ctx, refreshToken)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ref.UserID != entry.UserID {
		return nil
	}
	if err := s.ledger.DeleteToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Revoke drops token from the ledger. Unknown tokens are not an error.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	const op = "services.auth.Revoke"

	if token == "" {
		return nil
	}
	if err := s.ledger.DeleteToken(ctx, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

var _ ports.AuthService = (*AuthService)(nil)
