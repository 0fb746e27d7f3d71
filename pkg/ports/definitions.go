package ports

import (
	"context"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

// LinkRepository defines storage operations for links.
// Every mutation is a single conditional statement.
type LinkRepository interface {
	Get(ctx context.Context, id string) (*domain.Link, error)
	// InsertIfAbsent returns domain.ErrConflict when the id is taken.
	InsertIfAbsent(ctx context.Context, link *domain.Link) error
	// Deactivate flips active to false if the link is active and, when
	// ownerID is not nil, owned by *ownerID. It returns the post-image,
	// or domain.ErrNotFound when the condition did not hold.
	Deactivate(ctx context.Context, id string, ownerID *string) (*domain.Link, error)
	// RecordVisit increments the visit counter of an active, unexpired link.
	// With consume set the same statement also deactivates it.
	RecordVisit(ctx context.Context, id string, now int64, consume bool) (*domain.Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration
}

// UserRepository stores accounts.
type UserRepository interface {
	// CreateUser returns domain.ErrEmailTaken on a duplicate email.
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// LedgerRepository tracks issued session tokens.
type LedgerRepository interface {
	PutToken(ctx context.Context, entry *domain.LedgerEntry) error
	// GetToken returns domain.ErrNotFound when the token is not recorded.
	GetToken(ctx context.Context, token string) (*domain.LedgerEntry, error)
	DeleteToken(ctx context.Context, token string) error
	// TakeToken deletes the entry and returns it; domain.ErrNotFound when absent.
	TakeToken(ctx context.Context, token string) (*domain.LedgerEntry, error)
	DeleteExpiredTokens(ctx context.Context, now int64) (int64, error)
}

// ScheduleRepository persists one-shot deactivation triggers.
type ScheduleRepository interface {
	AddSchedule(ctx context.Context, linkID string, fireAt int64) error
	// ClaimDue leases up to limit due jobs until leaseUntil and returns their link ids.
	ClaimDue(ctx context.Context, now, leaseUntil int64, limit int) ([]string, error)
	RemoveSchedule(ctx context.Context, linkID string) error
}

// TokenGenerator produces candidate link ids.
type TokenGenerator interface {
	Generate() (string, error)
}

// Scheduler registers a deactivation trigger for fireAt.
type Scheduler interface {
	Schedule(ctx context.Context, fireAt int64, linkID string) error
}

// Notifier accepts deactivation notices. It must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, notice domain.DeactivationNotice)
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// LinkService defines the link lifecycle operations.
type LinkService interface {
	Create(ctx context.Context, ownerID, destination string, ttlDays *int) (*domain.Link, error)
	Deactivate(ctx context.Context, linkID, requesterID string) error
	ScheduledDeactivate(ctx context.Context, linkID string) error
	Resolve(ctx context.Context, linkID string) (string, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error)
}

// AuthService defines account and session operations.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error)
	SignIn(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error)
	SignInExternal(ctx context.Context, email string) (*domain.User, *domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	// Revoke removes a single token from the ledger.
	Revoke(ctx context.Context, token string) error
	Authorize(ctx context.Context, token string) (*domain.Identity, error)
}
