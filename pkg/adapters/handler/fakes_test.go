package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

func silentLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() *config.Config {
	return &config.Config{
		BaseURL: "http://sho.rt",
		Timeout: 5 * time.Second,
		Auth:    config.AuthConfig{AccessTokenTTL: time.Hour},
		Google:  config.GoogleConfig{FrontendURL: "http://sho.rt/dashboard"},
	}
}

// fakeAuth admits tokens present in its table.
type fakeAuth struct {
	mu        sync.Mutex
	tokens    map[string]domain.Identity
	signedOut []string
	revoked   []string
	err       error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{tokens: map[string]domain.Identity{
		"good": {UserID: "u1", Email: "u1@example.com"},
	}}
}

func (f *fakeAuth) SignUp(_ context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &domain.User{ID: "new-user", Email: email}, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"}, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	if password != "secret123" {
		return nil, nil, domain.ErrInvalidCredentials
	}
	return &domain.User{ID: "u1", Email: email}, &domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (f *fakeAuth) SignInExternal(_ context.Context, email string) (*domain.User, *domain.TokenPair, error) {
	return &domain.User{ID: "u1", Email: email}, &domain.TokenPair{AccessToken: "ext", RefreshToken: "ext-r"}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (*domain.TokenPair, error) {
	if token != "r1" {
		return nil, domain.ErrDenied
	}
	return &domain.TokenPair{AccessToken: "a3", RefreshToken: "r3"}, nil
}

func (f *fakeAuth) SignOut(_ context.Context, access, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut = append(f.signedOut, access, refresh)
	delete(f.tokens, access)
	return nil
}

func (f *fakeAuth) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeAuth) Authorize(_ context.Context, token string) (*domain.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return nil, domain.ErrDenied
	}
	return &id, nil
}

// fakeLinks keeps links in memory without any lifecycle rules.
type fakeLinks struct {
	mu    sync.Mutex
	links map[string]*domain.Link
	err   error
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: map[string]*domain.Link{}}
}

func (f *fakeLinks) Create(_ context.Context, ownerID, destination string, ttlDays *int) (*domain.Link, error) {
	if f.err != nil {
		return nil, f.err
	}
	if ttlDays != nil && *ttlDays == 2 {
		return nil, domain.ErrInvalidRequest
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &domain.Link{ID: "abc123", OwnerID: ownerID, Destination: destination, Active: true, CreatedAt: 1}
	f.links[l.ID] = l
	return l, nil
}

func (f *fakeLinks) Deactivate(_ context.Context, linkID, requesterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[linkID]
	if !ok || !l.Active || l.OwnerID != requesterID {
		return domain.ErrNotFound
	}
	l.Active = false
	return nil
}

func (f *fakeLinks) ScheduledDeactivate(context.Context, string) error { return nil }

func (f *fakeLinks) Resolve(_ context.Context, linkID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[linkID]
	if !ok || !l.Active {
		return "", domain.ErrNotFound
	}
	l.VisitCount++
	return l.Destination, nil
}

func (f *fakeLinks) ListByOwner(_ context.Context, ownerID string) ([]domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Link{}
	for _, l := range f.links {
		if l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}
