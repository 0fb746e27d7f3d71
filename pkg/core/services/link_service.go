package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const (
	maxCreateAttempts = 5
	maxDestinationLen = 2048
	secondsPerDay     = 24 * 60 * 60
)

// LinkServiceConfig carries the link policy.
type LinkServiceConfig struct {
	// ServiceHost is rejected as a destination host to prevent redirect loops.
	ServiceHost    string
	AllowedTTLDays []int
	Metrics        *metrics.Metrics
}

type LinkService struct {
	repo        ports.LinkRepository
	ids         ports.TokenGenerator
	scheduler   ports.Scheduler
	notifier    ports.Notifier
	metrics     *metrics.Metrics
	serviceHost string
	allowedTTL  map[int]struct{}
	nowFunc     func() time.Time
}

func NewLinkService(
	repo ports.LinkRepository,
	ids ports.TokenGenerator,
	scheduler ports.Scheduler,
	notifier ports.Notifier,
	cfg LinkServiceConfig,
) *LinkService {
	allowed := make(map[int]struct{}, len(cfg.AllowedTTLDays))
	for _, d := range cfg.AllowedTTLDays {
		allowed[d] = struct{}{}
	}
	return &LinkService{
		repo:        repo,
		ids:         ids,
		scheduler:   scheduler,
		notifier:    notifier,
		metrics:     cfg.Metrics,
		serviceHost: strings.ToLower(cfg.ServiceHost),
		allowedTTL:  allowed,
		nowFunc:     time.Now,
	}
}

func (s *LinkService) now() int64 {
	return s.nowFunc().Unix()
}

func (s *LinkService) Create(ctx context.Context, ownerID, destination string, ttlDays *int) (*domain.Link, error) {
	const op = "services.link.Create"

	lg := logger.From(ctx)

	if ownerID == "" {
		return nil, fmt.Errorf("%s: empty owner: %w", op, domain.ErrInvalidRequest)
	}
	if err := s.validateDestination(destination); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ttlDays != nil {
		if _, ok := s.allowedTTL[*ttlDays]; !ok {
			return nil, fmt.Errorf("%s: ttl %d days not allowed: %w", op, *ttlDays, domain.ErrInvalidRequest)
		}
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		id, err := s.ids.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		now := s.now()
		link := &domain.Link{
			ID:          id,
			OwnerID:     ownerID,
			Destination: destination,
			Active:      true,
			CreatedAt:   now,
		}
		if ttlDays != nil {
			exp := now + int64(*ttlDays)*secondsPerDay
			link.ExpiresAt = &exp
		}

		err = s.repo.InsertIfAbsent(ctx, link)
		if errors.Is(err, domain.ErrConflict) {
			lg.Debug("link_id_collision", slog.String("op", op), slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			lg.Error("link_insert_failed", slog.String("op", op), slog.String("err", err.Error()))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if link.ExpiresAt != nil && s.scheduler != nil {
			if err := s.scheduler.Schedule(ctx, *link.ExpiresAt, link.ID); err != nil {
				lg.Error("link_schedule_failed",
					slog.String("op", op),
					slog.String("link_id", link.ID),
					slog.String("err", err.Error()),
				)
				// The caller never learns the id, so the link must not stay reachable.
				if _, derr := s.repo.Deactivate(ctx, link.ID, nil); derr != nil {
					lg.Error("link_unschedulable_deactivate_failed",
						slog.String("op", op),
						slog.String("link_id", link.ID),
						slog.String("err", derr.Error()),
					)
				}
				return nil, fmt.Errorf("%s: schedule: %w", op, err)
			}
		}

		s.metrics.LinkCreated()
		lg.Info("link_created", slog.String("link_id", link.ID), slog.String("owner_id", ownerID))
		return link, nil
	}

	lg.Error("link_id_collision_exceeded", slog.String("op", op))
	return nil, fmt.Errorf("%s: %w", op, domain.ErrTokenExhaustion)
}

func (s *LinkService) validateDestination(destination string) error {
	if destination == "" || len(destination) > maxDestinationLen {
		return fmt.Errorf("destination length: %w", domain.ErrInvalidRequest)
	}

	u, err := url.Parse(destination)
	if err != nil {
		return fmt.Errorf("destination: %w", domain.ErrInvalidRequest)
	}

	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return fmt.Errorf("destination must be an absolute http(s) url: %w", domain.ErrInvalidRequest)
	}

	if s.serviceHost != "" && strings.EqualFold(u.Hostname(), s.serviceHost) {
		return fmt.Errorf("destination points at this service: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// Deactivate turns off a link owned by requesterID. Missing, inactive and
// foreign links all yield domain.ErrNotFound.
func (s *LinkService) Deactivate(ctx context.Context, linkID, requesterID string) error {
	const op = "services.link.Deactivate"

	link, err := s.repo.Deactivate(ctx, linkID, &requesterID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.deactivated(ctx, link, "owner")
	return nil
}

// ScheduledDeactivate is the system-originated deactivation. It is
// idempotent; only storage failures are returned.
func (s *LinkService) ScheduledDeactivate(ctx context.Context, linkID string) error {
	const op = "services.link.ScheduledDeactivate"

	link, err := s.repo.Deactivate(ctx, linkID, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.deactivated(ctx, link, "scheduled")
	return nil
}

// Resolve returns the destination of an active link and counts the visit.
func (s *LinkService) Resolve(ctx context.Context, linkID string) (string, error) {
	const op = "services.link.Resolve"

	link, err := s.repo.Get(ctx, linkID)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.Redirect("not_found")
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !link.Active {
		s.metrics.Redirect("not_found")
		return "", domain.ErrNotFound
	}

	now := s.now()
	if link.Expired(now) {
		post, err := s.repo.Deactivate(ctx, linkID, nil)
		switch {
		case err == nil:
			s.deactivated(ctx, post, "expired")
		case errors.Is(err, domain.ErrNotFound):
		default:
			return "", fmt.Errorf("%s: expire: %w", op, err)
		}
		s.metrics.Redirect("expired")
		return "", domain.ErrNotFound
	}

	consume := link.SingleUse()
	post, err := s.repo.RecordVisit(ctx, linkID, now, consume)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.Redirect("not_found")
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if consume {
		s.deactivated(ctx, post, "consumed")
	}
	s.metrics.Redirect("ok")
	return post.Destination, nil
}

func (s *LinkService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	const op = "services.link.ListByOwner"

	links, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return links, nil
}

func (s *LinkService) deactivated(ctx context.Context, link *domain.Link, cause string) {
	s.metrics.Deactivated(cause)
	logger.From(ctx).Info("link_deactivated",
		slog.String("link_id", link.ID),
		slog.String("cause", cause),
	)
	if s.notifier != nil {
		s.notifier.Notify(ctx, domain.DeactivationNotice{
			OwnerID:     link.OwnerID,
			Destination: link.Destination,
		})
	}
}

var _ ports.LinkService = (*LinkService)(nil)
