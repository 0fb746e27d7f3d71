// Package notifier delivers link deactivation notices to owners by mail.
// Notify only enqueues; delivery runs on background workers and its
// failures are logged.
package notifier

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const Subject = "One of your links has been deactivated."

var bodyTmpl = template.Must(template.New("deactivated").Parse(
	`<p>Hi {{.Email}},</p>
<p>Your shortened link to <a href="{{.Destination}}">{{.Destination}}</a> has been deactivated.</p>`))

type Options struct {
	QueueSize int
	Workers   int
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

type Queue struct {
	ch      chan domain.DeactivationNotice
	users   ports.UserRepository
	mailer  ports.Mailer
	workers int
	log     *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
	running atomic.Int32
}

func New(users ports.UserRepository, mailer ports.Mailer, opts Options) *Queue {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		ch:      make(chan domain.DeactivationNotice, opts.QueueSize),
		users:   users,
		mailer:  mailer,
		workers: opts.Workers,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Notify enqueues notice without blocking. A full queue drops it.
// Without running workers the notice waits for Drain.
func (q *Queue) Notify(ctx context.Context, notice domain.DeactivationNotice) {
	select {
	case q.ch <- notice:
		if q.running.Load() == 0 {
			logger.From(ctx).Warn("notice_queued_without_consumer",
				slog.String("owner_id", notice.OwnerID),
				slog.Int("pending", len(q.ch)),
			)
		}
	default:
		q.metrics.NoticeDropped()
		logger.From(ctx).Warn("notice_dropped",
			slog.String("owner_id", notice.OwnerID),
			slog.String("reason", "queue full"),
		)
	}
}

// Start runs the workers until ctx is done. Wait blocks until they exit.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		q.running.Add(1)
		go func() {
			defer q.wg.Done()
			defer q.running.Add(-1)
			for {
				select {
				case <-ctx.Done():
					return
				case n := <-q.ch:
					q.deliver(ctx, n)
				}
			}
		}()
	}
}

func (q *Queue) Wait() {
	q.wg.Wait()
}

// Drain delivers every queued notice on the calling goroutine and
// returns how many it took. Short-lived processes call it before exit.
func (q *Queue) Drain(ctx context.Context) int {
	n := 0
	for {
		if ctx.Err() != nil {
			return n
		}
		select {
		case notice := <-q.ch:
			q.deliver(ctx, notice)
			n++
		default:
			return n
		}
	}
}

// Pending is the number of queued notices.
func (q *Queue) Pending() int {
	return len(q.ch)
}

func (q *Queue) deliver(ctx context.Context, n domain.DeactivationNotice) {
	const op = "notifier.deliver"

	user, err := q.users.GetUser(ctx, n.OwnerID)
	if err != nil {
		q.log.Error("notice_owner_lookup_failed",
			slog.String("op", op),
			slog.String("owner_id", n.OwnerID),
			slog.String("err", err.Error()),
		)
		return
	}

	var body bytes.Buffer
	if err := bodyTmpl.Execute(&body, struct {
		Email       string
		Destination string
	}{user.Email, n.Destination}); err != nil {
		q.log.Error("notice_render_failed", slog.String("op", op), slog.String("err", err.Error()))
		return
	}

	if err := q.mailer.Send(ctx, user.Email, Subject, body.String()); err != nil {
		q.log.Error("notice_send_failed",
			slog.String("op", op),
			slog.String("owner_id", n.OwnerID),
			slog.String("err", err.Error()),
		)
		return
	}
	q.log.Debug("notice_sent", slog.String("owner_id", n.OwnerID))
}

var _ ports.Notifier = (*Queue)(nil)
