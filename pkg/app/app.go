// Package app assembles the service from configuration. Both the
// long-running server and the serverless entrypoint build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/ledger"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/ledger/redisledger"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/notifier"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/scheduler"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink/pkg/core/shortid"
	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

type App struct {
	Config    *config.Config
	Repo      *sqlite.SQLiteRepository
	Ledger    ports.LedgerRepository
	Links     *services.LinkService
	Auth      *services.AuthService
	Scheduler *scheduler.Scheduler
	Notifier  *notifier.Queue
	Janitor   *ledger.Janitor
	Handler   http.Handler
	Registry  *prometheus.Registry

	log     *slog.Logger
	closers []func() error
	wg      sync.WaitGroup
}

// New wires every component. Background work starts only with Start.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "app.New"

	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, log: log}

	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)

	a.Ledger = repo
	if cfg.RedisURL != "" {
		rl, err := redisledger.New(ctx, cfg.RedisURL, "")
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.Ledger = rl
		a.closers = append(a.closers, rl.Close)
		log.Info("ledger_backend", slog.String("backend", "redis"))
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.Registry)

	var mailer ports.Mailer = notifier.NewLogMailer(log)
	if cfg.Mail.SMTPHost != "" {
		mailer = notifier.NewSMTPMailer(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort,
			cfg.Mail.SMTPUsername, cfg.Mail.SMTPPassword, cfg.Mail.From)
	}
	a.Notifier = notifier.New(repo, mailer, notifier.Options{
		QueueSize: cfg.Jobs.NotifyQueueSize,
		Workers:   cfg.Jobs.NotifyWorkers,
		Logger:    log,
		Metrics:   m,
	})

	a.Scheduler = scheduler.New(repo, scheduler.Options{
		Interval: cfg.Jobs.SchedulerPollInterval,
		Batch:    cfg.Jobs.SchedulerBatch,
		Logger:   log,
	})

	a.Links = services.NewLinkService(repo, shortid.NewGenerator(cfg.Links.ShortIDLength), a.Scheduler, a.Notifier,
		services.LinkServiceConfig{
			ServiceHost:    cfg.ServiceHost(),
			AllowedTTLDays: cfg.Links.AllowedTTLDays,
			Metrics:        m,
		})

	issuer := services.NewCredentialIssuer(a.Ledger, services.TokenConfig{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	a.Auth = services.NewAuthService(repo, a.Ledger, issuer, services.AuthServiceConfig{
		BcryptCost: cfg.Auth.BcryptCost,
		Metrics:    m,
	})

	a.Janitor = ledger.NewJanitor(a.Ledger, cfg.Jobs.LedgerJanitorInterval, log)

	a.Handler = handler.NewRouter(handler.Deps{
		Config:   cfg,
		Links:    a.Links,
		Auth:     a.Auth,
		Logger:   log,
		Metrics:  m,
		Gatherer: a.Registry,
		Ready:    repo.Ping,
	})

	return a, nil
}

// Start launches the notifier workers, the deactivation scheduler and the
// ledger janitor. They stop when ctx is done; Wait blocks until they have.
func (a *App) Start(ctx context.Context) {
	a.Notifier.Start(ctx)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.Scheduler.Run(ctx, a.Links)
	}()
	go func() {
		defer a.wg.Done()
		a.Janitor.Run(ctx)
	}()
}

func (a *App) Wait() {
	a.wg.Wait()
	a.Notifier.Wait()
}

// Close releases storage in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
