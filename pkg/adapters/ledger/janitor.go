// Package ledger holds storage-independent helpers for the token ledger.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// Janitor removes ledger entries whose tokens have expired. Expired
// tokens already fail verification; this only bounds the table size.
type Janitor struct {
	ledger   ports.LedgerRepository
	interval time.Duration
	log      *slog.Logger
	nowFunc  func() time.Time
}

func NewJanitor(ledger ports.LedgerRepository, interval time.Duration, log *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{ledger: ledger, interval: interval, log: log, nowFunc: time.Now}
}

// Sweep deletes expired entries once.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	return j.ledger.DeleteExpiredTokens(ctx, j.nowFunc().Unix())
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		n, err := j.Sweep(ctx)
		if err != nil {
			j.log.Error("ledger_sweep_failed", slog.String("err", err.Error()))
			continue
		}
		if n > 0 {
			j.log.Info("ledger_swept", slog.Int64("removed", n))
		}
	}
}
