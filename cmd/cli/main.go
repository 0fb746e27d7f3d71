package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/wadjakorntonsri/shortlink/pkg/app"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const usage = "expected 'export', 'import', 'sweep' or 'purge-tokens' subcommands"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	purgeCmd := flag.NewFlagSet("purge-tokens", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := config.MustLoad()
	// Logs go to stderr so export output stays clean JSON.
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := logger.Into(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		err = doExport(ctx, a.Repo, os.Stdout)
	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		err = doImport(ctx, a.Repo, a.Scheduler, *importFile, log)
	case "sweep":
		_ = sweepCmd.Parse(os.Args[2:])
		err = sweep(ctx, a, log)
	case "purge-tokens":
		_ = purgeCmd.Parse(os.Args[2:])
		var n int64
		n, err = a.Janitor.Sweep(ctx)
		if err == nil {
			log.Info("purge_done", slog.Int64("removed", n))
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	// No workers run in the CLI; deliver whatever the command queued.
	if n := a.Notifier.Drain(ctx); n > 0 {
		log.Info("notices_delivered", slog.Int("count", n))
	}

	if err != nil {
		log.Error("command_failed", slog.String("cmd", os.Args[1]), slog.String("err", err.Error()))
		a.Close()
		os.Exit(1)
	}
}

// sweep runs every due scheduled deactivation once and delivers the
// resulting notices before returning.
func sweep(ctx context.Context, a *app.App, log *slog.Logger) error {
	n, err := a.Scheduler.RunOnce(ctx, a.Links)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	sent := a.Notifier.Drain(ctx)
	log.Info("sweep_done", slog.Int("deactivated", n), slog.Int("notified", sent))
	return nil
}

func doExport(ctx context.Context, repo ports.LinkRepository, w io.Writer) error {
	links, err := repo.Dump(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(links); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}

func doImport(ctx context.Context, repo ports.LinkRepository, sched ports.Scheduler, filename string, log *slog.Logger) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer file.Close()

	n, err := importLinks(ctx, repo, sched, file, log)
	if err != nil {
		return err
	}
	log.Info("import_done", slog.Int("imported", n))
	return nil
}

// importLinks inserts every link whose id is free and skips the rest.
// Ids are kept so existing short URLs survive the migration. Active links
// with an expiry get their deactivation scheduled again.
func importLinks(ctx context.Context, repo ports.LinkRepository, sched ports.Scheduler, r io.Reader, log *slog.Logger) (int, error) {
	var links []domain.Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return 0, fmt.Errorf("import: decode: %w", err)
	}

	count := 0
	for i := range links {
		l := links[i]
		err := repo.InsertIfAbsent(ctx, &l)
		if errors.Is(err, domain.ErrConflict) {
			log.Info("import_skipped_existing", slog.String("link_id", l.ID))
			continue
		}
		if err != nil {
			log.Error("import_failed", slog.String("link_id", l.ID), slog.String("err", err.Error()))
			continue
		}
		if sched != nil && l.Active && l.ExpiresAt != nil {
			if err := sched.Schedule(ctx, *l.ExpiresAt, l.ID); err != nil {
				log.Error("import_schedule_failed", slog.String("link_id", l.ID), slog.String("err", err.Error()))
			}
		}
		count++
	}
	return count, nil
}
