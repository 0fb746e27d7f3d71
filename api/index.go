package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/shortlink/pkg/app"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.MustLoad()
	log := logger.New(logger.Options{Env: cfg.AppEnv, Level: cfg.Log.Level})

	// Note: On Vercel, db.sqlite is ephemeral unless using a remote SQL/Turso URL in DATABASE_URL.
	// Only the notifier runs in the background here; expiry is enforced on
	// resolve and by `cli sweep`.
	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}
	a.Notifier.Start(context.Background())
	mux = a.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
