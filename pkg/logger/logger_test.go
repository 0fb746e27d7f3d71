package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_HandlerByEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		wantJSON bool
	}{
		{name: "local is text", env: "local", wantJSON: false},
		{name: "dev is json", env: "dev", wantJSON: true},
		{name: "production is json", env: "production", wantJSON: true},
		{name: "unknown is text", env: "whatever", wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newWithWriter(&buf, Options{Env: tt.env, Level: "info"})
			l.Info("hello", slog.String("k", "v"))

			var m map[string]any
			err := json.Unmarshal(buf.Bytes(), &m)
			if tt.wantJSON {
				require.NoError(t, err)
				require.Equal(t, "hello", m["msg"])
				require.Equal(t, "v", m["k"])
			} else {
				require.Error(t, err)
				require.True(t, strings.Contains(buf.String(), "msg=hello"))
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, parseLevel("WARN", "local"))
	require.Equal(t, slog.LevelError, parseLevel("error", "local"))
	require.Equal(t, slog.LevelInfo, parseLevel("", "production"))
	require.Equal(t, slog.LevelDebug, parseLevel("", "local"))
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, Options{Env: "production", Level: "info"})
	l.Debug("hidden")
	require.Zero(t, buf.Len())
}

func TestFrom_DefaultWhenMissing(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := slog.New(slog.NewTextHandler(io.Discard, nil))
	slog.SetDefault(def)

	require.Same(t, def, From(context.Background()))
}

func TestInto_RoundTrip(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := Into(context.Background(), l)
	require.Same(t, l, From(ctx))

	var nilLogger *slog.Logger
	ctx = Into(context.Background(), nilLogger)
	require.Same(t, slog.Default(), From(ctx))
}
