package ledger

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

var dbSeq atomic.Int64

func newRepo(t *testing.T) *sqlite.SQLiteRepository {
	t.Helper()
	url := fmt.Sprintf("file:janitor_%d?mode=memory&cache=shared", dbSeq.Add(1))
	repo, err := sqlite.NewSQLiteRepository(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestJanitor_SweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, repo.PutToken(ctx, &domain.LedgerEntry{Token: "old", UserID: "u1", Kind: domain.TokenAccess, ExpiresAt: now.Unix() - 1}))
	require.NoError(t, repo.PutToken(ctx, &domain.LedgerEntry{Token: "edge", UserID: "u1", Kind: domain.TokenAccess, ExpiresAt: now.Unix()}))
	require.NoError(t, repo.PutToken(ctx, &domain.LedgerEntry{Token: "live", UserID: "u1", Kind: domain.TokenRefresh, ExpiresAt: now.Unix() + 60}))

	j := NewJanitor(repo, time.Minute, nil)
	j.nowFunc = func() time.Time { return now }

	n, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.GetToken(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetToken(ctx, "live")
	assert.NoError(t, err)
}

func TestJanitor_RunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := NewJanitor(newRepo(t), 10*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
