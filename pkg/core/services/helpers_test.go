package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/core/shortid"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

var dbSeq atomic.Int64

func newRepo(t *testing.T) *sqlite.SQLiteRepository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	repo, err := sqlite.NewSQLiteRepository(fmt.Sprintf("file:svc_%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockScheduler struct{ mock.Mock }

func (m *mockScheduler) Schedule(ctx context.Context, fireAt int64, linkID string) error {
	args := m.Called(ctx, fireAt, linkID)
	return args.Error(0)
}

// recordingNotifier collects notices synchronously.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.DeactivationNotice
}

func (n *recordingNotifier) Notify(_ context.Context, notice domain.DeactivationNotice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *recordingNotifier) All() []domain.DeactivationNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.DeactivationNotice(nil), n.notices...)
}

// seqIDs hands out ids in order and repeats the last one.
type seqIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

func (g *seqIDs) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.n
	if i >= len(g.ids) {
		i = len(g.ids) - 1
	}
	g.n++
	return g.ids[i], nil
}

func (g *seqIDs) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// failingLinks fails selected operations of an otherwise working store.
type failingLinks struct {
	ports.LinkRepository
	deactivateErr error
	getErr        error
}

func (f *failingLinks) Deactivate(ctx context.Context, id string, ownerID *string) (*domain.Link, error) {
	if f.deactivateErr != nil {
		return nil, f.deactivateErr
	}
	return f.LinkRepository.Deactivate(ctx, id, ownerID)
}

func (f *failingLinks) Get(ctx context.Context, id string) (*domain.Link, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.LinkRepository.Get(ctx, id)
}

// failingLedger fails selected operations of an otherwise working ledger.
type failingLedger struct {
	ports.LedgerRepository
	putErrAfter int // PutToken fails once this many puts succeeded; -1 disables
	puts        int
	getErr      error
	deleted     []string
}

func (f *failingLedger) PutToken(ctx context.Context, e *domain.LedgerEntry) error {
	if f.putErrAfter >= 0 && f.puts >= f.putErrAfter {
		return fmt.Errorf("ledger unavailable")
	}
	f.puts++
	return f.LedgerRepository.PutToken(ctx, e)
}

func (f *failingLedger) GetToken(ctx context.Context, token string) (*domain.LedgerEntry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.LedgerRepository.GetToken(ctx, token)
}

func (f *failingLedger) DeleteToken(ctx context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	return f.LedgerRepository.DeleteToken(ctx, token)
}

func ptr[T any](v T) *T { return &v }

var _ ports.TokenGenerator = (*shortid.Generator)(nil)
