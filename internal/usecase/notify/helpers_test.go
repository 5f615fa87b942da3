package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/infra/adapter/persistence/memory"
	"vetcare/internal/resilience/retry"

	"github.com/stretchr/testify/require"
)

// fakeChannel is a scripted Channel. It records every call into an optional
// shared call log so tests can assert the order in which channels were tried.
type fakeChannel struct {
	kind   entity.ChannelKind
	accept bool
	panics bool
	block  bool
	log    *callLog
	// onSend runs before the result is returned.
	onSend func()

	mu    sync.Mutex
	calls int
	metas []entity.Meta
}

func (f *fakeChannel) Kind() entity.ChannelKind { return f.kind }

func (f *fakeChannel) Send(ctx context.Context, userID, title, body string, meta entity.Meta) bool {
	f.mu.Lock()
	f.calls++
	f.metas = append(f.metas, meta)
	f.mu.Unlock()
	if f.log != nil {
		f.log.add(f.kind)
	}
	if f.onSend != nil {
		f.onSend()
	}
	if f.panics {
		panic("provider exploded")
	}
	if f.block {
		<-ctx.Done()
		return false
	}
	return f.accept
}

func (f *fakeChannel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type callLog struct {
	mu    sync.Mutex
	kinds []entity.ChannelKind
}

func (l *callLog) add(k entity.ChannelKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, k)
}

func (l *callLog) get() []entity.ChannelKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]entity.ChannelKind(nil), l.kinds...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fastRetry() retry.Config {
	cfg := retry.StoreConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	return cfg
}

func newTestService(t *testing.T, clock *testClock, channels ...Channel) (Service, *memory.NotificationRepo) {
	t.Helper()
	registry, err := NewRegistry(channels...)
	require.NoError(t, err)
	repo := memory.NewNotificationRepo()
	svc := NewService(repo, registry,
		WithClock(clock.Now),
		WithStoreRetry(fastRetry()),
		WithSendTimeout(time.Second))
	return svc, repo
}
