package billing

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestRegistryOpenGetCancel(t *testing.T) {
	ctx := context.Background()
	catalog := newMemoryCatalog(product("p1", "Tap", "90", 10))
	engine := NewEngine(catalog, logrus.New(), nil)
	registry := NewRegistry(catalog, engine, nil, logrus.New())

	cart := registry.Open(ctx)
	got, err := registry.Get(cart.ID())
	require.NoError(t, err)
	assert.Same(t, cart, got)
	assert.Equal(t, 1, registry.Len())

	_, err = cart.AddCatalogLine(ctx, "p1", 6)
	require.NoError(t, err)

	warnings, err := registry.Cancel(ctx, cart.ID())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 10, catalog.quantity("p1"))

	assert.Equal(t, 0, registry.Len())

	_, err = registry.Get(cart.ID())
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = registry.Cancel(ctx, cart.ID())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRegistryIdleFiltersByLastActivity(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC)}
	catalog := newMemoryCatalog()
	registry := NewRegistry(catalog, NewEngine(catalog, logrus.New(), nil), nil, logrus.New())

	old := registry.Open(ctx)
	old.now = clock.Now
	old.SetDue(ctx, "")

	clock.Advance(time.Hour)
	fresh := registry.Open(ctx)
	fresh.now = clock.Now
	fresh.SetDue(ctx, "")

	idle := registry.Idle(clock.Now().Add(-30 * time.Minute))
	require.Len(t, idle, 1)
	assert.Same(t, old, idle[0])
	assert.Len(t, registry.Idle(clock.Now().Add(time.Minute)), 2)
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryIdleDoesNotBlockOpen(t *testing.T) {
	ctx := context.Background()
	catalog := newMemoryCatalog()
	registry := NewRegistry(catalog, NewEngine(catalog, logrus.New(), nil), nil, logrus.New())

	busy := registry.Open(ctx)
	busy.mu.Lock()

	scanned := make(chan []*Cart)
	go func() {
		scanned <- registry.Idle(time.Now().Add(time.Hour))
	}()
	time.Sleep(50 * time.Millisecond)

	opened := make(chan *Cart)
	go func() {
		opened <- registry.Open(ctx)
	}()

	select {
	case <-opened:
	case <-time.After(time.Second):
		busy.mu.Unlock()
		t.Fatal("Open blocked while Idle waited on a busy cart")
	}

	busy.mu.Unlock()
	assert.NotEmpty(t, <-scanned)
	assert.Equal(t, 2, registry.Len())
}

func TestReaperCancelsIdleCarts(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC)}
	catalog := newMemoryCatalog(product("p1", "Tap", "90", 10))
	engine := NewEngine(catalog, logrus.New(), nil)
	registry := NewRegistry(catalog, engine, nil, logrus.New())

	idle := registry.Open(ctx)
	idle.now = clock.Now
	_, err := idle.AddCatalogLine(ctx, "p1", 4)
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)

	active := registry.Open(ctx)
	active.now = clock.Now
	_, err = active.AddCatalogLine(ctx, "p1", 2)
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)

	reaper := NewReaper(registry, nil, engine, 2*time.Hour, nil, logrus.New())
	reaper.now = clock.Now

	reaped, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)
	assert.Equal(t, 8, catalog.quantity("p1"))
	assert.False(t, registry.Has(idle.ID()))
	assert.True(t, registry.Has(active.ID()))
	assert.Equal(t, 1, registry.Len())
}

func TestReaperReleasesOrphanedReservations(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC)}
	catalog := newMemoryCatalog(product("p1", "Tap", "90", 10), product("p2", "Hose", "30", 5))
	engine := NewEngine(catalog, logrus.New(), nil)
	journal := newMemoryJournal()
	journal.now = clock.Now

	crashed := NewCart("crashed", catalog, engine, journal, nil)
	_, err := crashed.AddCatalogLine(ctx, "p1", 4)
	require.NoError(t, err)
	_, err = crashed.AddCatalogLine(ctx, "p2", 5)
	require.NoError(t, err)
	catalog.remove("p2")

	clock.Advance(3 * time.Hour)

	registry := NewRegistry(catalog, engine, journal, logrus.New())
	reaper := NewReaper(registry, journal, engine, 2*time.Hour, nil, logrus.New())
	reaper.now = clock.Now

	reaped, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)
	assert.Equal(t, 10, catalog.quantity("p1"))

	stale, err := journal.Stale(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestReaperSkipsCartsStillInMemory(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC)}
	catalog := newMemoryCatalog(product("p1", "Tap", "90", 10))
	engine := NewEngine(catalog, logrus.New(), nil)
	journal := newMemoryJournal()
	journal.now = clock.Now
	registry := NewRegistry(catalog, engine, journal, logrus.New())

	cart := registry.Open(ctx)
	_, err := cart.AddCatalogLine(ctx, "p1", 3)
	require.NoError(t, err)

	clock.Advance(3 * time.Hour)

	reaper := NewReaper(registry, journal, engine, 2*time.Hour, nil, logrus.New())
	reaper.now = clock.Now

	reaped, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)
	assert.Equal(t, 7, catalog.quantity("p1"))
}

func TestReaperDisabled(t *testing.T) {
	registry := NewRegistry(newMemoryCatalog(), nil, nil, logrus.New())
	reaper := NewReaper(registry, nil, nil, 0, nil, logrus.New())

	done := make(chan struct{})
	go func() {
		reaper.Run(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled reaper should return immediately")
	}
}
