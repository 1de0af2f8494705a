package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelwatch/fuelwatch/internal/models"
)

func newTestCoordinator(fake *fakeFuelFinder) *Coordinator {
	creds := NewCredentialManager(fake, "client-id", "client-secret")
	repo := NewStationRepository(nil, "test", fake)
	merger := NewPriceMerger(fake)
	return NewCoordinator("test", testKey, creds, repo, merger, nil)
}

func seedUpstream(fake *fakeFuelFinder) {
	updated := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	fake.stations = []models.PetrolFillingStation{
		pfs("station-a", "Alpha", 51.51, -0.11),
		pfs("station-b", "Bravo", 51.49, -0.09),
		pfs("station-c", "Charlie", 51.5, -0.1),
	}
	fake.prices = []models.ForecourtPrices{
		priceRecord("station-a",
			models.FuelPrice{FuelType: "E10", Price: 142.9, PriceLastUpdated: updated},
			models.FuelPrice{FuelType: "B7", Price: 149.9, PriceLastUpdated: updated},
		),
		priceRecord("station-c",
			models.FuelPrice{FuelType: "E10", Price: 137.5, PriceLastUpdated: updated},
			models.FuelPrice{FuelType: "B7", Price: 145.0, PriceLastUpdated: updated},
		),
	}
}

func TestRunUpdateSuccess(t *testing.T) {
	fake := newFakeFuelFinder()
	seedUpstream(fake)
	c := newTestCoordinator(fake)
	defer c.Close()

	outcome := c.RunUpdate(context.Background(), false)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.NotNil(t, outcome.Aggregate)

	assert.Equal(t, 3, outcome.Aggregate.StationCount)
	assert.Equal(t, 2, outcome.Aggregate.StationsWithPriceCount)
	assert.Equal(t, models.CheapestEntry{PencePerLitre: 137.5, StationID: "station-c"},
		outcome.Aggregate.Cheapest[models.FuelTypeE10])
	assert.Equal(t, models.CheapestEntry{PencePerLitre: 145.0, StationID: "station-c"},
		outcome.Aggregate.Cheapest[models.FuelTypeB7])

	agg, stale, lastSuccess := c.LastResult()
	assert.Same(t, outcome.Aggregate, agg)
	assert.False(t, stale)
	assert.False(t, lastSuccess.IsZero())
}

func TestRunUpdateReusesStationsAcrossRuns(t *testing.T) {
	fake := newFakeFuelFinder()
	seedUpstream(fake)
	c := newTestCoordinator(fake)
	defer c.Close()

	require.Equal(t, StatusSuccess, c.RunUpdate(context.Background(), false).Status)
	require.Equal(t, StatusSuccess, c.RunUpdate(context.Background(), false).Status)
	assert.Equal(t, 1, fake.stationCalls, "unchanged key reuses the discovered set")
	assert.Equal(t, 2, fake.priceCalls)

	require.Equal(t, StatusSuccess, c.RunUpdate(context.Background(), true).Status)
	assert.Equal(t, 2, fake.stationCalls, "forced refresh re-discovers")
}

func TestRunUpdatePriceFailureDegradesToPartial(t *testing.T) {
	fake := newFakeFuelFinder()
	seedUpstream(fake)
	c := newTestCoordinator(fake)
	defer c.Close()

	require.Equal(t, StatusSuccess, c.RunUpdate(context.Background(), false).Status)

	fake.pricesErr = fetchFailure()
	outcome := c.RunUpdate(context.Background(), false)

	require.Equal(t, StatusPartial, outcome.Status)
	require.NotNil(t, outcome.Aggregate)
	assert.Contains(t, outcome.Reason, "price merge failed")

	// The previously merged prices still back the aggregate.
	assert.Equal(t, 137.5, outcome.Aggregate.Cheapest[models.FuelTypeE10].PencePerLitre)

	_, stale, _ := c.LastResult()
	assert.True(t, stale)
}

func TestRunUpdateFailsWithNoDataAtAll(t *testing.T) {
	fake := newFakeFuelFinder()
	fake.stationsErr = fetchFailure()
	c := newTestCoordinator(fake)
	defer c.Close()

	outcome := c.RunUpdate(context.Background(), false)
	assert.Equal(t, StatusFailure, outcome.Status)
	assert.Nil(t, outcome.Aggregate)

	agg, _, _ := c.LastResult()
	assert.Nil(t, agg)
}

func TestRunUpdateCredentialFailureKeepsLastGood(t *testing.T) {
	fake := newFakeFuelFinder()
	seedUpstream(fake)
	c := newTestCoordinator(fake)
	defer c.Close()

	first := c.RunUpdate(context.Background(), false)
	require.Equal(t, StatusSuccess, first.Status)

	// Permanent rejection: the run fails, but the last aggregate rides
	// along so consumers are not blanked out.
	fake.tokenErr = authFailure()
	fake.refreshErr = authFailure()
	c.creds.Invalidate()

	outcome := c.RunUpdate(context.Background(), false)
	require.Equal(t, StatusPartial, outcome.Status)
	assert.Same(t, first.Aggregate, outcome.Aggregate)
	assert.Contains(t, outcome.Reason, "credential")
}

func TestRunUpdateRetriesOnceAfterTokenRejection(t *testing.T) {
	fake := newFakeFuelFinder()
	seedUpstream(fake)
	fake.stationsErr = authFailure()
	c := newTestCoordinator(fake)
	defer c.Close()

	// The fake keeps rejecting, so the single re-exchange does not help:
	// exactly one extra token call, then failure.
	outcome := c.RunUpdate(context.Background(), false)
	assert.Equal(t, StatusFailure, outcome.Status)
	assert.Equal(t, 2, fake.tokenCalls)
	assert.Equal(t, 2, fake.stationCalls)
}

func TestRunUpdateCancelledNeverPublishes(t *testing.T) {
	fake := newFakeFuelFinder()
	seedUpstream(fake)
	c := newTestCoordinator(fake)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := c.RunUpdate(ctx, false)
	assert.Equal(t, StatusFailure, outcome.Status)

	agg, _, _ := c.LastResult()
	assert.Nil(t, agg)
}

func TestInitializeFromCachePublishesStaleAggregate(t *testing.T) {
	dbPath := setupTestDB(t)
	db, err := Connect(dbPath)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	fake := newFakeFuelFinder()
	seedUpstream(fake)

	repo := NewStationRepository(db, "test", fake)
	creds := NewCredentialManager(fake, "client-id", "client-secret")
	first := NewCoordinator("test", testKey, creds, repo, NewPriceMerger(fake), nil)
	require.Equal(t, StatusSuccess, first.RunUpdate(context.Background(), false).Status)
	first.Close()

	// A fresh process serves the persisted snapshot before any polling.
	restoredRepo := NewStationRepository(db, "test", fake)
	second := NewCoordinator("test", testKey, creds, restoredRepo, NewPriceMerger(fake), nil)
	defer second.Close()
	require.NoError(t, second.InitializeFromCache())

	agg, stale, lastSuccess := second.LastResult()
	require.NotNil(t, agg)
	assert.True(t, stale)
	assert.True(t, lastSuccess.IsZero())
	assert.Equal(t, 137.5, agg.Cheapest[models.FuelTypeE10].PencePerLitre)
	assert.Equal(t, 3, agg.StationCount)
}

func TestTriggerCoalesces(t *testing.T) {
	fake := newFakeFuelFinder()
	seedUpstream(fake)
	c := newTestCoordinator(fake)
	defer c.Close()

	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		go func() {
			defer wg.Done()
			c.Trigger(false)
		}()
	}
	wg.Wait()

	// Wait for the drain loop to go idle.
	deadline := time.After(5 * time.Second)
	for {
		c.flagMu.Lock()
		idle := !c.active
		c.flagMu.Unlock()
		if idle {
			break
		}
		select {
		case <-deadline:
			t.Fatal("drain loop never went idle")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Concurrent triggers coalesce: at least one run happened, and far
	// fewer than one per trigger.
	c.runMu.Lock()
	calls := fake.priceCalls
	c.runMu.Unlock()
	assert.GreaterOrEqual(t, calls, 1)
	assert.LessOrEqual(t, calls, 5)

	agg, _, _ := c.LastResult()
	assert.NotNil(t, agg)
}

func TestRegistryResolve(t *testing.T) {
	fake := newFakeFuelFinder()
	registry := NewRegistry()

	home := newTestCoordinator(fake)
	defer home.Close()
	registry.Add(home)

	c, ok := registry.Resolve("test")
	require.True(t, ok)
	assert.Same(t, home, c)

	// A single registered instance also answers the empty name.
	c, ok = registry.Resolve("")
	require.True(t, ok)
	assert.Same(t, home, c)

	_, ok = registry.Resolve("nope")
	assert.False(t, ok)

	work := NewCoordinator("work", testKey, NewCredentialManager(fake, "id", "secret"),
		NewStationRepository(nil, "work", fake), NewPriceMerger(fake), nil)
	defer work.Close()
	registry.Add(work)

	// With two instances the empty name is ambiguous.
	_, ok = registry.Resolve("")
	assert.False(t, ok)
}
