package internal

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fuelwatch/fuelwatch/internal/models"
	"github.com/fuelwatch/fuelwatch/internal/stats"
)

// UpdateStatus classifies the outcome of one update run.
type UpdateStatus int

const (
	// StatusSuccess: every stage completed with fresh data.
	StatusSuccess UpdateStatus = iota
	// StatusPartial: the run degraded somewhere but last-known-good data is
	// available; Aggregate carries the most recent successful result.
	StatusPartial
	// StatusFailure: nothing to show, either because no data was ever
	// obtained or because the run was cancelled.
	StatusFailure
)

func (s UpdateStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartial:
		return "partial"
	default:
		return "failure"
	}
}

// UpdateOutcome is the result of one RunUpdate invocation.
type UpdateOutcome struct {
	Status    UpdateStatus
	Aggregate *models.AggregateResult
	Reason    string
}

// Coordinator orchestrates one instance's update pipeline: credential →
// discovery-or-reuse → price merge → aggregate. It is the single authority
// for what consumers currently see.
//
// Serialization policy: pipelines run under runMu, so two RunUpdate calls can
// never race on the StationSet. Asynchronous triggers (cron ticks, manual
// refresh) coalesce — a trigger landing while a run is in flight queues at
// most one follow-up run, with force flags OR-merged.
type Coordinator struct {
	Instance string

	key     models.StationKey
	creds   *CredentialManager
	repo    *StationRepository
	merger  *PriceMerger
	metrics *Metrics // nil disables instrumentation

	ctx    context.Context
	cancel context.CancelFunc

	runMu sync.Mutex // serializes the pipeline

	flagMu sync.Mutex
	active bool
	queued bool
	force  bool

	stateMu       sync.RWMutex
	lastGood      *models.AggregateResult
	lastSuccessAt time.Time
	stale         bool
}

func NewCoordinator(instance string, key models.StationKey, creds *CredentialManager, repo *StationRepository, merger *PriceMerger, metrics *Metrics) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		Instance: instance,
		key:      key,
		creds:    creds,
		repo:     repo,
		merger:   merger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetKey updates the configured search parameters. The repository compares
// keys on the next run, so a changed key forces discovery without any
// additional bookkeeping.
func (c *Coordinator) SetKey(key models.StationKey) {
	c.stateMu.Lock()
	c.key = key
	c.stateMu.Unlock()
}

// InitializeFromCache restores the persisted StationSet and publishes an
// aggregate from it, so consumers see last-known-good data before the first
// poll completes.
func (c *Coordinator) InitializeFromCache() error {
	if err := c.repo.Restore(); err != nil {
		return err
	}
	set := c.repo.Current()
	if set == nil {
		return nil
	}
	agg := stats.Compute(set)
	c.publish(&agg, false, true)
	return nil
}

// Close tears the instance down. An in-flight pipeline is cancelled and its
// partial results are never published.
func (c *Coordinator) Close() {
	c.cancel()
}

// Trigger requests an update without blocking. Triggers arriving while a run
// is in flight coalesce into a single follow-up run.
func (c *Coordinator) Trigger(forceStationRefresh bool) {
	c.flagMu.Lock()
	c.force = c.force || forceStationRefresh
	if c.active {
		c.queued = true
		c.flagMu.Unlock()
		return
	}
	c.active = true
	c.flagMu.Unlock()

	go c.drain()
}

func (c *Coordinator) drain() {
	for {
		c.flagMu.Lock()
		force := c.force
		c.force = false
		c.queued = false
		c.flagMu.Unlock()

		outcome := c.RunUpdate(c.ctx, force)
		log.Printf("update for instance %q finished: %s %s", c.Instance, outcome.Status, outcome.Reason)

		c.flagMu.Lock()
		if !c.queued || c.ctx.Err() != nil {
			c.active = false
			c.flagMu.Unlock()
			return
		}
		c.flagMu.Unlock()
	}
}

// RunUpdate executes one full pipeline and blocks until it finishes. Any
// stage's non-fatal failure degrades to last-known-good data and a partial
// outcome; only "no credential ever" or "no station set ever" are fatal.
func (c *Coordinator) RunUpdate(ctx context.Context, forceStationRefresh bool) UpdateOutcome {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	started := time.Now()
	outcome := c.runPipeline(ctx, forceStationRefresh)

	if c.metrics != nil {
		c.metrics.UpdatesTotal.WithLabelValues(c.Instance, outcome.Status.String()).Inc()
		c.metrics.UpdateDuration.WithLabelValues(c.Instance).Observe(time.Since(started).Seconds())
	}
	return outcome
}

func (c *Coordinator) runPipeline(ctx context.Context, forceStationRefresh bool) UpdateOutcome {
	var degraded []string

	cred, credStale, err := c.creds.EnsureToken(ctx)
	if err != nil {
		return c.failure("credential", err)
	}
	if credStale {
		degraded = append(degraded, "stale credential")
	}
	token := cred.AccessToken

	c.stateMu.RLock()
	key := c.key
	c.stateMu.RUnlock()

	set, setStale, err := c.repo.GetOrDiscover(ctx, token, key, forceStationRefresh)
	if err != nil && errors.Is(err, ErrAuth) {
		// A rejected bearer token gets exactly one re-exchange before the
		// error surfaces.
		if token, err = c.reauth(ctx); err == nil {
			set, setStale, err = c.repo.GetOrDiscover(ctx, token, key, forceStationRefresh)
		}
	}
	if err != nil {
		if prior := c.repo.Current(); prior != nil {
			set, setStale = prior, true
		} else {
			return c.failure("discovery", err)
		}
	}
	if setStale {
		degraded = append(degraded, "stale station set")
	}

	err = c.merger.MergePrices(ctx, token, set)
	if err != nil && errors.Is(err, ErrAuth) {
		if token, err = c.reauth(ctx); err == nil {
			err = c.merger.MergePrices(ctx, token, set)
		}
	}
	if err != nil {
		log.Printf("price merge failed, continuing with prior prices: %v", err)
		degraded = append(degraded, "price merge failed")
	}

	agg := stats.Compute(set)

	// A cancelled run must never publish partial results.
	if ctx.Err() != nil {
		return UpdateOutcome{Status: StatusFailure, Reason: "update cancelled"}
	}

	if !setStale {
		if err := c.repo.Persist(); err != nil {
			log.Printf("failed to persist station set: %v", err)
		}
	}

	success := len(degraded) == 0
	c.publish(&agg, success, !success)
	c.observe(&agg, success)

	if success {
		return UpdateOutcome{Status: StatusSuccess, Aggregate: &agg}
	}
	return UpdateOutcome{Status: StatusPartial, Aggregate: &agg, Reason: strings.Join(degraded, "; ")}
}

// failure reports a fatal stage. The most recent successful aggregate, when
// one exists, still rides along so consumers are never blanked out by a
// single bad cycle.
func (c *Coordinator) failure(stage string, err error) UpdateOutcome {
	log.Printf("update failed during %s: %v", stage, err)

	c.stateMu.Lock()
	c.stale = true
	last := c.lastGood
	c.stateMu.Unlock()

	reason := stage + ": " + err.Error()
	if last != nil {
		return UpdateOutcome{Status: StatusPartial, Aggregate: last, Reason: reason}
	}
	return UpdateOutcome{Status: StatusFailure, Reason: reason}
}

func (c *Coordinator) reauth(ctx context.Context) (string, error) {
	log.Printf("bearer token rejected, forcing re-exchange")
	c.creds.Invalidate()
	cred, _, err := c.creds.EnsureToken(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

func (c *Coordinator) publish(agg *models.AggregateResult, fullSuccess, stale bool) {
	c.stateMu.Lock()
	c.lastGood = agg
	c.stale = stale
	if fullSuccess {
		c.lastSuccessAt = time.Now()
	}
	c.stateMu.Unlock()
}

func (c *Coordinator) observe(agg *models.AggregateResult, success bool) {
	if c.metrics == nil {
		return
	}
	if success {
		c.metrics.LastSuccessTimestamp.WithLabelValues(c.Instance).SetToCurrentTime()
	}
	c.metrics.StationCount.WithLabelValues(c.Instance).Set(float64(agg.StationCount))
	for fuelType, entry := range agg.Cheapest {
		c.metrics.CheapestPence.WithLabelValues(c.Instance, string(fuelType)).Set(entry.PencePerLitre)
	}
}

// LastResult returns the most recent successful aggregate, whether the data
// is stale, and the time of the last fully successful run.
func (c *Coordinator) LastResult() (*models.AggregateResult, bool, time.Time) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastGood, c.stale, c.lastSuccessAt
}

// Snapshot exposes the repository's current StationSet for listings.
func (c *Coordinator) Snapshot() *models.StationSet {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.repo.Snapshot()
}

// Registry tracks the coordinators for every configured instance.
type Registry struct {
	mu           sync.RWMutex
	coordinators map[string]*Coordinator
}

func NewRegistry() *Registry {
	return &Registry{coordinators: make(map[string]*Coordinator)}
}

func (r *Registry) Add(c *Coordinator) {
	r.mu.Lock()
	r.coordinators[c.Instance] = c
	r.mu.Unlock()
}

// Resolve returns the coordinator for the named instance. An empty name
// resolves to the sole registered instance, when there is exactly one.
func (r *Registry) Resolve(instance string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if instance == "" && len(r.coordinators) == 1 {
		for _, c := range r.coordinators {
			return c, true
		}
	}
	c, ok := r.coordinators[instance]
	return c, ok
}

// Close tears down every registered coordinator.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.coordinators {
		c.Close()
	}
}
