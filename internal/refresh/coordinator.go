// Package refresh owns the cached schedule of each location and decides when
// the upstream page is fetched again.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tartampluch/go-uster-waste/internal/config"
	"github.com/tartampluch/go-uster-waste/internal/engine"
	"github.com/tartampluch/go-uster-waste/internal/store"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by Refresh and ForceRefresh after Close.
var ErrClosed = errors.New(config.ErrCoordinatorClose)

// Runner executes one fetch cycle. *engine.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, cfg engine.FetchConfig) (engine.Summary, error)
}

// StateStore persists snapshots between process restarts. *store.Store satisfies it.
type StateStore interface {
	Load(ctx context.Context, locationID string) (store.Record, bool, error)
	Save(ctx context.Context, locationID string, rec store.Record) error
}

// Snapshot is an immutable view of a coordinator's cache.
// Summary is nil until the first cycle completes or a state is restored.
type Snapshot struct {
	LocationID  string
	Name        string
	Summary     *engine.Summary
	LastAttempt time.Time
	LastUpdated time.Time
	LastError   string
}

// HasSummary reports whether a summary (data or error-shaped) is cached.
func (s Snapshot) HasSummary() bool {
	return s.Summary != nil
}

// Options configures a Coordinator.
type Options struct {
	Config   engine.FetchConfig
	Runner   Runner
	Clock    engine.Clock
	Interval time.Duration

	// Store is optional; without it the cache lives in memory only.
	Store StateStore

	// FormatError turns a pipeline error into the user-facing LastError text.
	// Defaults to err.Error().
	FormatError func(error) string
}

// Coordinator caches the schedule of one location and serializes refreshes.
//
// A cached snapshot younger than the interval is served as is. Older or
// missing caches trigger the pipeline; concurrent callers share one in-flight
// run. The run uses the coordinator's own context, so a caller giving up does
// not abort it for the others.
type Coordinator struct {
	cfg         engine.FetchConfig
	runner      Runner
	clock       engine.Clock
	interval    time.Duration
	store       StateStore
	formatError func(error) string

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu        sync.RWMutex
	state     Snapshot
	observers []func(Snapshot)
}

// NewCoordinator builds a coordinator. Zero Interval selects
// config.DefaultRefreshInterval and a nil Clock selects engine.RealClock.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultRefreshInterval
	}
	if opts.Clock == nil {
		opts.Clock = engine.RealClock{}
	}
	if opts.FormatError == nil {
		opts.FormatError = func(err error) string { return err.Error() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:         opts.Config,
		runner:      opts.Runner,
		clock:       opts.Clock,
		interval:    opts.Interval,
		store:       opts.Store,
		formatError: opts.FormatError,
		ctx:         ctx,
		cancel:      cancel,
		state: Snapshot{
			LocationID: opts.Config.LocationID,
			Name:       opts.Config.DisplayName,
		},
	}
}

// LocationID returns the identifier of the coordinated location.
func (c *Coordinator) LocationID() string {
	return c.cfg.LocationID
}

// Name returns the display name of the coordinated location.
func (c *Coordinator) Name() string {
	return c.cfg.DisplayName
}

// Interval returns the minimum age before the cache is considered stale.
func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// Current returns the cached snapshot without any network activity.
func (c *Coordinator) Current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe registers fn to be called after every completed cycle.
// Callbacks run on the refreshing goroutine and must not block.
func (c *Coordinator) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Restore loads the persisted state, if any. A missing store is a no-op.
func (c *Coordinator) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	rec, ok, err := c.store.Load(ctx, c.cfg.LocationID)
	if err != nil || !ok {
		return err
	}

	c.mu.Lock()
	c.state.Summary = rec.Summary
	c.state.LastAttempt = rec.LastAttempt
	c.state.LastUpdated = rec.LastUpdated
	c.state.LastError = rec.LastError
	snap := c.state
	c.mu.Unlock()

	slog.Info(config.MsgStateRestored,
		config.LogKeyComponent, config.CompCoordinator,
		config.LogKeyLocation, c.cfg.LocationID,
		config.LogKeyAge, c.clock.Now().Sub(snap.LastAttempt).String(),
	)
	c.notify(snap)
	return nil
}

// Refresh returns the cached snapshot when it is younger than the interval,
// otherwise runs (or joins) a fetch cycle.
func (c *Coordinator) Refresh(ctx context.Context) (Snapshot, error) {
	return c.refresh(ctx, false)
}

// ForceRefresh runs (or joins) a fetch cycle regardless of the cache age.
func (c *Coordinator) ForceRefresh(ctx context.Context) (Snapshot, error) {
	return c.refresh(ctx, true)
}

// Close aborts any in-flight fetch and discards its result.
// Further refreshes fail with ErrClosed.
func (c *Coordinator) Close() {
	c.cancel()
}

func (c *Coordinator) refresh(ctx context.Context, forced bool) (Snapshot, error) {
	if c.ctx.Err() != nil {
		return c.Current(), ErrClosed
	}

	if !forced {
		if snap := c.Current(); c.isFresh(snap) {
			slog.Debug(config.MsgRefreshCached,
				config.LogKeyComponent, config.CompCoordinator,
				config.LogKeyLocation, c.cfg.LocationID,
				config.LogKeyAge, c.clock.Now().Sub(snap.LastAttempt).String(),
			)
			return snap, nil
		}
	}

	ch := c.group.DoChan(c.cfg.LocationID, func() (any, error) {
		return c.run(forced), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			slog.Debug(config.MsgRefreshJoined,
				config.LogKeyComponent, config.CompCoordinator,
				config.LogKeyLocation, c.cfg.LocationID,
			)
		}
		snap := res.Val.(Snapshot)
		if c.ctx.Err() != nil {
			return snap, ErrClosed
		}
		return snap, nil
	case <-ctx.Done():
		return c.Current(), ctx.Err()
	}
}

func (c *Coordinator) isFresh(s Snapshot) bool {
	return s.HasSummary() && c.clock.Now().Sub(s.LastAttempt) < c.interval
}

// run executes the pipeline once and installs the outcome.
func (c *Coordinator) run(forced bool) Snapshot {
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompCoordinator),
		slog.String(config.LogKeyLocation, c.cfg.LocationID),
		slog.String(config.LogKeyRunID, uuid.NewString()),
	)
	log.Info(config.MsgRefreshStarted, slog.Bool(config.LogKeyForced, forced))
	start := time.Now()

	// Attempts are dated at their start; cache age counts from there.
	now := c.clock.Now()

	summary, err := c.safeRun()

	if c.ctx.Err() != nil {
		log.Info(config.MsgRefreshDiscarded)
		return c.Current()
	}

	c.mu.Lock()
	st := c.state
	st.LastAttempt = now
	if err != nil {
		st.LastError = c.formatError(err)
		// A previous successful summary survives the failure.
		if st.Summary == nil || !st.Summary.HasData() {
			es := engine.ErrorSummary(st.LastError, now)
			st.Summary = &es
		}
	} else {
		st.Summary = &summary
		st.LastUpdated = now
		st.LastError = ""
	}
	c.state = st
	c.mu.Unlock()

	if err != nil {
		log.Error(config.MsgRefreshFailed,
			slog.String(config.LogKeyErrorKind, engine.ErrorKind(err)),
			slog.Any(config.LogKeyError, err),
		)
	} else {
		log.Info(config.MsgRefreshDone,
			slog.Int(config.LogKeyCount, len(summary.Entries)),
			slog.Int64(config.LogKeyDuration, time.Since(start).Milliseconds()),
		)
	}

	c.persist(log, st)
	c.notify(st)
	return st
}

// safeRun converts a panicking runner into an error.
func (c *Coordinator) safeRun() (summary engine.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", config.ErrRunnerPanic, r)
		}
	}()
	if c.runner == nil {
		return engine.Summary{}, errors.New(config.ErrFetcherMissing)
	}
	return c.runner.Run(c.ctx, c.cfg)
}

func (c *Coordinator) persist(log *slog.Logger, st Snapshot) {
	if c.store == nil {
		return
	}
	rec := store.Record{
		Summary:     st.Summary,
		LastAttempt: st.LastAttempt,
		LastUpdated: st.LastUpdated,
		LastError:   st.LastError,
	}
	if err := c.store.Save(c.ctx, c.cfg.LocationID, rec); err != nil {
		log.Warn(config.MsgStoreSaveFailed, slog.Any(config.LogKeyError, err))
	}
}

func (c *Coordinator) notify(st Snapshot) {
	c.mu.RLock()
	observers := append([]func(Snapshot){}, c.observers...)
	c.mu.RUnlock()

	for _, fn := range observers {
		fn(st)
	}
}
