package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tartampluch/go-uster-waste/internal/config"
	"golang.org/x/sync/errgroup"
)

// Registry is the explicit set of coordinators built by main, keyed by location id.
type Registry struct {
	mu     sync.RWMutex
	coords map[string]*Coordinator
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{coords: make(map[string]*Coordinator)}
}

// Add registers c. Location ids must be unique.
func (r *Registry) Add(c *Coordinator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.LocationID()
	if _, exists := r.coords[id]; exists {
		return fmt.Errorf("%s: %q", config.ErrDuplicateLoc, id)
	}
	r.coords[id] = c
	r.order = append(r.order, id)

	slog.Debug(config.MsgLocationAdded,
		config.LogKeyComponent, config.CompCoordinator,
		config.LogKeyLocation, id,
		config.LogKeyName, c.Name(),
		config.LogKeyInterval, c.Interval().String(),
	)
	return nil
}

// Get returns the coordinator for id.
func (r *Registry) Get(id string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coords[id]
	return c, ok
}

// List returns the coordinators in registration order.
func (r *Registry) List() []*Coordinator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Coordinator, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.coords[id])
	}
	return out
}

// RefreshAll refreshes every location concurrently and returns the snapshots
// in registration order. Failed fetches are reflected in the snapshots; the
// error is only non-nil when ctx ends or a coordinator is closed.
func (r *Registry) RefreshAll(ctx context.Context, forced bool) ([]Snapshot, error) {
	coords := r.List()
	snaps := make([]Snapshot, len(coords))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range coords {
		g.Go(func() error {
			var err error
			if forced {
				snaps[i], err = c.ForceRefresh(gctx)
			} else {
				snaps[i], err = c.Refresh(gctx)
			}
			return err
		})
	}
	err := g.Wait()
	return snaps, err
}

// Close closes every coordinator.
func (r *Registry) Close() {
	for _, c := range r.List() {
		c.Close()
	}
}
