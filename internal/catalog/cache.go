// Package catalog keeps the candidate laptop list for the current query.
// Refreshes are tagged with a generation; only the newest one may land.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

var ErrStale = errors.New("catalog: response discarded")

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	// StatusEmpty is an explicit empty list after a failed fetch.
	StatusEmpty Status = "empty"
)

// Lister is the slice of the backend API the cache needs.
type Lister interface {
	Laptops(ctx context.Context) ([]model.Laptop, error)
}

// Snapshot is a read-only view of the cache.
type Snapshot struct {
	Status     Status         `json:"status"`
	Items      []model.Laptop `json:"items"`
	Error      string         `json:"error,omitempty"`
	Generation uint64         `json:"generation"`
}

type UpdateFunc func(Snapshot)

type Cache struct {
	mu         sync.RWMutex
	items      []model.Laptop
	status     Status
	err        error
	generation uint64
	closed     bool
	listeners  []UpdateFunc

	api Lister
}

func New(api Lister) *Cache {
	return &Cache{api: api, status: StatusUnknown}
}

func (c *Cache) OnUpdate(fn UpdateFunc) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Refresh fetches the list with whatever auth the API client currently
// holds. A response overtaken by a newer Refresh, or arriving after Close,
// is dropped and ErrStale returned.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrStale
	}
	c.generation++
	gen := c.generation
	c.status = StatusLoading
	c.mu.Unlock()

	logx.Debug().Uint64("generation", gen).Msg("catalog refresh started")
	items, err := c.api.Laptops(ctx)

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		logx.Debug().Uint64("generation", gen).Msg("discarding stale catalog response")
		return ErrStale
	}
	if err != nil {
		c.items = []model.Laptop{}
		c.status = StatusEmpty
		c.err = err
	} else {
		if items == nil {
			items = []model.Laptop{}
		}
		c.items = items
		c.status = StatusReady
		c.err = nil
	}
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	if err != nil {
		logx.Warn().Err(err).Uint64("generation", gen).Msg("catalog refresh failed, showing empty list")
	} else {
		logx.Debug().Uint64("generation", gen).Int("items", len(items)).Msg("catalog refreshed")
	}
	for _, fn := range listeners {
		fn(snap)
	}
	return err
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Cache) Items() []model.Laptop {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Lookup finds a laptop by id, falling back to its model name.
func (c *Cache) Lookup(id string) (model.Laptop, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.items {
		if l.ID == id {
			return l, true
		}
	}
	for _, l := range c.items {
		if l.Model == id {
			return l, true
		}
	}
	return model.Laptop{}, false
}

// Compare returns the requested laptops in argument order.
func (c *Cache) Compare(ids ...string) ([]model.Laptop, error) {
	if len(ids) < 2 {
		return nil, errx.Validation("select at least two laptops to compare")
	}
	out := make([]model.Laptop, 0, len(ids))
	for _, id := range ids {
		l, ok := c.Lookup(id)
		if !ok {
			return nil, errx.NotFound(fmt.Sprintf("laptop %q is not in the current results", id))
		}
		out = append(out, l)
	}
	return out, nil
}

// Overlay decorates the current items with wishlist membership.
func (c *Cache) Overlay(isMember func(model string) bool) []model.CatalogItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.CatalogItem, 0, len(c.items))
	for _, l := range c.items {
		out = append(out, model.CatalogItem{Laptop: l, Wishlisted: isMember != nil && isMember(l.Model)})
	}
	return out
}

func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Cache) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:     c.status,
		Items:      slices.Clone(c.items),
		Generation: c.generation,
	}
	if c.err != nil {
		s.Error = errx.MessageOf(c.err)
	}
	return s
}
