// Package client wires the session, query, catalog, wishlist and review
// components together and owns the triggers between them.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smartselect/shortlist/internal/api"
	"github.com/smartselect/shortlist/internal/catalog"
	"github.com/smartselect/shortlist/internal/events"
	"github.com/smartselect/shortlist/internal/model"
	"github.com/smartselect/shortlist/internal/query"
	"github.com/smartselect/shortlist/internal/reviews"
	"github.com/smartselect/shortlist/internal/session"
	"github.com/smartselect/shortlist/internal/storage"
	"github.com/smartselect/shortlist/internal/wishlist"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

type Client struct {
	Session  *session.Store
	Query    *query.Controller
	Drafts   *query.Drafts
	Catalog  *catalog.Cache
	Wishlist *wishlist.Synchronizer
	Reviews  *reviews.Fetcher
	Bus      *events.Bus

	store storage.Store
	api   *api.Client

	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	closed    bool
	restoring atomic.Bool
	wg        sync.WaitGroup
}

// Status is a read-only summary for presentation.
type Status struct {
	Session       model.Session    `json:"session"`
	Query         model.QueryState `json:"query"`
	Catalog       catalog.Status   `json:"catalog"`
	CatalogItems  int              `json:"catalog_items"`
	WishlistItems int              `json:"wishlist_items"`
}

// Build opens storage and assembles the components.
func Build(ctx context.Context, cfg Config) (*Client, error) {
	st, err := storage.Open(ctx, cfg.Storage, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return New(st, cfg), nil
}

// New assembles the components over an already opened store.
func New(st storage.Store, cfg Config) *Client {
	c := &Client{store: st, Bus: events.NewBus()}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	var sess *session.Store
	c.api = api.New(cfg.API, api.TokenFunc(func() string { return sess.Token() }))
	sess = session.New(st, c.api)

	c.Session = sess
	c.Query = query.NewController(c.api, st)
	c.Drafts = query.NewDrafts(st)
	c.Catalog = catalog.New(c.api)
	c.Wishlist = wishlist.New(c.api, sess)
	c.Reviews = reviews.New(c.api, cfg.Reviews)

	c.Session.OnChange(c.onSessionChange)
	c.Query.OnTransition(c.onQueryTransition)
	c.Catalog.OnUpdate(c.onCatalogUpdate)
	c.Wishlist.OnChange(c.onWishlistChange)
	return c
}

// Start restores persisted state. The catalog is refreshed when the last
// query had completed, and the wishlist fetched when a session exists.
// Failures here degrade to empty state and are only logged.
func (c *Client) Start(ctx context.Context) error {
	c.restoring.Store(true)
	sess := c.Session.Restore(ctx)
	c.restoring.Store(false)
	c.Drafts.Load(ctx)
	state := c.Query.Restore(ctx)

	logx.Debug().Bool("authenticated", sess.Authenticated()).Str("phase", string(state.Phase)).Msg("client state restored")

	if state.Phase == model.PhaseReady {
		if err := c.Catalog.Refresh(ctx); err != nil {
			logx.Warn().Err(err).Msg("initial catalog refresh failed")
		}
	}
	if sess.Authenticated() {
		if _, err := c.Wishlist.Fetch(ctx); err != nil {
			logx.Warn().Err(err).Msg("initial wishlist fetch failed")
		}
	}
	return nil
}

// Wait blocks until background refreshes triggered so far have finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Ask submits the questionnaire draft.
func (c *Client) Ask(ctx context.Context) (*model.Recommendation, error) {
	return c.Query.Submit(ctx, c.Drafts.Compose())
}

// Items returns the catalog decorated with wishlist membership.
func (c *Client) Items() []model.CatalogItem {
	return c.Catalog.Overlay(c.Wishlist.Contains)
}

func (c *Client) Status() Status {
	snap := c.Catalog.Snapshot()
	return Status{
		Session:       c.Session.Current(),
		Query:         c.Query.State(),
		Catalog:       snap.Status,
		CatalogItems:  len(snap.Items),
		WishlistItems: len(c.Wishlist.Entries()),
	}
}

// Close tears the client down. Responses that land afterwards are never
// applied; background work is cancelled and awaited before storage closes.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Query.Close()
	c.Catalog.Close()
	c.Wishlist.Close()
	c.Session.Close()
	c.cancel()
	c.wg.Wait()

	return errors.Join(c.Bus.Close(), c.store.Close())
}

func (c *Client) onSessionChange(prev, next model.Session) {
	c.publish(events.TopicSessionChanged, events.SessionChanged{
		Authenticated: next.Authenticated(),
		UserID:        next.UserID,
		Username:      next.Username,
	})
	if c.restoring.Load() {
		return
	}

	if !next.Authenticated() {
		logx.Debug().Str("user_id", prev.UserID).Msg("logged out, dropping account state")
		c.Wishlist.Reset()
		if err := c.Query.Reset(c.ctx); err != nil {
			logx.Warn().Err(err).Msg("failed to reset query on logout")
		}
		if err := c.Drafts.Clear(c.ctx); err != nil {
			logx.Warn().Err(err).Msg("failed to clear draft on logout")
		}
	} else {
		c.background("wishlist fetch", func(ctx context.Context) error {
			_, err := c.Wishlist.Fetch(ctx)
			return err
		})
	}
	c.background("catalog refresh", c.Catalog.Refresh)
}

func (c *Client) onQueryTransition(prev, next model.QueryState) {
	c.publish(events.TopicQueryTransition, events.QueryTransition{
		From:        prev.Phase,
		To:          next.Phase,
		ResultLabel: next.ResultLabel,
		Error:       next.Error,
	})
	if next.Phase == model.PhaseReady {
		c.background("catalog refresh", c.Catalog.Refresh)
	}
}

func (c *Client) onCatalogUpdate(s catalog.Snapshot) {
	c.publish(events.TopicCatalogUpdated, events.CatalogUpdated{
		Status:     string(s.Status),
		Count:      len(s.Items),
		Generation: s.Generation,
		Error:      s.Error,
	})
}

func (c *Client) onWishlistChange(entries []model.WishlistEntry) {
	models := make([]string, 0, len(entries))
	for _, e := range entries {
		models = append(models, e.Model)
	}
	c.publish(events.TopicWishlistChanged, events.WishlistChanged{Models: models})
}

func (c *Client) background(name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		err := fn(c.ctx)
		switch {
		case err == nil:
		case errors.Is(err, catalog.ErrStale), errors.Is(err, wishlist.ErrStale),
			errors.Is(err, wishlist.ErrClosed), errors.Is(err, context.Canceled):
			logx.Debug().Err(err).Str("task", name).Msg("background task superseded")
		default:
			logx.Warn().Err(err).Str("task", name).Msg("background task failed")
		}
	}()
}

func (c *Client) publish(topic string, payload any) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if err := c.Bus.Publish(topic, payload); err != nil {
		logx.Warn().Err(err).Str("topic", topic).Msg("failed to publish event")
	}
}
