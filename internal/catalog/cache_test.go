package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
)

type result struct {
	items []model.Laptop
	err   error
}

// gatedLister parks every call until the test sends its result.
type gatedLister struct {
	calls chan chan result
}

func newGatedLister() *gatedLister {
	return &gatedLister{calls: make(chan chan result, 4)}
}

func (g *gatedLister) Laptops(ctx context.Context) ([]model.Laptop, error) {
	ch := make(chan result)
	g.calls <- ch
	r := <-ch
	return r.items, r.err
}

type staticLister struct {
	items []model.Laptop
	err   error
}

func (s staticLister) Laptops(context.Context) ([]model.Laptop, error) {
	return s.items, s.err
}

var (
	tuf     = model.Laptop{ID: "a", Model: "TUF A15"}
	x1      = model.Laptop{ID: "b", Model: "X1 Carbon"}
	zenbook = model.Laptop{ID: "c", Model: "Zenbook 14"}
)

func TestCache_OlderGenerationIsDiscarded(t *testing.T) {
	ctx := context.Background()
	api := newGatedLister()
	c := New(api)

	errA := make(chan error, 1)
	go func() { errA <- c.Refresh(ctx) }()
	callA := <-api.calls

	errB := make(chan error, 1)
	go func() { errB <- c.Refresh(ctx) }()
	callB := <-api.calls

	callB <- result{items: []model.Laptop{x1, zenbook}}
	require.NoError(t, <-errB)

	callA <- result{items: []model.Laptop{tuf}}
	assert.ErrorIs(t, <-errA, ErrStale)

	snap := c.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, []model.Laptop{x1, zenbook}, snap.Items)
	assert.Equal(t, uint64(2), snap.Generation)
}

func TestCache_StatusLifecycle(t *testing.T) {
	ctx := context.Background()
	api := newGatedLister()
	c := New(api)
	assert.Equal(t, StatusUnknown, c.Status())

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	call := <-api.calls
	assert.Equal(t, StatusLoading, c.Status())

	call <- result{err: errx.FromStatus(503, "")}
	err := <-done
	assert.Equal(t, errx.KindTransient, errx.KindOf(err))

	snap := c.Snapshot()
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)
	assert.Equal(t, errx.TransientErrorMessage, snap.Error)
}

func TestCache_EmptySuccessIsReady(t *testing.T) {
	c := New(staticLister{})
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, StatusReady, c.Status())
	assert.NotNil(t, c.Items())
	assert.Empty(t, c.Items())
}

func TestCache_OnUpdateSeesOnlyLandedRefreshes(t *testing.T) {
	c := New(staticLister{items: []model.Laptop{tuf}})
	var got []Snapshot
	c.OnUpdate(func(s Snapshot) { got = append(got, s) })

	require.NoError(t, c.Refresh(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, []model.Laptop{tuf}, got[0].Items)
}

func TestCache_CloseSuppressesLateResponse(t *testing.T) {
	api := newGatedLister()
	c := New(api)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	call := <-api.calls

	c.Close()
	call <- result{items: []model.Laptop{tuf}}
	assert.ErrorIs(t, <-done, ErrStale)
	assert.Empty(t, c.Items())
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrStale)
}

func TestCache_LookupCompareOverlay(t *testing.T) {
	c := New(staticLister{items: []model.Laptop{tuf, x1, zenbook}})
	require.NoError(t, c.Refresh(context.Background()))

	l, ok := c.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, x1, l)
	l, ok = c.Lookup("Zenbook 14")
	assert.True(t, ok)
	assert.Equal(t, zenbook, l)
	_, ok = c.Lookup("missing")
	assert.False(t, ok)

	pair, err := c.Compare("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []model.Laptop{zenbook, tuf}, pair)

	_, err = c.Compare("a")
	assert.Equal(t, errx.KindValidation, errx.KindOf(err))
	_, err = c.Compare("a", "zzz")
	assert.Equal(t, errx.KindNotFound, errx.KindOf(err))

	items := c.Overlay(func(m string) bool { return m == "X1 Carbon" })
	require.Len(t, items, 3)
	assert.False(t, items[0].Wishlisted)
	assert.True(t, items[1].Wishlisted)
	assert.False(t, items[2].Wishlisted)
	assert.Equal(t, "X1 Carbon", items[1].Model)
}

func TestCache_FailureAfterSuccessClearsItems(t *testing.T) {
	api := &staticLister{items: []model.Laptop{tuf}}
	c := New(api)
	require.NoError(t, c.Refresh(context.Background()))

	api.err = errors.New("boom")
	assert.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, StatusEmpty, c.Status())
	assert.Empty(t, c.Items())
}
