// Package query owns the lifecycle of the recommendation request:
// Idle -> Processing -> Ready|Error, with Reset returning to Idle from any
// phase. At most one request is outstanding at a time.
package query

import (
	"context"
	"errors"
	"strings"
	"sync"

	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
	"github.com/smartselect/shortlist/internal/storage"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

var (
	// ErrStale is returned when a response arrived after a Reset or Close
	// and was discarded.
	ErrStale = errors.New("query: response discarded")
	// ErrClosed is returned once the controller has been torn down.
	ErrClosed = errors.New("query: controller closed")
)

const interruptedMessage = "the previous request was interrupted, please submit again"

// Recommender is the slice of the backend API the controller needs.
type Recommender interface {
	Query(ctx context.Context, req model.QueryRequest) (*model.Recommendation, error)
}

// TransitionFunc observes phase transitions. It runs outside the
// controller's lock.
type TransitionFunc func(prev, next model.QueryState)

type Controller struct {
	mu         sync.Mutex
	state      model.QueryState
	generation uint64
	closed     bool
	listeners  []TransitionFunc

	api     Recommender
	storage storage.Store
}

func NewController(api Recommender, st storage.Store) *Controller {
	return &Controller{
		api:     api,
		storage: st,
		state:   model.QueryState{Phase: model.PhaseIdle},
	}
}

func (c *Controller) OnTransition(fn TransitionFunc) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// State returns a copy of the current state.
func (c *Controller) State() model.QueryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Answers = s.Answers.Clone()
	return s
}

// Submit sends questionnaire answers. It is rejected with errx.ErrInFlight
// while another request is processing.
func (c *Controller) Submit(ctx context.Context, answers model.Answers) (*model.Recommendation, error) {
	if len(answers) == 0 {
		return nil, errx.Validation("at least one answer is required")
	}
	answers = answers.Clone()
	return c.run(ctx, model.QueryRequest{Answers: answers}, func(s *model.QueryState) {
		s.Answers = answers
		s.RefinementText = ""
	})
}

// Refine sends a free-text follow-up. Blank text is a no-op returning
// (nil, nil). Combining it with earlier context is the backend's job.
func (c *Controller) Refine(ctx context.Context, text string) (*model.Recommendation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return c.run(ctx, model.QueryRequest{CustomQuery: text}, func(s *model.QueryState) {
		s.RefinementText = text
	})
}

func (c *Controller) run(ctx context.Context, req model.QueryRequest, apply func(*model.QueryState)) (*model.Recommendation, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.state.Phase == model.PhaseProcessing {
		c.mu.Unlock()
		logx.Debug().Msg("query rejected: request already in flight")
		return nil, errx.ErrInFlight
	}
	c.generation++
	gen := c.generation
	prev := c.state
	next := prev
	next.Answers = prev.Answers.Clone()
	apply(&next)
	next.Phase = model.PhaseProcessing
	next.ResultLabel = ""
	next.Error = ""
	c.state = next
	c.persistLocked(ctx)
	listeners := c.listeners
	c.mu.Unlock()

	logx.Debug().Uint64("generation", gen).Str("phase", string(next.Phase)).Msg("query submitted")
	notify(listeners, prev, next)

	rec, err := c.api.Query(ctx, req)

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		logx.Debug().Uint64("generation", gen).Msg("discarding stale query response")
		return nil, ErrStale
	}
	prev = c.state
	next = prev
	next.Answers = prev.Answers.Clone()
	if err != nil {
		next.Phase = model.PhaseError
		next.Error = errx.MessageOf(err)
	} else {
		next.Phase = model.PhaseReady
		next.ResultLabel = rec.Label
	}
	c.state = next
	c.persistLocked(ctx)
	listeners = c.listeners
	c.mu.Unlock()

	if err != nil {
		logx.Warn().Err(err).Uint64("generation", gen).Msg("query failed")
	} else {
		logx.Debug().Uint64("generation", gen).Str("label", rec.Label).Int("items", len(rec.Items)).Msg("query ready")
	}
	notify(listeners, prev, next)
	return rec, err
}

// Reset returns to Idle, forgets answers and result, removes the persisted
// snapshot and makes any in-flight response stale.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	prev := c.state
	next := model.QueryState{Phase: model.PhaseIdle}
	c.state = next
	err := c.storage.Delete(context.WithoutCancel(ctx), storage.KeyLastQuery)
	listeners := c.listeners
	c.mu.Unlock()

	if err != nil {
		logx.Warn().Err(err).Str("key", storage.KeyLastQuery).Msg("failed to delete query snapshot")
	}
	logx.Debug().Str("from", string(prev.Phase)).Msg("query reset")
	if prev.Phase != model.PhaseIdle || prev.ResultLabel != "" {
		notify(listeners, prev, next)
	}
	return err
}

// Restore loads the last snapshot. A snapshot left in Processing cannot be
// resumed and is restored as Error.
func (c *Controller) Restore(ctx context.Context) model.QueryState {
	var snap model.QuerySnapshot
	found, err := c.storage.Get(ctx, storage.KeyLastQuery, &snap)
	if err != nil {
		logx.Warn().Err(err).Msg("failed to read query snapshot")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !found || err != nil {
		return c.state
	}
	switch snap.Phase {
	case model.PhaseProcessing:
		c.state = model.QueryState{Phase: model.PhaseError, Error: interruptedMessage}
		c.persistLocked(ctx)
		logx.Warn().Msg("restored an interrupted query, marked as error")
	case model.PhaseReady:
		c.state = model.QueryState{Phase: model.PhaseReady, ResultLabel: snap.ResultLabel}
	case model.PhaseError:
		msg := snap.Error
		if msg == "" {
			msg = errx.SystemErrorMessage
		}
		c.state = model.QueryState{Phase: model.PhaseError, Error: msg}
	default:
		c.state = model.QueryState{Phase: model.PhaseIdle}
	}
	return c.state
}

// Close marks the controller torn down; a response still in flight is
// discarded when it lands.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.generation++
	c.mu.Unlock()
}

func (c *Controller) persistLocked(ctx context.Context) {
	snap := model.QuerySnapshot{Phase: c.state.Phase, ResultLabel: c.state.ResultLabel, Error: c.state.Error}
	if err := c.storage.Set(context.WithoutCancel(ctx), storage.KeyLastQuery, snap); err != nil {
		logx.Warn().Err(err).Str("key", storage.KeyLastQuery).Msg("failed to persist query snapshot")
	}
}

func notify(listeners []TransitionFunc, prev, next model.QueryState) {
	for _, fn := range listeners {
		fn(prev, next)
	}
}
