// Package wishlist keeps the per-user set of saved laptops in step with the
// server. Mutations are applied optimistically and rolled back when the
// server does not confirm them.
package wishlist

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

var (
	// ErrStale is returned when the session changed (or the synchronizer
	// closed) while a call was in flight and its result was not applied.
	ErrStale  = errors.New("wishlist: response discarded")
	ErrClosed = errors.New("wishlist: synchronizer closed")
)

// Backend is the slice of the API the synchronizer needs.
type Backend interface {
	Wishlist(ctx context.Context) ([]model.WishlistEntry, error)
	AddToWishlist(ctx context.Context, modelName, queryStr string) error
	RemoveFromWishlist(ctx context.Context, modelName string) error
}

// Session is the slice of the session store the synchronizer needs.
type Session interface {
	Authenticated() bool
	Clear(ctx context.Context) error
}

type ChangeFunc func(entries []model.WishlistEntry)

type intent struct {
	action model.Action
	entry  model.WishlistEntry
}

// settled is a confirmed intent tagged with the mutation sequence at which
// the server acknowledged it.
type settled struct {
	seq uint64
	in  intent
}

// serverRead is a fetched list tagged with the mutation sequence observed
// when the read was issued.
type serverRead struct {
	entries []model.WishlistEntry
	seq     uint64
}

type Synchronizer struct {
	mu        sync.Mutex
	members   map[string]model.WishlistEntry
	pending   map[string]intent
	confirmed map[string]settled
	inflight  map[string]chan struct{}
	epoch     uint64
	// mutations counts confirmed toggles; appliedRead is the sequence of
	// the newest server read applied to members.
	mutations   uint64
	appliedRead uint64
	closed    bool
	listeners []ChangeFunc

	api     Backend
	session Session
	fetches singleflight.Group
}

func New(api Backend, session Session) *Synchronizer {
	return &Synchronizer{
		members:  map[string]model.WishlistEntry{},
		pending:   map[string]intent{},
		confirmed: map[string]settled{},
		inflight:  map[string]chan struct{}{},
		api:      api,
		session:  session,
	}
}

func (s *Synchronizer) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Synchronizer) Contains(modelName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[modelName]
	return ok
}

// Entries returns the membership ordered by model.
func (s *Synchronizer) Entries() []model.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entriesLocked()
}

func (s *Synchronizer) Add(ctx context.Context, laptopID, modelName, queryStr string) error {
	return s.Toggle(ctx, model.ToggleRequest{
		Model:    modelName,
		LaptopID: laptopID,
		Action:   model.ActionAdd,
		QueryStr: queryStr,
	})
}

func (s *Synchronizer) Remove(ctx context.Context, modelName string) error {
	return s.Toggle(ctx, model.ToggleRequest{Model: modelName, Action: model.ActionRemove})
}

// Toggle applies req locally, then asks the server to confirm it. Toggles
// on the same model are serialized; different models proceed independently.
//
// On failure the model's prior membership is restored before returning.
// A 401 also clears the session; other 4xx responses surface the server's
// message; anything else triggers a full reconciliation fetch.
func (s *Synchronizer) Toggle(ctx context.Context, req model.ToggleRequest) error {
	if req.Model == "" {
		return errx.Validation("model is required")
	}
	if !req.Action.Valid() {
		return errx.Validation("action must be add or remove")
	}
	if !s.session.Authenticated() {
		return errx.Unauthenticated("")
	}

	release, err := s.acquire(ctx, req.Model)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	epoch := s.epoch
	prior, wasMember := s.members[req.Model]
	entry := model.WishlistEntry{LaptopID: req.LaptopID, Model: req.Model}
	if wasMember && entry.LaptopID == "" {
		entry.LaptopID = prior.LaptopID
	}
	s.applyLocked(req.Action, entry)
	in := intent{action: req.Action, entry: entry}
	s.pending[req.Model] = in
	entries := s.entriesLocked()
	listeners := s.listeners
	s.mu.Unlock()

	logx.Debug().Str("model", req.Model).Str("action", string(req.Action)).Msg("wishlist change applied optimistically")
	notify(listeners, entries)

	switch req.Action {
	case model.ActionAdd:
		err = s.api.AddToWishlist(ctx, req.Model, req.QueryStr)
	case model.ActionRemove:
		err = s.api.RemoveFromWishlist(ctx, req.Model)
	}

	s.mu.Lock()
	delete(s.pending, req.Model)
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		logx.Debug().Str("model", req.Model).Msg("session changed during wishlist call, result not applied")
		if err != nil {
			return err
		}
		return ErrStale
	}
	if err == nil {
		s.mutations++
		s.confirmed[req.Model] = settled{seq: s.mutations, in: in}
		s.mu.Unlock()
		logx.Debug().Str("model", req.Model).Str("action", string(req.Action)).Msg("wishlist change confirmed")
		return nil
	}

	if wasMember {
		s.members[req.Model] = prior
	} else {
		delete(s.members, req.Model)
	}
	entries = s.entriesLocked()
	s.mu.Unlock()

	logx.Warn().Err(err).Str("model", req.Model).Str("action", string(req.Action)).Int("status", errx.StatusOf(err)).
		Msg("wishlist change rolled back")
	notify(listeners, entries)

	switch errx.KindOf(err) {
	case errx.KindAuthExpired:
		if cerr := s.session.Clear(ctx); cerr != nil {
			logx.Warn().Err(cerr).Msg("failed to clear session after 401")
		}
		return err
	case errx.KindValidation, errx.KindNotFound, errx.KindUnauthenticated:
		return err
	default:
		if _, ferr := s.Fetch(ctx); ferr != nil {
			logx.Warn().Err(ferr).Str("model", req.Model).Msg("wishlist reconciliation failed")
		}
		return err
	}
}

// Fetch replaces local membership with the server's. Logged out it yields
// the empty set without a network call. Intents still awaiting the server,
// and intents confirmed after the read was issued, are re-applied on top of
// the fetched set. A read older than one already applied is ignored.
// Concurrent fetches share one request.
func (s *Synchronizer) Fetch(ctx context.Context) ([]model.WishlistEntry, error) {
	if !s.session.Authenticated() {
		s.replace(nil)
		return []model.WishlistEntry{}, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	epoch := s.epoch
	s.mu.Unlock()

	v, err, shared := s.fetches.Do("wishlist", func() (any, error) {
		s.mu.Lock()
		seq := s.mutations
		s.mu.Unlock()
		entries, err := s.api.Wishlist(ctx)
		return serverRead{entries: entries, seq: seq}, err
	})
	if err != nil {
		if errx.IsKind(err, errx.KindAuthExpired) {
			logx.Warn().Err(err).Msg("wishlist fetch rejected, clearing session")
			if cerr := s.session.Clear(ctx); cerr != nil {
				logx.Warn().Err(cerr).Msg("failed to clear session after 401")
			}
		} else {
			logx.Warn().Err(err).Msg("wishlist fetch failed")
		}
		return nil, err
	}
	read, _ := v.(serverRead)

	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		return nil, ErrStale
	}
	if read.seq < s.appliedRead {
		entries := s.entriesLocked()
		s.mu.Unlock()
		logx.Debug().Uint64("read_seq", read.seq).Msg("ignoring wishlist read older than the applied one")
		return entries, nil
	}
	s.appliedRead = read.seq
	s.members = make(map[string]model.WishlistEntry, len(read.entries))
	for _, e := range read.entries {
		if e.Model != "" {
			s.members[e.Model] = e
		}
	}
	for m, c := range s.confirmed {
		if c.seq > read.seq {
			s.applyLocked(c.in.action, c.in.entry)
		} else {
			delete(s.confirmed, m)
		}
	}
	for _, in := range s.pending {
		s.applyLocked(in.action, in.entry)
	}
	entries := s.entriesLocked()
	listeners := s.listeners
	s.mu.Unlock()

	logx.Debug().Int("entries", len(entries)).Bool("shared", shared).Msg("wishlist fetched")
	notify(listeners, entries)
	return entries, nil
}

// Reset empties the wishlist and makes every in-flight call stale. Used on
// logout.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.epoch++
	changed := len(s.members) > 0
	s.members = map[string]model.WishlistEntry{}
	s.pending = map[string]intent{}
	s.confirmed = map[string]settled{}
	listeners := s.listeners
	s.mu.Unlock()

	if changed {
		notify(listeners, []model.WishlistEntry{})
	}
}

func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.epoch++
	s.mu.Unlock()
}

func (s *Synchronizer) replace(entries []model.WishlistEntry) {
	s.mu.Lock()
	changed := len(s.members) != len(entries)
	s.members = make(map[string]model.WishlistEntry, len(entries))
	for _, e := range entries {
		s.members[e.Model] = e
	}
	out := s.entriesLocked()
	listeners := s.listeners
	s.mu.Unlock()
	if changed {
		notify(listeners, out)
	}
}

// acquire serializes toggles per model.
func (s *Synchronizer) acquire(ctx context.Context, modelName string) (func(), error) {
	for {
		s.mu.Lock()
		busy, ok := s.inflight[modelName]
		if !ok {
			done := make(chan struct{})
			s.inflight[modelName] = done
			s.mu.Unlock()
			return func() {
				s.mu.Lock()
				delete(s.inflight, modelName)
				s.mu.Unlock()
				close(done)
			}, nil
		}
		s.mu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Synchronizer) applyLocked(action model.Action, entry model.WishlistEntry) {
	switch action {
	case model.ActionAdd:
		if _, ok := s.members[entry.Model]; !ok || entry.LaptopID != "" {
			s.members[entry.Model] = entry
		}
	case model.ActionRemove:
		delete(s.members, entry.Model)
	}
}

func (s *Synchronizer) entriesLocked() []model.WishlistEntry {
	out := make([]model.WishlistEntry, 0, len(s.members))
	for _, e := range s.members {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

func notify(listeners []ChangeFunc, entries []model.WishlistEntry) {
	for _, fn := range listeners {
		fn(entries)
	}
}
