// Package session owns the bearer token and the identity decoded from it.
// Identity is display-only; the server's 401 is the only authority on
// whether a session is valid.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
	"github.com/smartselect/shortlist/internal/storage"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

// ErrClosed is returned by operations that complete after Close.
var ErrClosed = errors.New("session: store closed")

// Authenticator is the slice of the backend API the session needs.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (string, error)
	Signup(ctx context.Context, creds model.Credentials) (string, error)
}

// ChangeFunc observes identity changes (login, logout, forced logout).
type ChangeFunc func(prev, next model.Session)

type Store struct {
	// writeMu orders token writes so storage and memory agree on the
	// last SetToken or Clear.
	writeMu sync.Mutex

	mu        sync.RWMutex
	current   model.Session
	closed    bool
	listeners []ChangeFunc

	storage storage.Store
	auth    Authenticator
	parser  *jwt.Parser
}

func New(st storage.Store, auth Authenticator) *Store {
	return &Store{
		storage: st,
		auth:    auth,
		parser:  jwt.NewParser(),
	}
}

// OnChange registers fn to run after every identity change. Listeners run
// synchronously on the goroutine that caused the change, outside any lock.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) Current() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

func (s *Store) Authenticated() bool {
	return s.Current().Authenticated()
}

// SetToken persists token and derives identity from its unverified payload.
// An undecodable token degrades to the logged-out session and returns an
// AuthDecode error.
func (s *Store) SetToken(ctx context.Context, token string) error {
	next, err := s.decode(token)
	if err != nil {
		logx.Warn().Err(err).Msg("token payload unreadable, clearing session")
		_ = s.Clear(ctx)
		return errx.New(errx.KindAuthDecode, err, http.StatusUnauthorized, errx.UnauthenticatedMessage)
	}

	s.writeMu.Lock()
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		s.writeMu.Unlock()
		return ErrClosed
	}

	if err := s.storage.Set(ctx, storage.KeyToken, token); err != nil {
		logx.Warn().Err(err).Str("key", storage.KeyToken).Msg("failed to persist token")
	}

	s.mu.Lock()
	prev := s.current
	s.current = next
	listeners := s.listeners
	s.mu.Unlock()
	s.writeMu.Unlock()

	logx.Debug().Str("user_id", next.UserID).Str("username", next.Username).Msg("session established")
	s.notify(listeners, prev, next)
	return nil
}

// Clear removes token and identity from memory and durable storage.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	err := s.storage.Delete(ctx, storage.KeyToken)
	if err != nil {
		logx.Warn().Err(err).Str("key", storage.KeyToken).Msg("failed to delete persisted token")
	}

	s.mu.Lock()
	prev := s.current
	s.current = model.Session{}
	listeners := s.listeners
	s.mu.Unlock()
	s.writeMu.Unlock()

	if prev.Authenticated() {
		logx.Debug().Str("user_id", prev.UserID).Msg("session cleared")
	}
	s.notify(listeners, prev, model.Session{})
	return err
}

// Restore re-derives the session from the persisted token. It never fails:
// a missing or undecodable token yields the logged-out session.
func (s *Store) Restore(ctx context.Context) model.Session {
	var token string
	found, err := s.storage.Get(ctx, storage.KeyToken, &token)
	if err != nil {
		logx.Warn().Err(err).Msg("failed to read persisted token")
		return s.Current()
	}
	if !found || token == "" {
		return s.Current()
	}
	if err := s.SetToken(ctx, token); err != nil {
		logx.Warn().Err(err).Msg("discarding persisted token")
	}
	return s.Current()
}

// Login exchanges credentials for a token. A rejected login leaves any
// existing session untouched.
func (s *Store) Login(ctx context.Context, username, password string) (model.Session, error) {
	if username == "" || password == "" {
		return model.Session{}, errx.Validation("username and password are required")
	}
	token, err := s.auth.Login(ctx, model.Credentials{Username: username, Password: password})
	if err != nil {
		logx.Debug().Err(err).Str("username", username).Msg("login rejected")
		return model.Session{}, err
	}
	if err := s.SetToken(ctx, token); err != nil {
		return model.Session{}, err
	}
	return s.Current(), nil
}

// Signup registers an account and returns the server's confirmation. It
// does not log in.
func (s *Store) Signup(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", errx.Validation("username and password are required")
	}
	return s.auth.Signup(ctx, model.Credentials{Username: username, Password: password})
}

func (s *Store) Logout(ctx context.Context) error {
	return s.Clear(ctx)
}

// Close stops the store from accepting new sessions. Clear keeps working so
// a late forced logout is still honoured.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Store) notify(listeners []ChangeFunc, prev, next model.Session) {
	if prev.SameIdentity(next) {
		return
	}
	for _, fn := range listeners {
		fn(prev, next)
	}
}

func (s *Store) decode(token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, errors.New("empty token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := s.parser.ParseUnverified(token, claims); err != nil {
		return model.Session{}, fmt.Errorf("parse token payload: %w", err)
	}

	username := claimString(claims, "username", "sub")
	if username == "" {
		return model.Session{}, errors.New("token payload has no username")
	}
	userID := claimString(claims, "user_id", "userId", "sub")
	if userID == "" {
		userID = username
	}
	return model.NewSession(token, userID, username), nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
