package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
	"github.com/smartselect/shortlist/internal/storage"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-only-secret"))
	require.NoError(t, err)
	return tok
}

type fakeAuth struct {
	users map[string]string
	token func(username string) string
	err   error
}

func (f *fakeAuth) Login(_ context.Context, c model.Credentials) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if pw, ok := f.users[c.Username]; !ok || pw != c.Password {
		return "", errx.Unauthenticated("Invalid username or password")
	}
	return f.token(c.Username), nil
}

func (f *fakeAuth) Signup(_ context.Context, c model.Credentials) (string, error) {
	if _, ok := f.users[c.Username]; ok {
		return "", errx.Validation("User already exists")
	}
	f.users[c.Username] = c.Password
	return "User created successfully", nil
}

func TestStore_SignupThenLoginDecodesIdentity(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	auth := &fakeAuth{users: map[string]string{}}
	auth.token = func(u string) string { return signToken(t, jwt.MapClaims{"username": u}) }
	s := New(st, auth)

	msg, err := s.Signup(ctx, "asha", "pw")
	require.NoError(t, err)
	assert.Equal(t, "User created successfully", msg)
	assert.False(t, s.Authenticated())

	sess, err := s.Login(ctx, "asha", "pw")
	require.NoError(t, err)
	assert.Equal(t, "asha", sess.Username)
	assert.Equal(t, "asha", sess.UserID)

	var persisted string
	found, err := st.Get(ctx, storage.KeyToken, &persisted)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sess.Token, persisted)
}

func TestStore_LoginRejectedKeepsExistingSession(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{users: map[string]string{"asha": "pw"}}
	auth.token = func(u string) string { return signToken(t, jwt.MapClaims{"username": u, "user_id": "u-1"}) }
	s := New(storage.NewMemoryStore(), auth)

	_, err := s.Login(ctx, "asha", "pw")
	require.NoError(t, err)

	_, err = s.Login(ctx, "asha", "wrong")
	assert.Equal(t, errx.KindUnauthenticated, errx.KindOf(err))
	assert.Equal(t, "Invalid username or password", errx.MessageOf(err))
	assert.Equal(t, "u-1", s.Current().UserID)
}

func TestStore_ClaimLookup(t *testing.T) {
	tests := []struct {
		name     string
		claims   jwt.MapClaims
		userID   string
		username string
	}{
		{"username and user_id", jwt.MapClaims{"username": "asha", "user_id": "42"}, "42", "asha"},
		{"camel case id", jwt.MapClaims{"username": "asha", "userId": "u-9"}, "u-9", "asha"},
		{"sub only", jwt.MapClaims{"sub": "ravi"}, "ravi", "ravi"},
		{"numeric id", jwt.MapClaims{"username": "asha", "user_id": float64(7)}, "7", "asha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(storage.NewMemoryStore(), nil)
			require.NoError(t, s.SetToken(context.Background(), signToken(t, tt.claims)))
			cur := s.Current()
			assert.Equal(t, tt.userID, cur.UserID)
			assert.Equal(t, tt.username, cur.Username)
		})
	}
}

func TestStore_UndecodableTokenDegradesToLoggedOut(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	s := New(st, nil)
	require.NoError(t, s.SetToken(ctx, signToken(t, jwt.MapClaims{"username": "asha"})))

	for _, bad := range []string{"not-a-jwt", signToken(t, jwt.MapClaims{"role": "user"}), ""} {
		err := s.SetToken(ctx, bad)
		assert.Equal(t, errx.KindAuthDecode, errx.KindOf(err))
		cur := s.Current()
		assert.Empty(t, cur.Token)
		assert.Empty(t, cur.UserID)
		assert.Empty(t, cur.Username)
		assert.False(t, st.Has(storage.KeyToken))
	}
}

func TestStore_InvariantAcrossSetTokenAndClear(t *testing.T) {
	ctx := context.Background()
	s := New(storage.NewMemoryStore(), nil)
	good := signToken(t, jwt.MapClaims{"username": "asha"})

	ops := []func(){
		func() { _ = s.SetToken(ctx, good) },
		func() { _ = s.Clear(ctx) },
		func() { _ = s.SetToken(ctx, "garbage") },
		func() { _ = s.SetToken(ctx, good) },
		func() { _ = s.SetToken(ctx, good) },
		func() { _ = s.Clear(ctx) },
		func() { _ = s.Clear(ctx) },
	}
	for _, op := range ops {
		op()
		cur := s.Current()
		assert.Equal(t, cur.Token == "", cur.UserID == "")
		assert.Equal(t, cur.Token == "", cur.Username == "")
	}
}

// slowTokenStore holds the first token write until release is closed.
type slowTokenStore struct {
	*storage.MemoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowTokenStore) Set(ctx context.Context, key string, value any) error {
	if key == storage.KeyToken {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestStore_LogoutDuringTokenWriteLeavesNoPersistedToken(t *testing.T) {
	ctx := context.Background()
	st := &slowTokenStore{
		MemoryStore: storage.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	s := New(st, nil)
	token := signToken(t, jwt.MapClaims{"username": "asha"})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.SetToken(ctx, token)
	}()
	<-st.entered

	cleared := make(chan struct{})
	go func() {
		defer wg.Done()
		_ = s.Clear(ctx)
		close(cleared)
	}()

	select {
	case <-cleared:
		t.Fatal("Clear finished while the token write was still in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(st.release)
	wg.Wait()

	assert.False(t, s.Authenticated())
	assert.False(t, st.Has(storage.KeyToken))
	assert.False(t, New(st, nil).Restore(ctx).Authenticated())
}

func TestStore_RestoreFromStorage(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()

	s := New(st, nil)
	assert.False(t, s.Restore(ctx).Authenticated())

	require.NoError(t, st.Set(ctx, storage.KeyToken, signToken(t, jwt.MapClaims{"username": "asha"})))
	assert.Equal(t, "asha", New(st, nil).Restore(ctx).Username)

	require.NoError(t, st.Set(ctx, storage.KeyToken, "corrupt"))
	assert.False(t, New(st, nil).Restore(ctx).Authenticated())
	assert.False(t, st.Has(storage.KeyToken))
}

func TestStore_OnChangeFiresOnIdentityChangeOnly(t *testing.T) {
	ctx := context.Background()
	s := New(storage.NewMemoryStore(), nil)

	var changes []string
	s.OnChange(func(prev, next model.Session) {
		changes = append(changes, prev.UserID+"->"+next.UserID)
	})

	require.NoError(t, s.SetToken(ctx, signToken(t, jwt.MapClaims{"username": "asha", "iat": 1})))
	require.NoError(t, s.SetToken(ctx, signToken(t, jwt.MapClaims{"username": "asha", "iat": 2})))
	require.NoError(t, s.SetToken(ctx, signToken(t, jwt.MapClaims{"username": "ravi"})))
	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, []string{"->asha", "asha->ravi", "ravi->"}, changes)
}

func TestStore_ClosedRejectsNewSessions(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil)
	s.Close()
	err := s.SetToken(context.Background(), signToken(t, jwt.MapClaims{"username": "asha"}))
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, s.Authenticated())
}
