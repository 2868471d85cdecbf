package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartselect/shortlist/internal/client"
	"github.com/smartselect/shortlist/internal/model"
)

type fakeBackend struct {
	mu       sync.Mutex
	token    string
	wishlist map[string]string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := b.token != "" && r.Header.Get("Authorization") == "Bearer "+b.token

	switch {
	case r.URL.Path == "/login":
		var c model.Credentials
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Password != "pw" {
			reply(http.StatusUnauthorized, map[string]string{"message": "Invalid username or password"})
			return
		}
		b.token, _ = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"username": c.Username, "user_id": "u-1"}).SignedString([]byte("k"))
		reply(http.StatusOK, map[string]string{"token": b.token})
	case r.URL.Path == "/query":
		reply(http.StatusOK, map[string]any{"query": "budget gaming", "items": []any{}})
	case r.URL.Path == "/laptops":
		reply(http.StatusOK, []map[string]any{
			{"_id": "a", "model": "TUF A15", "price_inr": 49990, "cpu": "Ryzen 7"},
			{"_id": "b", "model": "X1 Carbon", "price_inr": 139990, "cpu": "Core Ultra 7"},
		})
	case r.URL.Path == "/wishlist":
		if !authed {
			reply(http.StatusUnauthorized, map[string]string{"message": "Token expired"})
			return
		}
		out := []map[string]string{}
		for m, id := range b.wishlist {
			out = append(out, map[string]string{"_id": id, "model": m})
		}
		reply(http.StatusOK, out)
	case strings.HasPrefix(r.URL.Path, "/wishlist/"):
		if !authed {
			reply(http.StatusUnauthorized, map[string]string{"message": "Token expired"})
			return
		}
		m, _ := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/wishlist/"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["queryStr"] == "" {
			reply(http.StatusBadRequest, map[string]string{"message": "queryStr is required"})
			return
		}
		b.wishlist[m] = "w-" + m
		reply(http.StatusCreated, map[string]string{"message": "added"})
	case r.URL.Path == "/reviews/analysis/TUF_A15":
		reply(http.StatusOK, model.ReviewAnalysis{
			ModelName:    "TUF A15",
			TotalReviews: 12,
			GroupAnalysis: model.GroupAnalysis{
				SentimentByGroup: map[string]model.SentimentStats{"gamers": {Positive: 9, Neutral: 2, Negative: 1}},
			},
		})
	default:
		reply(http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func newCLI(t *testing.T) func(args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(&fakeBackend{wishlist: map[string]string{}})
	t.Cleanup(srv.Close)

	cfg := client.Config{
		API:     model.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second},
		Reviews: model.ReviewsConfig{RetryInitial: time.Millisecond, RetryMaxInterval: time.Millisecond, RetryMaxTries: 2, CacheTTL: time.Minute},
		Storage: model.StorageConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "state.db")},
	}
	return func(args ...string) (string, error) {
		var out, errOut bytes.Buffer
		err := Execute(context.Background(), cfg, append(args, "--quiet"), &out, &errOut)
		return out.String(), err
	}
}

func TestCLI_SessionQueryAndWishlistAcrossInvocations(t *testing.T) {
	run := newCLI(t)

	out, err := run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "not logged in\n", out)

	_, err = run("wishlist")
	require.Error(t, err)
	assert.Equal(t, "please log in to continue", err.Error())

	_, err = run("login", "asha", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid username or password", err.Error())

	out, err = run("login", "asha", "-p", "pw")
	require.NoError(t, err)
	assert.Equal(t, "logged in as asha\n", out)

	out, err = run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "asha (id u-1)\n", out)

	out, err = run("ask", "--answer", "usage=gaming", "--answer", "ports=USB-C, HDMI")
	require.NoError(t, err)
	assert.Contains(t, out, "recommendations for: budget gaming")
	assert.Contains(t, out, "X1 Carbon")

	out, err = run("wishlist", "add", "X1 Carbon")
	require.NoError(t, err)
	assert.Equal(t, "saved X1 Carbon\n", out)

	out, err = run("wishlist", "list")
	require.NoError(t, err)
	assert.Equal(t, "X1 Carbon\n", out)

	out, err = run("status", "--json")
	require.NoError(t, err)
	var st client.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "asha", st.Session.Username)
	assert.Equal(t, model.PhaseReady, st.Query.Phase)
	assert.Equal(t, "budget gaming", st.Query.ResultLabel)
	assert.Equal(t, 2, st.CatalogItems)
	assert.Equal(t, 1, st.WishlistItems)

	out, err = run("logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	out, err = run("status", "--json")
	require.NoError(t, err)
	st = client.Status{}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.Session.Authenticated())
	assert.Equal(t, model.PhaseIdle, st.Query.Phase)
}

func TestCLI_CatalogCommands(t *testing.T) {
	run := newCLI(t)

	out, err := run("laptops")
	require.NoError(t, err)
	assert.Contains(t, out, "TUF A15")
	assert.Contains(t, out, "49990")

	out, err = run("show", "X1 Carbon")
	require.NoError(t, err)
	assert.Contains(t, out, "Core Ultra 7")

	out, err = run("compare", "a", "b")
	require.NoError(t, err)
	assert.Contains(t, out, "TUF A15")
	assert.Contains(t, out, "X1 Carbon")

	_, err = run("compare", "a", "zzz")
	require.Error(t, err)
	assert.Equal(t, `laptop "zzz" is not in the current results`, err.Error())

	_, err = run("ask")
	require.Error(t, err)
}

func TestCLI_Reviews(t *testing.T) {
	run := newCLI(t)

	out, err := run("reviews", "TUF", "A15")
	require.NoError(t, err)
	assert.Contains(t, out, "TUF A15: 12 reviews")
	assert.Contains(t, out, "gamers")

	_, err = run("reviews", "Unknown")
	require.Error(t, err)
	assert.Equal(t, "analysis not ready", err.Error())
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		raw  string
		id   string
		want model.AnswerValue
		err  bool
	}{
		{raw: "usage=gaming", id: "usage", want: model.Single("gaming")},
		{raw: " budget = 50000 ", id: "budget", want: model.Single("50000")},
		{raw: "ports=USB-C, HDMI,", id: "ports", want: model.Multi("USB-C", "HDMI")},
		{raw: "usage=", id: "usage", want: model.Single("")},
		{raw: "=gaming", err: true},
		{raw: "gaming", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, v, err := parseAnswer(tt.raw)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.want, v)
		})
	}
}
