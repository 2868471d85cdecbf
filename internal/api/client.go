// Package api is the REST client for the recommendation, auth and review
// backends. It maps every non-2xx response onto errx kinds and never decides
// anything about authorization itself.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

const (
	LoginFailedMessage   = "Login failed. Please check your credentials."
	SignupSuccessMessage = "Signup successful! Please log in."
	AnalysisNotReady     = "analysis not ready"

	maxBodyBytes = 8 << 20
)

// TokenSource supplies the bearer token for each call. An empty token means
// the request goes out without an Authorization header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Client struct {
	baseURL    string
	reviewsURL string
	http       *http.Client
	tokens     TokenSource
}

func New(cfg model.APIConfig, tokens TokenSource) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	reviews := strings.TrimRight(cfg.ReviewsBaseURL, "/")
	if reviews == "" {
		reviews = base
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}
	return &Client{
		baseURL:    base,
		reviewsURL: reviews,
		tokens:     tokens,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return r.Method + " " + r.URL.Path
				}),
			),
		},
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (m messageResponse) text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}

type wishlistBody struct {
	QueryStr string `json:"queryStr"`
}

// Login exchanges credentials for a bearer token. A rejected login is
// Unauthenticated, never AuthExpired: no session existed to expire.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (string, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, c.baseURL, "/login", false, creds, &out)
	if err != nil {
		if errx.StatusOf(err) == http.StatusUnauthorized {
			msg := errx.MessageOf(err)
			if msg == errx.SessionExpiredMessage {
				msg = LoginFailedMessage
			}
			return "", errx.Unauthenticated(msg)
		}
		return "", err
	}
	if out.Token == "" {
		return "", errx.Unauthenticated(LoginFailedMessage)
	}
	return out.Token, nil
}

func (c *Client) Signup(ctx context.Context, creds model.Credentials) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL, "/signup", false, creds, &out); err != nil {
		return "", err
	}
	if msg := out.text(); msg != "" {
		return msg, nil
	}
	return SignupSuccessMessage, nil
}

// Query posts answers or a refinement. A 2xx body carrying an "error" field
// means the backend could not produce a result and is reported as Transient.
func (c *Client) Query(ctx context.Context, req model.QueryRequest) (*model.Recommendation, error) {
	var out model.Recommendation
	if err := c.do(ctx, http.MethodPost, c.baseURL, "/query", true, req, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, errx.New(errx.KindTransient, errors.New(out.Error), http.StatusBadGateway, out.Error)
	}
	return &out, nil
}

// Laptops returns the candidate list in backend rank order. A body that is
// not a JSON array yields an empty list.
func (c *Client) Laptops(ctx context.Context) ([]model.Laptop, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.baseURL, "/laptops", true, nil, &raw); err != nil {
		return nil, err
	}
	return decodeSequence[model.Laptop]("/laptops", raw), nil
}

func (c *Client) Wishlist(ctx context.Context) ([]model.WishlistEntry, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.baseURL, "/wishlist", true, nil, &raw); err != nil {
		return nil, err
	}
	laptops := decodeSequence[model.Laptop]("/wishlist", raw)
	entries := make([]model.WishlistEntry, 0, len(laptops))
	for _, l := range laptops {
		if l.Model == "" {
			continue
		}
		entries = append(entries, model.WishlistEntry{LaptopID: l.ID, Model: l.Model})
	}
	return entries, nil
}

func (c *Client) AddToWishlist(ctx context.Context, modelName, queryStr string) error {
	path := "/wishlist/" + url.PathEscape(modelName)
	return c.do(ctx, http.MethodPost, c.baseURL, path, true, wishlistBody{QueryStr: queryStr}, nil)
}

func (c *Client) RemoveFromWishlist(ctx context.Context, modelName string) error {
	path := "/wishlist/" + url.PathEscape(modelName)
	return c.do(ctx, http.MethodDelete, c.baseURL, path, true, nil, nil)
}

// ReviewAnalysis fetches the precomputed sentiment report. The sentiment
// backend stores models with spaces replaced by underscores.
func (c *Client) ReviewAnalysis(ctx context.Context, modelName string) (*model.ReviewAnalysis, error) {
	path := "/reviews/analysis/" + url.PathEscape(strings.ReplaceAll(modelName, " ", "_"))
	var out model.ReviewAnalysis
	if err := c.do(ctx, http.MethodGet, c.reviewsURL, path, false, nil, &out); err != nil {
		if errx.IsKind(err, errx.KindNotFound) {
			return nil, errx.NotFound(AnalysisNotReady)
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, base, path string, withAuth bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withAuth {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logx.Warn().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return errx.Network(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errx.Network(err)
	}

	logx.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg messageResponse
		_ = json.Unmarshal(payload, &msg)
		return errx.FromStatus(resp.StatusCode, msg.text())
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		logx.Warn().Err(err).Str("path", path).Msg("undecodable response body")
		return errx.New(errx.KindTransient, err, http.StatusBadGateway, errx.TransientErrorMessage)
	}
	return nil
}

func decodeSequence[T any](path string, raw json.RawMessage) []T {
	out := []T{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		logx.Debug().Str("path", path).Msg("response is not a sequence, treating as empty")
		return out
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		logx.Warn().Err(err).Str("path", path).Msg("undecodable sequence, treating as empty")
		return []T{}
	}
	return out
}
