// Package reviews fetches precomputed review sentiment. The sentiment
// backend answers 404 until an analysis has been computed, so lookups are
// retried with a bounded exponential backoff.
package reviews

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/patrickmn/go-cache"

	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

const NotReadyMessage = "analysis not ready"

// Source is the slice of the API the fetcher needs.
type Source interface {
	ReviewAnalysis(ctx context.Context, modelName string) (*model.ReviewAnalysis, error)
}

type Fetcher struct {
	api   Source
	cfg   model.ReviewsConfig
	cache *cache.Cache
}

func New(api Source, cfg model.ReviewsConfig) *Fetcher {
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 3 * time.Second
	}
	if cfg.RetryMaxInterval < cfg.RetryInitial {
		cfg.RetryMaxInterval = cfg.RetryInitial
	}
	if cfg.RetryMaxTries == 0 {
		cfg.RetryMaxTries = 1
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Fetcher{
		api:   api,
		cfg:   cfg,
		cache: cache.New(ttl, 0),
	}
}

// Analysis returns the sentiment report for modelName. 404 and transient
// failures are retried; other failures return immediately. When the retry
// budget runs out the result is NotFound "analysis not ready".
func (f *Fetcher) Analysis(ctx context.Context, modelName string) (*model.ReviewAnalysis, error) {
	if modelName == "" {
		return nil, errx.Validation("model is required")
	}
	if v, ok := f.cache.Get(modelName); ok {
		return v.(*model.ReviewAnalysis), nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.RetryInitial
	b.MaxInterval = f.cfg.RetryMaxInterval
	b.RandomizationFactor = 0

	attempt := 0
	op := func() (*model.ReviewAnalysis, error) {
		attempt++
		a, err := f.api.ReviewAnalysis(ctx, modelName)
		if err == nil {
			return a, nil
		}
		switch errx.KindOf(err) {
		case errx.KindNotFound, errx.KindTransient:
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}

	a, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(f.cfg.RetryMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logx.Debug().Err(err).Str("model", modelName).Int("attempt", attempt).Dur("next", next).
				Msg("review analysis not available yet, retrying")
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errx.IsKind(err, errx.KindNotFound) {
			logx.Warn().Str("model", modelName).Int("attempts", attempt).Msg("review analysis still not ready")
			return nil, errx.NotFound(NotReadyMessage)
		}
		return nil, err
	}

	f.cache.SetDefault(modelName, a)
	return a, nil
}

// Forget drops a cached analysis.
func (f *Fetcher) Forget(modelName string) {
	f.cache.Delete(modelName)
}
