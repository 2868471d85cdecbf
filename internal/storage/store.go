// Package storage is the client's durable key/value storage. The session,
// query and draft owners share one Store but each writes only its own keys.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smartselect/shortlist/internal/model"
	logx "github.com/smartselect/shortlist/pkg/logger"
	pkgredis "github.com/smartselect/shortlist/pkg/redis"
)

const (
	KeyToken         = "token"
	KeyLastQuery     = "last-query-snapshot"
	KeyCachedAnswers = "cached-answers"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Store persists JSON-encoded values. A missing key is reported as
// found=false, never as an error.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open selects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg model.StorageConfig, redisCfg pkgredis.Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultPath()
		}
		return OpenSQLite(ctx, path)
	case DriverRedis:
		rdb, err := redisCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedisStore(rdb, cfg.Namespace), nil
	case DriverMemory:
		logx.Warn().Msg("memory storage selected: session and query state will not survive a restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// DefaultPath is ~/.shortlist/state.db, or ./.shortlist/state.db when the
// home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".shortlist", "state.db")
}
