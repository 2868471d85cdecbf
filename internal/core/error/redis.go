package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// RedisNotFoundMessage describes a missing redis key.
const RedisNotFoundMessage = "key not found"

// WrapRedis maps Redis errors onto the unified error type.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(KindNotFound, err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return New(KindStorage, err, http.StatusBadGateway, StorageErrorMessage)
}

// WrapStorage normalises failures from any durable storage backend.
func WrapStorage(err error) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return err
	}
	return New(KindStorage, err, http.StatusInternalServerError, StorageErrorMessage)
}
