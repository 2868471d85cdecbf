package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status  int
		message string
		kind    Kind
		want    string
	}{
		{http.StatusUnauthorized, "", KindAuthExpired, SessionExpiredMessage},
		{http.StatusUnauthorized, "Token expired", KindAuthExpired, "Token expired"},
		{http.StatusNotFound, "", KindNotFound, "Not Found"},
		{http.StatusBadRequest, "queryStr is required", KindValidation, "queryStr is required"},
		{http.StatusUnprocessableEntity, "", KindValidation, "Unprocessable Entity"},
		{http.StatusInternalServerError, "", KindTransient, TransientErrorMessage},
		{http.StatusBadGateway, "upstream down", KindTransient, "upstream down"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.status, tt.message), func(t *testing.T) {
			err := FromStatus(tt.status, tt.message)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.want, MessageOf(err))
		})
	}
}

func TestKindAndMessageThroughWrapping(t *testing.T) {
	err := fmt.Errorf("wishlist add: %w", Validation("queryStr is required"))

	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Equal(t, "queryStr is required", MessageOf(err))

	foreign := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(foreign))
	assert.Equal(t, SystemErrorMessage, MessageOf(foreign))
	assert.Equal(t, 0, StatusOf(foreign))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestAppError_IsMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("submit: %w", New(KindInFlight, nil, http.StatusConflict, "busy"))
	assert.ErrorIs(t, err, ErrInFlight)
	assert.NotErrorIs(t, Validation("x"), ErrInFlight)

	cause := errors.New("dial tcp: refused")
	assert.ErrorIs(t, Network(cause), cause)
	assert.Nil(t, Network(nil))
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))
	assert.True(t, IsKind(WrapRedis(redis.Nil), KindNotFound))
	assert.ErrorIs(t, WrapRedis(redis.Nil), redis.Nil)
	assert.True(t, IsKind(WrapRedis(errors.New("conn reset")), KindStorage))
}

func TestWrapStorage(t *testing.T) {
	assert.NoError(t, WrapStorage(nil))

	wrapped := WrapStorage(errors.New("disk full"))
	assert.True(t, IsKind(wrapped, KindStorage))
	assert.Equal(t, StorageErrorMessage, MessageOf(wrapped))

	nf := NotFound("gone")
	assert.Same(t, nf, WrapStorage(nf))
}
