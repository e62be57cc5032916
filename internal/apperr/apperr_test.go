package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Conflict("race"), http.StatusConflict},
		{PayloadTooLarge("big"), http.StatusRequestEntityTooLarge},
		{UnsupportedMediaType("xml"), http.StatusUnsupportedMediaType},
		{TooManyRequests("slow down"), http.StatusTooManyRequests},
		{Internal("boom", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Code, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.StatusCode())
		})
	}
}

func TestFromStorage(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := FromStorage(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), "document")
		ae := As(err)
		assert.Equal(t, KindNotFound, ae.Kind)
		assert.Equal(t, "document not found", ae.Message)
	})

	t.Run("duplicate", func(t *testing.T) {
		ae := As(FromStorage(gorm.ErrDuplicatedKey, "user"))
		assert.Equal(t, "DUPLICATE_ENTRY", ae.Code)
		assert.Equal(t, http.StatusConflict, ae.StatusCode())
	})

	t.Run("typed passes through", func(t *testing.T) {
		orig := Forbidden("nope")
		assert.Same(t, orig, FromStorage(orig, "x"))
	})

	t.Run("other", func(t *testing.T) {
		ae := As(FromStorage(errors.New("syntax error"), "x"))
		assert.Equal(t, "DATABASE_ERROR", ae.Code)
		assert.Equal(t, http.StatusBadRequest, ae.StatusCode())
	})

	assert.NoError(t, FromStorage(nil, "x"))
}

func TestSentinelMatching(t *testing.T) {
	sentinel := Coded(KindConflict, "STALE_STAGE", "stage changed")
	wrapped := fmt.Errorf("transition: %w", sentinel.WithDetails(map[string]string{"current": "2"}))
	assert.ErrorIs(t, wrapped, sentinel)
	assert.NotErrorIs(t, wrapped, Conflict("other"))
}
