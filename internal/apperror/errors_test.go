package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{NotFound("ticket not found"), http.StatusNotFound},
		{Conflict("duplicate"), http.StatusConflict},
		{fmt.Errorf("changing status: %w", ErrInvalidTransition), http.StatusConflict},
		{Forbidden("no"), http.StatusForbidden},
		{Validation("bad"), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		code, ok := StatusCode(tc.err)
		assert.True(t, ok, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}

	_, ok := StatusCode(errors.New("boom"))
	assert.False(t, ok)
}

func TestMessageUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFound("Category not found"))
	assert.Equal(t, "Category not found", Message(err))
	assert.True(t, errors.Is(err, ErrNotFound))
}
