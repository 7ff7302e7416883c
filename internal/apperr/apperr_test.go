package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("create policy: %w", New(KindValidation, "policy.create", "premium must be positive"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "premium must be positive", Message(err))
}

func TestMessageHidesUnclassifiedErrors(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("dial tcp: refused")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestErrorString(t *testing.T) {
	err := Wrap(KindCollaborator, "claims.list", "request failed", errors.New("timeout"))
	assert.Equal(t, "claims.list: request failed: timeout", err.Error())
	assert.ErrorIs(t, err, ErrCollaborator)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindAuthentication: http.StatusUnauthorized,
		KindAuthorization:  http.StatusForbidden,
		KindNotFound:       http.StatusNotFound,
		KindConflict:       http.StatusConflict,
		KindCollaborator:   http.StatusBadGateway,
		KindUnknown:        http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, HTTPStatus(k), k.String())
	}
}
