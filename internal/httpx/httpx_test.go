package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kylejryan/insurance-ops/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"policyId": "p1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"policyId":"p1"}`, rec.Body.String())
}

func TestError(t *testing.T) {
	tests := []struct {
		err  error
		code int
		body string
	}{
		{apperr.Validation("reason required"), http.StatusBadRequest, `{"error":"reason required"}`},
		{apperr.New(apperr.KindConflict, "claim.submit", "claim is SUBMITTED"), http.StatusConflict, `{"error":"claim is SUBMITTED"}`},
		{apperr.New(apperr.KindAuthorization, "", "not permitted"), http.StatusForbidden, `{"error":"not permitted"}`},
		{errors.New("dial tcp: refused"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		Error(rec, tt.err)
		assert.Equal(t, tt.code, rec.Code)
		assert.JSONEq(t, tt.body, rec.Body.String())
	}
}

func TestDecode(t *testing.T) {
	type body struct {
		Reason string `json:"reason"`
	}

	var b body
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"fraud review"}`))
	require.NoError(t, Decode(r, &b))
	assert.Equal(t, "fraud review", b.Reason)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, Decode(r, &b))

	for _, raw := range []string{`{"reason":`, `{"other":1}`, `{"reason":"a"} {"reason":"b"}`} {
		r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		assert.ErrorIs(t, Decode(r, &b), apperr.ErrValidation, raw)
	}
}
