// Package httpx provides helper functions for reading requests and writing
// JSON responses.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kylejryan/insurance-ops/internal/apperr"
)

// maxBody bounds request bodies; the API never carries file bytes.
const maxBody = 1 << 20

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Error writes err as a JSON error response, choosing the status from its kind.
// Unclassified errors are reported as a generic internal error.
func Error(w http.ResponseWriter, err error) {
	JSON(w, apperr.HTTPStatus(apperr.KindOf(err)), ErrorBody{Error: apperr.Message(err)})
}

// Decode reads a JSON body into v. Unknown fields and malformed JSON are
// validation errors. An empty body leaves v untouched.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.KindValidation, "", "invalid JSON body", err)
	}
	if dec.More() {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}
