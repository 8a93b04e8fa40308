// Package transport contains the HTTP router, middleware chain, and the
// request handlers of the gridd API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/gridcore/model"
)

// httpStatus maps an ErrorEnvelope code to its response status. Unknown
// codes are server errors.
func httpStatus(code string) int {
	switch code {
	case model.ErrBadRequest:
		return http.StatusBadRequest
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrValidationError:
		return http.StatusUnprocessableEntity
	case model.ErrBackendUnavailable:
		return http.StatusBadGateway
	case model.ErrBackendTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error *model.ErrorEnvelope `json:"error"`
}

// WriteJSON writes body as JSON with the given status. A nil body sends
// headers only.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes err as {"error": envelope}. Errors that do not wrap an
// ErrorEnvelope are reported as INTERNAL_ERROR so no internal detail leaks.
func WriteError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}
	WriteJSON(w, httpStatus(ee.Code), errorResponse{Error: ee})
}

// WriteNotFound writes a NOT_FOUND error.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteBadRequest writes a BAD_REQUEST error.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewBadRequestError(msg))
}

// WriteValidationError writes a VALIDATION_ERROR carrying details.
func WriteValidationError(w http.ResponseWriter, details []model.FieldError) {
	WriteError(w, model.NewValidationError(details))
}
