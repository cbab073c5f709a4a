// Package httpjson holds the JSON response helpers shared by all handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"

	"ams/pkg/sentinel"
)

// ErrorBody is the JSON error envelope every handler returns.
type ErrorBody struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// Write serializes v with the given status. Encoding failures are ignored;
// the status line has already been sent.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	Write(w, status, ErrorBody{Message: message})
}

// WriteSentinel translates the shared sentinel errors into their HTTP
// statuses. ErrGone carries the hard-deleted reason so clients can stop
// retrying. Anything unrecognized becomes a 500 with a generic message, the
// detail stays in the server log.
func WriteSentinel(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sentinel.ErrGone):
		Write(w, http.StatusGone, ErrorBody{
			Message: "target was permanently deleted and cannot be restored",
			Reason:  "hard_deleted",
		})
	case errors.Is(err, sentinel.ErrInvalidState):
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// Decode parses the request body as JSON into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
