package core

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// ErrorResponse is the standard JSON error body. The Error field carries the
// stable key clients switch on; Status is filled only for tenant-state errors
// where the caller needs the actual status value.
type ErrorResponse struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Status  string              `json:"status,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONMessage writes a simple {message} body.
func JSONMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"message": message})
}

// JSONErrorBody writes a fixed {message, error} body. Used for responses whose
// shape is part of the external contract, like tenant resolution failures.
func JSONErrorBody(w http.ResponseWriter, status int, body ErrorResponse) {
	JSON(w, status, body)
}

// JSONError translates an error into a JSON error response.
// ValidationError renders as 422 with field details, HTTPError uses its own
// status and key, anything else becomes an opaque 500.
func JSONError(w http.ResponseWriter, err error) {
	var valErr ValidationError
	if errors.As(err, &valErr) {
		details := make(map[string][]string, len(valErr))
		maps.Copy(details, valErr)
		JSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Validation failed",
			Error:   "validation_error",
			Errors:  details,
		})
		return
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		JSON(w, httpErr.Code, ErrorResponse{
			Message: http.StatusText(httpErr.Code),
			Error:   httpErr.Key,
		})
		return
	}

	JSON(w, http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
		Error:   ErrInternalServerError.Key,
	})
}
