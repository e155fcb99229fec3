package core_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/poskit/core"
)

func TestJSONError(t *testing.T) {
	t.Parallel()

	t.Run("validation error renders 422 with details", func(t *testing.T) {
		t.Parallel()

		valErr := core.NewValidationError()
		valErr.Add("email", "The email field is required.")

		rec := httptest.NewRecorder()
		core.JSONError(rec, valErr)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body core.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "validation_error", body.Error)
		assert.Equal(t, []string{"The email field is required."}, body.Errors["email"])
	})

	t.Run("joined validation error still detected", func(t *testing.T) {
		t.Parallel()

		valErr := core.NewValidationError()
		valErr.Add("slug", "The slug has already been taken.")

		rec := httptest.NewRecorder()
		core.JSONError(rec, errors.Join(valErr, errors.New("duplicate key")))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("http error uses its status and key", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		core.JSONError(rec, errors.Join(core.ErrNotFound, errors.New("row missing")))

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body core.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_found", body.Error)
	})

	t.Run("unknown error is an opaque 500", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		core.JSONError(rec, errors.New("pg: connection refused to 10.0.0.5"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	})
}

func TestJSONErrorBody(t *testing.T) {
	t.Parallel()

	t.Run("omits empty optional fields", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		core.JSONErrorBody(rec, http.StatusNotFound, core.ErrorResponse{
			Message: "Tenant not found.",
			Error:   "invalid_tenant",
		})

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotContains(t, body, "status")
		assert.NotContains(t, body, "errors")
	})

	t.Run("includes status when set", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		core.JSONErrorBody(rec, http.StatusForbidden, core.ErrorResponse{
			Message: "Tenant account is not active.",
			Error:   "tenant_inactive",
			Status:  "suspended",
		})

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "suspended", body["status"])
	})
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	valErr := core.NewValidationError()
	assert.True(t, valErr.IsEmpty())

	valErr.Add("name", "The name field is required.")
	assert.False(t, valErr.IsEmpty())
	assert.True(t, valErr.Has("name"))
	assert.False(t, valErr.Has("email"))
	assert.Equal(t, "The name field is required.", valErr.Get("name"))
	assert.Contains(t, valErr.Error(), "name")
}
