package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalsvc/internal/shared/apperror"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestFailErrorUsesAppErrorStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	notFound := apperror.NotFound("Evaluation period not found")

	FailError(rec, fmt.Errorf("load: %w", notFound), "req-1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperror.CodeNotFound, env.Error.Code)
	assert.Equal(t, "Evaluation period not found", env.Error.Message)
	assert.Equal(t, "req-1", env.RequestID)
}

func TestFailErrorKeepsInvalidInputContext(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("item 2: %w", apperror.InvalidInput("weight must not be negative"))

	FailError(rec, err, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "item 2: weight must not be negative", env.Error.Message)
}

func TestFailErrorHidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	FailError(rec, errors.New("connection refused"), "req-2")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, apperror.CodeInternalError, env.Error.Code)
	assert.NotContains(t, env.Error.Message, "connection refused")
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()

	Created(rec, map[string]string{"id": "a1"}, "req-3")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
}
