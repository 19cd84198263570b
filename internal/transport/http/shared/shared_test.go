package shared

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalsvc/internal/transport/http/api"
)

type sampleItem struct {
	ID     string  `json:"id" validate:"required"`
	Weight float64 `json:"weight" validate:"gte=0"`
}

type samplePayload struct {
	Name  string       `json:"name" validate:"required"`
	Items []sampleItem `json:"items" validate:"required,min=1,dive"`
}

func TestValidateReportsJSONFieldPaths(t *testing.T) {
	issues := Validate(&samplePayload{Items: []sampleItem{{ID: "a"}, {Weight: -1}}})

	require.Len(t, issues, 3)
	assert.Equal(t, ValidationIssue{Field: "items[1].id", Reason: "is required"}, issues[0])
	assert.Equal(t, "items[1].weight", issues[1].Field)
	assert.Equal(t, ValidationIssue{Field: "name", Reason: "is required"}, issues[2])
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","items":[{"id":"a"}],"extra":1}`))
	rec := httptest.NewRecorder()

	var payload samplePayload
	assert.False(t, DecodeJSON(rec, req, &payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecodeJSONWritesValidationDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","items":[]}`))
	rec := httptest.NewRecorder()

	var payload samplePayload
	require.False(t, DecodeJSON(rec, req, &payload))

	var env api.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestDecodeJSONAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","items":[{"id":"a","weight":2}]}`))
	rec := httptest.NewRecorder()

	var payload samplePayload
	require.True(t, DecodeJSON(rec, req, &payload))
	assert.Equal(t, 2.0, payload.Items[0].Weight)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, Pagination{Limit: 2, Offset: 1})
	assert.Equal(t, []int{2, 3}, page.Items)
	assert.Equal(t, 5, page.Total)

	page = Paginate(items, Pagination{Limit: 10, Offset: 9})
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestParsePaginationClamps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-3", nil)
	p := ParsePagination(req, 50, 200)
	assert.Equal(t, Pagination{Limit: 200, Offset: 0}, p)
}
