package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"yeti/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		excludes string
	}{
		{"mongo uri", "dial mongodb://admin:hunter2@db:27017 failed", "[DATABASE_CONNECTION]", "hunter2"},
		{"file path", "open /etc/yeti/config.yaml: permission denied", "[FILE_PATH]", "/etc/yeti"},
		{"server selection", "query failed (ServerSelectionError: timeout)", "[DATABASE_ERROR]", "ServerSelectionError"},
		{"plain", "Not found", "Not found", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeErrorMessage(tt.input)
			assert.Contains(t, got, tt.contains)
			if tt.excludes != "" {
				assert.NotContains(t, got, tt.excludes)
			}
		})
	}

	long := sanitizeErrorMessage(strings.Repeat("x", 1000))
	assert.Len(t, long, core.MaxErrorMessageLength)
}

func TestWriteServiceError(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.NewValidationError("name", "is required"), http.StatusBadRequest},
		{"invalid query", fmt.Errorf("%w: unknown operator", core.ErrInvalidQuery), http.StatusBadRequest},
		{"not found", fmt.Errorf("group %w", core.ErrNotFound), http.StatusNotFound},
		{"forbidden", core.ErrForbidden, http.StatusForbidden},
		{"unauthenticated", core.ErrUnauthenticated, http.StatusUnauthorized},
		{"other", errors.New("mongodb://u:p@host boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			env.api.writeServiceError(rr, req, tt.err)

			assert.Equal(t, tt.want, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.NotContains(t, rr.Body.String(), "u:p@host")
		})
	}
}

func TestNewPaginationResponse(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		pages int
	}{
		{0, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{10, 0, 1},
	}
	for _, tt := range tests {
		resp := NewPaginationResponse([]string{}, tt.total, 1, tt.limit)
		assert.Equal(t, tt.pages, resp.TotalPages, "total=%d limit=%d", tt.total, tt.limit)
	}
}

func TestParseSearchQuery(t *testing.T) {
	q, err := parseSearchQuery([]byte(`{"filter": {"name": ["a", "b"], "enabled": true, "admins__in": ["5f1b2c3d4e5f6a7b8c9d0e1f"]}, "page": 3, "range": 20, "regex": true}`))
	assert.NoError(t, err)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 20, q.Range)
	assert.True(t, q.Regex)
	assert.Equal(t, true, q.Filter["enabled"])

	q, err = parseSearchQuery([]byte("  "))
	assert.NoError(t, err)
	assert.NotNil(t, q.Filter)

	tooMany := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		tooMany = append(tooMany, fmt.Sprintf(`"f%c%c": "x"`, 'a'+i/26, 'a'+i%26))
	}
	_, err = parseSearchQuery([]byte(`{"filter": {` + strings.Join(tooMany, ",") + `}}`))
	assert.True(t, core.IsValidationError(err))

	_, err = parseSearchQuery([]byte(`{"range": "fifty"}`))
	assert.True(t, core.IsValidationError(err))
}

func TestParseSearchQuery_RejectsHugePage(t *testing.T) {
	_, err := parseSearchQuery([]byte(`{"page": 10000000000000000, "range": 1000}`))
	assert.True(t, core.IsValidationError(err))

	q, err := parseSearchQuery([]byte(`{"page": 1000000}`))
	require.NoError(t, err)
	assert.Equal(t, core.MaxSearchPage, q.Page)
}
