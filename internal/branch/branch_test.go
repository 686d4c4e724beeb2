// AngelaMos | 2026
// branch_test.go

package branch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/sonda-api/internal/core"
)

type stubRepo struct {
	branches []Branch
	err      error
}

func (s stubRepo) List(context.Context) ([]Branch, error) {
	return s.branches, s.err
}

func passthrough(next http.Handler) http.Handler { return next }

func TestListBranches(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubRepo{branches: []Branch{{ID: "b1", Name: "North", Kind: "branch"}}}).
		RegisterRoutes(r, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/branches", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool     `json:"success"`
		Data    []Branch `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "North", body.Data[0].Name)
}

func TestListBranchesStorageFailure(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubRepo{err: errors.New("boom")}).RegisterRoutes(r, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/branches", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body core.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, core.CodeInternal, body.Error.Code)
}
