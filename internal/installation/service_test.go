// AngelaMos | 2026
// service_test.go

package installation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/core"
	"github.com/aquasense/sonda-api/internal/middleware"
)

const (
	userA   = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	userB   = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
	userC   = "cccccccc-cccc-4ccc-8ccc-cccccccccccc"
	branchX = "11111111-1111-4111-8111-111111111111"
	branchY = "22222222-2222-4222-8222-222222222222"
)

// world is an in-memory store serving both the repository and the access
// facts, so the real policy runs against it.
type world struct {
	installations map[string]*Installation
	grants        map[string]map[string]bool
	branches      map[string]*string
	failCreate    error
}

func newWorld() *world {
	return &world{
		installations: map[string]*Installation{},
		grants:        map[string]map[string]bool{},
		branches:      map[string]*string{},
	}
}

func ptr(s string) *string { return &s }

func (w *world) LoadFacts(_ context.Context, userID, installationID string) (*access.Facts, error) {
	inst, ok := w.installations[installationID]
	if !ok {
		return nil, fmt.Errorf("load facts: %w", core.ErrNotFound)
	}

	userBranch := w.branches[userID]
	return &access.Facts{
		InstallationID: inst.ID,
		CreatorID:      inst.CreatorID,
		BranchID:       inst.BranchID,
		Status:         inst.Status,
		Creator:        inst.CreatorID == userID,
		Grant:          w.grants[inst.ID][userID],
		SameBranch: userBranch != nil && inst.BranchID != nil &&
			*userBranch == *inst.BranchID,
	}, nil
}

func (w *world) List(ctx context.Context, userID, _ string) ([]Installation, error) {
	rule := access.DefaultRule()
	items := []Installation{}
	for id, inst := range w.installations {
		if inst.Status == StatusDeleted {
			continue
		}
		facts, _ := w.LoadFacts(ctx, userID, id)
		if rule.Allow(*facts) {
			items = append(items, *inst)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (w *world) Create(_ context.Context, inst *Installation) error {
	if w.failCreate != nil {
		return w.failCreate
	}
	copied := *inst
	w.installations[inst.ID] = &copied
	w.grants[inst.ID] = map[string]bool{inst.CreatorID: true}
	return nil
}

func (w *world) GetByID(_ context.Context, id string) (*Installation, error) {
	inst, ok := w.installations[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *inst
	return &copied, nil
}

func (w *world) Update(_ context.Context, inst *Installation) error {
	current, ok := w.installations[inst.ID]
	if !ok || current.Status == StatusDeleted {
		return core.ErrNotFound
	}
	copied := *inst
	w.installations[inst.ID] = &copied
	return nil
}

func (w *world) SoftDelete(_ context.Context, id string) error {
	inst, ok := w.installations[id]
	if !ok || inst.Status == StatusDeleted {
		return core.ErrNotFound
	}
	inst.Status = StatusDeleted
	return nil
}

func (w *world) Restore(_ context.Context, id string) error {
	inst, ok := w.installations[id]
	if !ok || inst.Status != StatusDeleted {
		return core.ErrConflict
	}
	inst.Status = StatusActive
	return nil
}

func (w *world) UserBranch(_ context.Context, userID string) (*string, error) {
	return w.branches[userID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(w *world) (*Service, *access.Policy) {
	policy := access.NewPolicy(w, discardLogger())
	return NewService(w, policy, discardLogger()), policy
}

func TestCreateGrantsCreatorImmediately(t *testing.T) {
	w := newWorld()
	svc, policy := newTestService(w)
	ctx := context.Background()

	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: "  Pond 1  "})
	require.NoError(t, err)

	assert.Equal(t, "Pond 1", inst.Name)
	assert.Equal(t, StatusActive, inst.Status)
	assert.Equal(t, UsageAquaculture, inst.Usage)
	assert.True(t, policy.CanAccess(ctx, userA, inst.ID, access.ActionRead))

	items, err := svc.List(ctx, userA)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Pond 1", items[0].Name)
}

func TestCreateValidation(t *testing.T) {
	w := newWorld()
	w.branches[userA] = ptr(branchX)
	svc, _ := newTestService(w)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"blank name", CreateInput{UserID: userA, Name: "   "}},
		{"name too long", CreateInput{UserID: userA, Name: strings.Repeat("n", 151)}},
		{"foreign branch", CreateInput{UserID: userA, Name: "Pond", BranchID: ptr(branchY)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			require.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}

	assert.Empty(t, w.installations)
}

func TestNameLengthCountsCharacters(t *testing.T) {
	w := newWorld()
	w.branches[userA] = ptr(branchX)
	svc, _ := newTestService(w)
	ctx := context.Background()

	accented := strings.Repeat("ñ", maxNameLength)
	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: accented})
	require.NoError(t, err)
	assert.Equal(t, accented, inst.Name)

	_, err = svc.Create(ctx, CreateInput{UserID: userA, Name: accented + "ñ"})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	renamed := "Estanque " + strings.Repeat("ñ", 100)
	updated, err := svc.Update(ctx, userA, inst.ID, UpdateInstallationRequest{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, renamed, updated.Name)
}

func TestUpdateRejectsBadNameBeforeAccessCheck(t *testing.T) {
	w := newWorld()
	svc, _ := newTestService(w)
	ctx := context.Background()

	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: "Pond"})
	require.NoError(t, err)

	blank := "  "
	_, err = svc.Update(ctx, userB, inst.ID, UpdateInstallationRequest{Name: &blank})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	valid := "Renamed"
	_, err = svc.Update(ctx, userB, inst.ID, UpdateInstallationRequest{Name: &valid})
	require.ErrorIs(t, err, core.ErrForbidden)
}

func TestCreateBranchResolution(t *testing.T) {
	w := newWorld()
	w.branches[userA] = ptr(branchX)
	svc, _ := newTestService(w)
	ctx := context.Background()

	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: "Default"})
	require.NoError(t, err)
	require.NotNil(t, inst.BranchID)
	assert.Equal(t, branchX, *inst.BranchID)

	inst, err = svc.Create(ctx, CreateInput{
		UserID:    userA,
		ActorRole: middleware.RoleAccountAdmin,
		Name:      "Elsewhere",
		BranchID:  ptr(branchY),
	})
	require.NoError(t, err)
	assert.Equal(t, branchY, *inst.BranchID)
}

func TestCreateFailureLeavesNothing(t *testing.T) {
	w := newWorld()
	w.failCreate = errors.New("insert grant: connection reset")
	svc, _ := newTestService(w)

	_, err := svc.Create(context.Background(), CreateInput{UserID: userA, Name: "Pond"})
	require.Error(t, err)
	assert.Empty(t, w.installations)
	assert.Empty(t, w.grants)
}

func TestBranchTransitivity(t *testing.T) {
	w := newWorld()
	w.branches[userA] = ptr(branchX)
	w.branches[userB] = ptr(branchX)
	w.branches[userC] = ptr(branchY)
	svc, policy := newTestService(w)
	ctx := context.Background()

	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: "Shared"})
	require.NoError(t, err)

	assert.True(t, policy.CanAccess(ctx, userB, inst.ID, access.ActionRead))
	assert.False(t, policy.CanAccess(ctx, userC, inst.ID, access.ActionRead))
}

func TestNoBranchNoGrantDenied(t *testing.T) {
	w := newWorld()
	svc, policy := newTestService(w)
	ctx := context.Background()

	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: "Private"})
	require.NoError(t, err)
	assert.Nil(t, inst.BranchID)

	assert.False(t, policy.CanAccess(ctx, userB, inst.ID, access.ActionRead))

	items, err := svc.List(ctx, userB)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListingNeverLeaks(t *testing.T) {
	w := newWorld()
	w.branches[userA] = ptr(branchX)
	w.branches[userB] = ptr(branchY)
	svc, policy := newTestService(w)
	ctx := context.Background()

	for _, seed := range []struct{ user, name string }{
		{userA, "Alpha"}, {userA, "Beta"}, {userB, "Gamma"}, {userC, "Delta"},
	} {
		_, err := svc.Create(ctx, CreateInput{UserID: seed.user, Name: seed.name})
		require.NoError(t, err)
	}

	for _, user := range []string{userA, userB, userC} {
		items, err := svc.List(ctx, user)
		require.NoError(t, err)
		for _, item := range items {
			assert.True(t, policy.CanAccess(ctx, user, item.ID, access.ActionRead),
				"user %s sees %s", user, item.Name)
		}
	}

	items, err := svc.List(ctx, userA)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Alpha", items[0].Name)
	assert.Equal(t, "Beta", items[1].Name)
}

func TestDeleteByStrangerIsForbidden(t *testing.T) {
	w := newWorld()
	svc, _ := newTestService(w)
	ctx := context.Background()

	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: "Pond"})
	require.NoError(t, err)

	err = svc.Delete(ctx, userB, inst.ID)
	require.ErrorIs(t, err, core.ErrForbidden)
	assert.Equal(t, StatusActive, w.installations[inst.ID].Status)
}

func TestSoftDeleteThenRestore(t *testing.T) {
	w := newWorld()
	svc, _ := newTestService(w)
	ctx := context.Background()

	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: "Pond"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, userA, inst.ID))
	assert.Equal(t, StatusDeleted, w.installations[inst.ID].Status)

	require.ErrorIs(t, svc.Delete(ctx, userA, inst.ID), core.ErrNotFound)

	_, err = svc.Get(ctx, userA, inst.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	items, err := svc.List(ctx, userA)
	require.NoError(t, err)
	assert.Empty(t, items)

	restored, err := svc.Restore(ctx, userA, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, restored.Status)

	_, err = svc.Restore(ctx, userA, inst.ID)
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestUpdatePartial(t *testing.T) {
	w := newWorld()
	svc, _ := newTestService(w)
	ctx := context.Background()

	inst, err := svc.Create(ctx, CreateInput{UserID: userA, Name: "Pond", Description: "north"})
	require.NoError(t, err)

	status := StatusInactive
	updated, err := svc.Update(ctx, userA, inst.ID, UpdateInstallationRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Pond", updated.Name)
	assert.Equal(t, "north", updated.Description)
	assert.Equal(t, StatusInactive, updated.Status)

	blank := " "
	_, err = svc.Update(ctx, userA, inst.ID, UpdateInstallationRequest{Name: &blank})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.Update(ctx, userB, inst.ID, UpdateInstallationRequest{Status: &status})
	require.ErrorIs(t, err, core.ErrForbidden)
}

func serve(h *Handler, userID, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{
				UserID: userID,
				Role:   middleware.RoleOperator,
			})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r, func(next http.Handler) http.Handler { return next })

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndList(t *testing.T) {
	w := newWorld()
	svc, _ := newTestService(w)
	h := NewHandler(svc)

	rec := serve(h, userA, http.MethodPost, "/installations",
		`{"name":"Pond 1","installed_at":"2025-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data InstallationResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "2025-03-01", created.Data.InstalledAt)
	assert.Equal(t, userA, created.Data.CreatorID)

	rec = serve(h, userA, http.MethodGet, "/installations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Data []InstallationResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, "Pond 1", listed.Data[0].Name)
	assert.Equal(t, StatusActive, listed.Data[0].Status)
}

func TestHandlerErrors(t *testing.T) {
	w := newWorld()
	svc, _ := newTestService(w)
	h := NewHandler(svc)

	inst, err := svc.Create(context.Background(), CreateInput{UserID: userA, Name: "Pond"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		user   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"missing name", userA, http.MethodPost, "/installations", `{}`, 400, core.CodeValidation},
		{"bad usage", userA, http.MethodPost, "/installations", `{"name":"x","usage":"mining"}`, 400, core.CodeValidation},
		{"bad body", userA, http.MethodPost, "/installations", `{`, 400, core.CodeValidation},
		{"stranger get", userB, http.MethodGet, "/installations/" + inst.ID, "", 403, core.CodeForbidden},
		{"malformed id", userA, http.MethodGet, "/installations/42", "", 403, core.CodeForbidden},
		{"stranger delete", userB, http.MethodDelete, "/installations/" + inst.ID, "", 403, core.CodeForbidden},
		{"restore live", userA, http.MethodPost, "/installations/" + inst.ID + "/restore", "", 409, core.CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.user, tt.method, tt.target, tt.body)
			require.Equal(t, tt.status, rec.Code)

			var resp core.Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
