// AngelaMos | 2026
// policy_test.go

package access

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/sonda-api/internal/core"
)

const (
	instA = "7b0c5f0e-4d7a-4f55-9d59-3c3a0f0d1a01"
	instB = "7b0c5f0e-4d7a-4f55-9d59-3c3a0f0d1a02"
)

type fakeStore struct {
	facts   map[string]Facts
	grants  map[string][]Grant
	active  map[string]bool
	loadErr error
	loads   int
}

func (f *fakeStore) LoadFacts(_ context.Context, _, installationID string) (*Facts, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	facts, ok := f.facts[installationID]
	if !ok {
		return nil, fmt.Errorf("load facts: %w", core.ErrNotFound)
	}
	return &facts, nil
}

func (f *fakeStore) ListGrants(_ context.Context, installationID string) ([]Grant, error) {
	return f.grants[installationID], nil
}

func (f *fakeStore) AddGrant(_ context.Context, userID, installationID, grantedBy string) (*Grant, error) {
	for _, g := range f.grants[installationID] {
		if g.UserID == userID {
			return &g, nil
		}
	}
	g := Grant{UserID: userID, InstallationID: installationID, GrantedBy: grantedBy}
	f.grants[installationID] = append(f.grants[installationID], g)
	return &g, nil
}

func (f *fakeStore) RemoveGrant(_ context.Context, userID, installationID string) error {
	grants := f.grants[installationID]
	for i, g := range grants {
		if g.UserID == userID {
			f.grants[installationID] = append(grants[:i], grants[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove grant: %w", core.ErrNotFound)
}

func (f *fakeStore) UserActive(_ context.Context, userID string) (bool, error) {
	active, ok := f.active[userID]
	if !ok {
		return false, core.ErrNotFound
	}
	return active, nil
}

func newStore() *fakeStore {
	return &fakeStore{
		facts:  map[string]Facts{},
		grants: map[string][]Grant{},
		active: map[string]bool{},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRuleTruthTable(t *testing.T) {
	rule := DefaultRule()

	tests := []struct {
		name  string
		facts Facts
		want  bool
	}{
		{"creator", Facts{Creator: true}, true},
		{"grantee", Facts{Grant: true}, true},
		{"same branch", Facts{SameBranch: true}, true},
		{"stranger", Facts{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Allow(tt.facts))
		})
	}
}

func TestRuleComposition(t *testing.T) {
	assert.False(t, AnyOf().Allow(Facts{Creator: true}))
	assert.True(t, AllOf().Allow(Facts{}))

	creatorInBranch := AllOf(Creator, SameBranch)
	assert.True(t, creatorInBranch.Allow(Facts{Creator: true, SameBranch: true}))
	assert.False(t, creatorInBranch.Allow(Facts{Creator: true}))
}

func TestRuleSQL(t *testing.T) {
	assert.Equal(t, "i.creator_id = $1", Creator.SQL("i", "$1"))
	assert.Equal(t,
		"EXISTS (SELECT 1 FROM installation_grants g WHERE g.installation_id = i.id AND g.user_id = $1)",
		Granted.SQL("i", "$1"),
	)
	assert.True(t, Granted.Allow(Facts{Grant: true}))
	assert.False(t, Granted.Allow(Facts{Creator: true, SameBranch: true}))
	assert.Equal(t, "FALSE", AnyOf().SQL("i", "$1"))
	assert.Equal(t, "TRUE", AllOf().SQL("i", "$1"))

	assert.Equal(t,
		"(i.creator_id = $2 OR "+
			"EXISTS (SELECT 1 FROM installation_grants g WHERE g.installation_id = i.id AND g.user_id = $2) OR "+
			"EXISTS (SELECT 1 FROM users bu WHERE bu.id = $2 AND bu.branch_id IS NOT NULL AND bu.branch_id = i.branch_id))",
		DefaultRule().SQL("i", "$2"),
	)

	assert.Equal(t,
		"(x.creator_id = $1 AND (x.creator_id = $1 OR FALSE))",
		AllOf(Creator, AnyOf(Creator, AnyOf())).SQL("x", "$1"),
	)
}

func TestAuthorize(t *testing.T) {
	store := newStore()
	store.facts[instA] = Facts{InstallationID: instA, Status: "active", Creator: true}
	store.facts[instB] = Facts{InstallationID: instB, Status: StatusDeleted, Grant: true}
	store.facts["11111111-1111-4111-8111-111111111111"] = Facts{Status: "active"}

	policy := NewPolicy(store, discardLogger())
	ctx := context.Background()

	tests := []struct {
		name   string
		inst   string
		action Action
		want   error
	}{
		{"creator reads", instA, ActionRead, nil},
		{"creator deletes", instA, ActionDelete, nil},
		{"unknown installation", "22222222-2222-4222-8222-222222222222", ActionRead, core.ErrForbidden},
		{"malformed id", "not-a-uuid", ActionRead, core.ErrForbidden},
		{"no relation", "11111111-1111-4111-8111-111111111111", ActionDelete, core.ErrForbidden},
		{"deleted hidden from grantee", instB, ActionRead, core.ErrNotFound},
		{"deleted delete again", instB, ActionDelete, core.ErrNotFound},
		{"restore deleted", instB, ActionRestore, nil},
		{"restore live", instA, ActionRestore, core.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := policy.Authorize(ctx, "user-1", tt.inst, tt.action)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthorizeDoesNotRevealForbiddenDeleted(t *testing.T) {
	store := newStore()
	store.facts[instA] = Facts{InstallationID: instA, Status: StatusDeleted}

	policy := NewPolicy(store, discardLogger())

	_, err := policy.Authorize(context.Background(), "stranger", instA, ActionRead)
	require.ErrorIs(t, err, core.ErrForbidden)
	assert.False(t, errors.Is(err, core.ErrNotFound))
}

func TestAuthorizeMalformedIDSkipsStore(t *testing.T) {
	store := newStore()
	policy := NewPolicy(store, discardLogger())

	_, err := policy.Authorize(context.Background(), "u", "42", ActionRead)
	require.ErrorIs(t, err, core.ErrForbidden)
	assert.Zero(t, store.loads)
}

func TestAuthorizeStorageFailure(t *testing.T) {
	store := newStore()
	store.loadErr = errors.New("connection reset")
	policy := NewPolicy(store, discardLogger())

	_, err := policy.Authorize(context.Background(), "u", instA, ActionRead)
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrForbidden))
	assert.False(t, policy.CanAccess(context.Background(), "u", instA, ActionRead))
}

func TestWithRuleSplitsDelete(t *testing.T) {
	store := newStore()
	store.facts[instA] = Facts{InstallationID: instA, Status: "active", Grant: true}

	policy := NewPolicy(store, discardLogger()).WithRule(ActionDelete, Creator)
	ctx := context.Background()

	assert.True(t, policy.CanAccess(ctx, "grantee", instA, ActionRead))
	assert.False(t, policy.CanAccess(ctx, "grantee", instA, ActionDelete))
	assert.Equal(t, "i.creator_id = $1", policy.Filter(ActionDelete, "i", "$1"))
}

func TestGrantService(t *testing.T) {
	const (
		creator = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
		other   = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
		idle    = "cccccccc-cccc-4ccc-8ccc-cccccccccccc"
	)

	store := newStore()
	store.facts[instA] = Facts{
		InstallationID: instA,
		CreatorID:      creator,
		Status:         "active",
		Creator:        true,
	}
	store.active[other] = true
	store.active[idle] = false

	svc := NewService(NewPolicy(store, discardLogger()), store, discardLogger())
	ctx := context.Background()

	grant, err := svc.GrantAccess(ctx, creator, instA, other)
	require.NoError(t, err)
	assert.Equal(t, creator, grant.GrantedBy)

	_, err = svc.GrantAccess(ctx, creator, instA, other)
	require.NoError(t, err)
	assert.Len(t, store.grants[instA], 1)

	_, err = svc.GrantAccess(ctx, creator, instA, idle)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.GrantAccess(ctx, creator, instA, "dddddddd-dddd-4ddd-8ddd-dddddddddddd")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	err = svc.RevokeAccess(ctx, creator, instA, creator)
	require.ErrorIs(t, err, core.ErrConflict)

	require.NoError(t, svc.RevokeAccess(ctx, creator, instA, other))
	require.ErrorIs(t, svc.RevokeAccess(ctx, creator, instA, other), core.ErrNotFound)
}
