package issuance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrpass/entity"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	tokens map[string]*entity.Token
	saved  []*entity.Token
}

func newFakeStore() *fakeStore {
	return &fakeStore{tokens: map[string]*entity.Token{}}
}

func (f *fakeStore) SaveToken(_ context.Context, token *entity.Token) error {
	cp := *token
	f.tokens[token.Id] = &cp
	f.saved = append(f.saved, &cp)
	return nil
}

func (f *fakeStore) Token(_ context.Context, id string) (*entity.Token, error) {
	t, ok := f.tokens[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ActiveTokensForScope(_ context.Context, scopeId string) ([]*entity.Token, error) {
	var out []*entity.Token
	for _, t := range f.tokens {
		if t.Active && t.ScopeId == scopeId {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) DeactivateToken(_ context.Context, id string) error {
	if t, ok := f.tokens[id]; ok {
		t.Active = false
	}
	return nil
}

type fakeEncoder struct {
	err error
}

func (f *fakeEncoder) Encode(token *entity.Token) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "qr:" + token.Id, nil
}

type fakeDirectory struct {
	scopes map[string]*entity.Scope
}

func (f *fakeDirectory) Scope(_ context.Context, id string) (*entity.Scope, error) {
	s, ok := f.scopes[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return s, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func admin() *entity.Identity {
	return &entity.Identity{
		UserId:          "admin-1",
		Role:            entity.RoleAdmin,
		OrganizationIds: []string{"org-1"},
	}
}

func newService(store *fakeStore, dir Directory, policy Policy) *Service {
	return New(store, &fakeEncoder{}, dir, policy, discard()).
		WithNow(func() time.Time { return testNow })
}

func TestIssueDefaults(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, Policy{DefaultValidityHours: 2})

	issued, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-1"}, admin())
	require.NoError(t, err)
	require.NotNil(t, issued)

	token := issued.Token
	assert.NotEmpty(t, token.Id)
	assert.NotEmpty(t, token.Nonce)
	assert.NotEqual(t, token.Id, token.Nonce)
	assert.Equal(t, "org-1", token.ScopeId)
	assert.Equal(t, "admin-1", token.IssuerId)
	assert.True(t, token.Active)
	assert.Equal(t, testNow, token.ValidFrom)
	assert.Equal(t, testNow.Add(2*time.Hour), token.ValidUntil)
	assert.Equal(t, int64(0), token.MaxScans)
	assert.Equal(t, entity.DuplicatePerToken, token.DuplicatePolicy)
	assert.Equal(t, "qr:"+token.Id, issued.QrPayload)
	require.Len(t, store.saved, 1)
}

func TestIssueExplicitWindow(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, Policy{DefaultValidityHours: 1})

	from := testNow.Add(time.Hour)
	until := testNow.Add(3 * time.Hour)
	issued, err := svc.Issue(context.Background(), &entity.IssueRequest{
		ScopeId:    "org-1",
		ValidFrom:  from,
		ValidUntil: until,
	}, admin())
	require.NoError(t, err)
	assert.Equal(t, from, issued.Token.ValidFrom)
	assert.Equal(t, until, issued.Token.ValidUntil)
}

func TestIssueInvalidWindow(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, Policy{DefaultValidityHours: 1})

	_, err := svc.Issue(context.Background(), &entity.IssueRequest{
		ScopeId:    "org-1",
		ValidFrom:  testNow.Add(2 * time.Hour),
		ValidUntil: testNow.Add(time.Hour),
	}, admin())
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrInvalidWindow))
	assert.Empty(t, store.saved)
}

func TestIssueUnknownScope(t *testing.T) {
	store := newFakeStore()
	dir := &fakeDirectory{scopes: map[string]*entity.Scope{
		"org-1": {Id: "org-1"},
	}}
	svc := newService(store, dir, Policy{DefaultValidityHours: 1})

	_, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-404"}, admin())
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUnknownScope))

	_, err = svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-1"}, admin())
	require.NoError(t, err)
}

func TestIssueSingleActivePerScope(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, Policy{DefaultValidityHours: 1, SingleActivePerScope: true})

	first, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-1"}, admin())
	require.NoError(t, err)
	other, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-2"}, admin())
	require.NoError(t, err)

	second, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-1"}, admin())
	require.NoError(t, err)

	retired, err := store.Token(context.Background(), first.Token.Id)
	require.NoError(t, err)
	assert.False(t, retired.Active, "previous token of the scope must be retired")

	current, err := store.Token(context.Background(), second.Token.Id)
	require.NoError(t, err)
	assert.True(t, current.Active)

	// other scope is untouched
	untouched, err := store.Token(context.Background(), other.Token.Id)
	require.NoError(t, err)
	assert.True(t, untouched.Active)
}

func TestIssueDuplicatePolicyFallback(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, Policy{
		DefaultValidityHours: 1,
		DuplicatePolicy:      entity.DuplicatePerScopeDay,
	})

	issued, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-1"}, admin())
	require.NoError(t, err)
	assert.Equal(t, entity.DuplicatePerScopeDay, issued.Token.DuplicatePolicy)

	issued, err = svc.Issue(context.Background(), &entity.IssueRequest{
		ScopeId:         "org-1",
		DuplicatePolicy: entity.DuplicatePerToken,
	}, admin())
	require.NoError(t, err)
	assert.Equal(t, entity.DuplicatePerToken, issued.Token.DuplicatePolicy)
}

func TestIssueEncodeFailure(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeEncoder{err: errors.New("boom")}, nil, Policy{DefaultValidityHours: 1}, discard()).
		WithNow(func() time.Time { return testNow })

	_, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-1"}, admin())
	require.Error(t, err)
	assert.Empty(t, store.saved, "nothing persisted when encoding fails")
}

func TestDeactivate(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, Policy{DefaultValidityHours: 1})

	issued, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-1"}, admin())
	require.NoError(t, err)
	id := issued.Token.Id

	t.Run("stranger is refused", func(t *testing.T) {
		caller := &entity.Identity{UserId: "member-9", Role: entity.RoleMember}
		err := svc.Deactivate(context.Background(), id, caller)
		require.Error(t, err)
		assert.True(t, errors.Is(err, entity.ErrNotAllowed))
	})

	t.Run("issuer succeeds", func(t *testing.T) {
		err := svc.Deactivate(context.Background(), id, admin())
		require.NoError(t, err)
		token, err := store.Token(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, token.Active)
	})

	t.Run("idempotent when already inactive", func(t *testing.T) {
		err := svc.Deactivate(context.Background(), id, admin())
		require.NoError(t, err)
	})

	t.Run("admin who is not the issuer succeeds", func(t *testing.T) {
		other, err := svc.Issue(context.Background(), &entity.IssueRequest{ScopeId: "org-1"}, admin())
		require.NoError(t, err)
		caller := &entity.Identity{UserId: "admin-2", Role: entity.RoleAdmin, OrganizationIds: []string{"org-1"}}
		require.NoError(t, svc.Deactivate(context.Background(), other.Token.Id, caller))
	})

	t.Run("unknown token", func(t *testing.T) {
		err := svc.Deactivate(context.Background(), "missing", admin())
		require.Error(t, err)
		assert.True(t, errors.Is(err, entity.ErrNotFound))
	})
}
