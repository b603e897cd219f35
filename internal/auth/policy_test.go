package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository/memory"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// =============================================================================
// Test Helpers
// =============================================================================

type failingSessionStore struct{}

func (failingSessionStore) Revoke(context.Context, string, time.Duration) error {
	return errors.New("redis down")
}

func (failingSessionStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func setupPolicy(t *testing.T) (*Policy, *TokenManager, *memory.Store, *RedisSessionStore) {
	t.Helper()
	client, _ := setupTestRedis(t)
	sessions := NewRedisSessionStore(client)
	store := memory.NewStore()
	tokens := NewTokenManager(testSecret, time.Hour)
	return NewPolicy(tokens, sessions, store.Users(), nil), tokens, store, sessions
}

func createUser(t *testing.T, store *memory.Store, email string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{Name: email, Email: email, PasswordHash: "x", Role: role}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// Authenticate
// =============================================================================

func TestAuthenticate(t *testing.T) {
	policy, tokens, store, _ := setupPolicy(t)
	user := createUser(t, store, "ann@x.com", domain.RoleUser)

	token, issued, err := tokens.Issue(user.Identity())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	session := policy.Authenticate(context.Background(), token)
	if session == nil {
		t.Fatal("Authenticate() = nil, want session")
	}
	if session.UserID != user.ID || session.Role != domain.RoleUser || session.ID != issued.ID {
		t.Errorf("Authenticate() = %+v", session)
	}
}

func TestAuthenticateFailsClosed(t *testing.T) {
	policy, tokens, store, sessions := setupPolicy(t)
	user := createUser(t, store, "ann@x.com", domain.RoleUser)
	token, issued, _ := tokens.Issue(user.Identity())
	ctx := context.Background()

	if policy.Authenticate(ctx, "") != nil {
		t.Error("empty token should not authenticate")
	}
	if policy.Authenticate(ctx, "garbage") != nil {
		t.Error("malformed token should not authenticate")
	}

	ghost, _, _ := tokens.Issue(domain.Identity{ID: 999, Role: domain.RoleAdmin})
	if policy.Authenticate(ctx, ghost) != nil {
		t.Error("token for unknown user should not authenticate")
	}

	_ = sessions.Revoke(ctx, issued.ID, time.Minute)
	if policy.Authenticate(ctx, token) != nil {
		t.Error("revoked session should not authenticate")
	}

	var nilPolicy *Policy
	if nilPolicy.Authenticate(ctx, token) != nil {
		t.Error("nil policy should not authenticate")
	}
}

func TestAuthenticateDeniesWhenSessionStoreFails(t *testing.T) {
	store := memory.NewStore()
	tokens := NewTokenManager(testSecret, time.Hour)
	policy := NewPolicy(tokens, failingSessionStore{}, store.Users(), nil)
	user := createUser(t, store, "ann@x.com", domain.RoleUser)
	token, _, _ := tokens.Issue(user.Identity())

	if policy.Authenticate(context.Background(), token) != nil {
		t.Error("Authenticate() should fail closed when revocations cannot be checked")
	}
}

func TestAuthenticateUsesCurrentRole(t *testing.T) {
	policy, tokens, store, _ := setupPolicy(t)
	user := createUser(t, store, "ann@x.com", domain.RoleUser)
	token, _, _ := tokens.Issue(user.Identity())

	user.Role = domain.RoleAdmin
	_ = store.Users().Update(context.Background(), user)

	session := policy.Authenticate(context.Background(), token)
	if session == nil || session.Role != domain.RoleAdmin {
		t.Fatalf("Authenticate() role = %v, want ADMIN from the stored record", session)
	}
}

// =============================================================================
// Checks and guards
// =============================================================================

func TestRequireRole(t *testing.T) {
	policy := NewPolicy(nil, nil, nil, nil)
	admin := &domain.Session{UserID: 1, Role: domain.RoleAdmin}
	user := &domain.Session{UserID: 2, Role: domain.RoleUser}

	tests := []struct {
		name    string
		session *domain.Session
		role    domain.Role
		want    bool
	}{
		{"admin on admin route", admin, domain.RoleAdmin, true},
		{"user on admin route", user, domain.RoleAdmin, false},
		{"admin on user-only check", admin, domain.RoleUser, false},
		{"user on user check", user, domain.RoleUser, true},
		{"no session", nil, domain.RoleUser, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.RequireRole(tt.session, tt.role); got != tt.want {
				t.Errorf("RequireRole() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequireOwnership(t *testing.T) {
	policy := NewPolicy(nil, nil, nil, nil)
	admin := &domain.Session{UserID: 1, Role: domain.RoleAdmin}

	if !policy.RequireOwnership(admin, 1) {
		t.Error("owner should pass")
	}
	if policy.RequireOwnership(admin, 2) {
		t.Error("admin role must not grant access to another user's resources")
	}
	if policy.RequireOwnership(nil, 1) {
		t.Error("no session should fail")
	}
}

func TestForbidSelfRoleChange(t *testing.T) {
	policy := NewPolicy(nil, nil, nil, nil)
	admin := &domain.Session{UserID: 1, Role: domain.RoleAdmin}

	tests := []struct {
		name   string
		target int64
		update domain.UserUpdate
		want   bool
	}{
		{"own role to other value", 1, domain.UserUpdate{Role: ptr(domain.RoleUser)}, true},
		{"own role to same value", 1, domain.UserUpdate{Role: ptr(domain.RoleAdmin)}, true},
		{"own name only", 1, domain.UserUpdate{Name: ptr("New")}, false},
		{"other user's role", 2, domain.UserUpdate{Role: ptr(domain.RoleAdmin)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ForbidSelfRoleChange(admin, tt.target, tt.update); got != tt.want {
				t.Errorf("ForbidSelfRoleChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestForbidSelfDeletion(t *testing.T) {
	policy := NewPolicy(nil, nil, nil, nil)
	admin := &domain.Session{UserID: 1, Role: domain.RoleAdmin}

	if !policy.ForbidSelfDeletion(admin, 1) {
		t.Error("self deletion should be forbidden")
	}
	if policy.ForbidSelfDeletion(admin, 2) {
		t.Error("deleting another user should not trip the guard")
	}
}

func TestDecisions(t *testing.T) {
	policy := NewPolicy(nil, nil, nil, nil)
	user := &domain.Session{UserID: 2, Role: domain.RoleUser}

	if d := policy.AuthorizeRole(nil, domain.RoleAdmin); d != DenyUnauthenticated {
		t.Errorf("AuthorizeRole(nil) = %v, want deny_unauthenticated", d)
	}
	if d := policy.AuthorizeRole(user, domain.RoleAdmin); d != DenyForbidden {
		t.Errorf("AuthorizeRole(user) = %v, want deny_forbidden", d)
	}
	if d := policy.AuthorizeOwner(user, 2); d != Allow {
		t.Errorf("AuthorizeOwner(own) = %v, want allow", d)
	}
	if d := policy.AuthorizeOwner(user, 3); d != DenyForbidden {
		t.Errorf("AuthorizeOwner(other) = %v, want deny_forbidden", d)
	}

	if Allow.Err("x") != nil {
		t.Error("Allow.Err() should be nil")
	}
	if !apperrors.IsCode(DenyUnauthenticated.Err("x"), apperrors.CodeUnauthenticated) {
		t.Error("DenyUnauthenticated should map to UNAUTHENTICATED")
	}
	if !apperrors.IsCode(DenyForbidden.Err("x"), apperrors.CodeForbidden) {
		t.Error("DenyForbidden should map to FORBIDDEN")
	}
}
