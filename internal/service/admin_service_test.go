package service

import (
	"context"
	"testing"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func newAdminService(env *testEnv) *AdminService {
	return NewAdminService(env.cfg, AdminDependencies{
		UserRepo:   env.store.Users(),
		Policy:     env.policy,
		Dispatcher: env.dispatcher,
	})
}

// =============================================================================
// Role gate
// =============================================================================

func TestAdminOperationsRequireAdmin(t *testing.T) {
	env := setupEnv(t)
	ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	bob := env.createUser(t, "Bob", "bob@x.com", "secret1", domain.RoleUser)
	svc := newAdminService(env)
	ctx := context.Background()

	_, err := svc.ListUsers(ctx, sessionFor(ann), domain.UserFilter{})
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = svc.GetUser(ctx, sessionFor(ann), bob.ID)
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = svc.UpdateUser(ctx, sessionFor(ann), bob.ID, domain.UserUpdate{Role: ptr(domain.RoleAdmin)})
	assertCode(t, err, apperrors.CodeForbidden)
	assertCode(t, svc.DeleteUser(ctx, sessionFor(ann), bob.ID), apperrors.CodeForbidden)

	// Unauthenticated wins over a missing resource.
	_, err = svc.GetUser(ctx, nil, 9999)
	assertCode(t, err, apperrors.CodeUnauthenticated)
}

func TestListUsersFiltersByRole(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
	env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	env.createUser(t, "Bob", "bob@x.com", "secret1", domain.RoleUser)
	svc := newAdminService(env)
	ctx := context.Background()

	all, err := svc.ListUsers(ctx, sessionFor(admin), domain.UserFilter{})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListUsers() = %d users, want 3", len(all))
	}

	users, _ := svc.ListUsers(ctx, sessionFor(admin), domain.UserFilter{Role: ptr(domain.RoleUser)})
	if len(users) != 2 {
		t.Errorf("ListUsers(role=USER) = %d users, want 2", len(users))
	}

	_, err = svc.ListUsers(ctx, sessionFor(admin), domain.UserFilter{Role: ptr(domain.Role("OWNER"))})
	assertCode(t, err, apperrors.CodeValidationFailed)
}

// =============================================================================
// UpdateUser
// =============================================================================

func TestAdminPromotesAnn(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
	ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	svc := newAdminService(env)
	ctx := context.Background()

	updated, err := svc.UpdateUser(ctx, sessionFor(admin), ann.ID, domain.UserUpdate{Role: ptr(domain.RoleAdmin)})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if updated.Role != domain.RoleAdmin {
		t.Errorf("Role = %s, want ADMIN", updated.Role)
	}

	changes := env.eventsOf(events.EventUserRoleChanged)
	if len(changes) != 1 {
		t.Fatalf("user_role_changed events = %d, want 1", len(changes))
	}
	payload := changes[0].Payload.(events.UserRoleChangedPayload)
	if payload.OldRole != domain.RoleUser || payload.NewRole != domain.RoleAdmin {
		t.Errorf("payload = %+v", payload)
	}

	// The same call aimed at the admin's own account is blocked.
	_, err = svc.UpdateUser(ctx, sessionFor(admin), admin.ID, domain.UserUpdate{Role: ptr(domain.RoleUser)})
	assertCode(t, err, apperrors.CodeForbidden)
	stored, _ := env.store.Users().GetByID(ctx, admin.ID)
	if stored.Role != domain.RoleAdmin {
		t.Error("admin's own role must be unchanged")
	}
}

func TestAdminSelfRoleChangeBlockedForSameValue(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
	svc := newAdminService(env)

	_, err := svc.UpdateUser(context.Background(), sessionFor(admin), admin.ID, domain.UserUpdate{
		Name: ptr("New Name"),
		Role: ptr(domain.RoleAdmin),
	})
	assertCode(t, err, apperrors.CodeForbidden)

	stored, _ := env.store.Users().GetByID(context.Background(), admin.ID)
	if stored.Name != "Root" {
		t.Error("blocked update must not apply other fields")
	}
}

func TestAdminUpdatesOwnNameWithoutRole(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)

	updated, err := newAdminService(env).UpdateUser(context.Background(), sessionFor(admin), admin.ID, domain.UserUpdate{Name: ptr("Rooty")})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if updated.Name != "Rooty" {
		t.Errorf("Name = %q, want Rooty", updated.Name)
	}
}

func TestAdminUpdateRejections(t *testing.T) {
	tests := []struct {
		name   string
		update domain.UserUpdate
		target int64
		want   string
	}{
		{"empty", domain.UserUpdate{}, 0, apperrors.CodeNothingToUpdate},
		{"short password", domain.UserUpdate{Password: ptr("12345")}, 0, apperrors.CodeValidationFailed},
		{"unknown role", domain.UserUpdate{Role: ptr(domain.Role("ROOT"))}, 0, apperrors.CodeValidationFailed},
		{"unknown user", domain.UserUpdate{Name: ptr("X")}, 9999, apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			admin := env.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
			ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
			target := tt.target
			if target == 0 {
				target = ann.ID
			}

			_, err := newAdminService(env).UpdateUser(context.Background(), sessionFor(admin), target, tt.update)
			assertCode(t, err, tt.want)

			stored, _ := env.store.Users().GetByID(context.Background(), ann.ID)
			if stored.PasswordHash != ann.PasswordHash || stored.Role != domain.RoleUser {
				t.Error("rejected update modified the record")
			}
		})
	}
}

// =============================================================================
// DeleteUser
// =============================================================================

func TestAdminDeleteUser(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
	ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	svc := newAdminService(env)
	ctx := context.Background()

	customers := newCustomerService(env)
	if _, err := customers.Create(ctx, sessionFor(ann), CustomerCreateInput{Name: "Acme"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.DeleteUser(ctx, sessionFor(admin), ann.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	_, err := svc.GetUser(ctx, sessionFor(admin), ann.ID)
	assertCode(t, err, apperrors.CodeNotFound)
	assertCode(t, svc.DeleteUser(ctx, sessionFor(admin), ann.ID), apperrors.CodeNotFound)

	remaining, _ := env.store.Customers().ListByOwner(ctx, ann.ID)
	if len(remaining) != 0 {
		t.Errorf("deleted user's customers = %d, want 0", len(remaining))
	}
	if len(env.eventsOf(events.EventUserDeleted)) != 1 {
		t.Error("expected one user_deleted event")
	}
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)

	err := newAdminService(env).DeleteUser(context.Background(), sessionFor(admin), admin.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	if _, err := env.store.Users().GetByID(context.Background(), admin.ID); err != nil {
		t.Error("admin account must still exist")
	}
}
