package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/imagestore"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// =============================================================================
// Fakes
// =============================================================================

type uploadCall struct {
	key         string
	contentType string
	data        []byte
}

type fakeUploader struct {
	UploadFunc func(ctx context.Context, key, contentType string, data []byte) (string, error)
	calls      []uploadCall
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	f.calls = append(f.calls, uploadCall{key: key, contentType: contentType, data: data})
	if f.UploadFunc != nil {
		return f.UploadFunc(ctx, key, contentType, data)
	}
	return "/avatars/" + key, nil
}

// failingUserRepo wraps a working repository and overrides Update.
type failingUserRepo struct {
	repository.UserRepository
	UpdateFunc func(ctx context.Context, user *domain.User) error
}

func (r failingUserRepo) Update(ctx context.Context, user *domain.User) error {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, user)
	}
	return r.UserRepository.Update(ctx, user)
}

func newProfileService(env *testEnv, users repository.UserRepository, images imagestore.Uploader, logger *zap.Logger) *ProfileService {
	if users == nil {
		users = env.store.Users()
	}
	return NewProfileService(env.cfg, ProfileDependencies{
		UserRepo:   users,
		Policy:     env.policy,
		Images:     images,
		Dispatcher: env.dispatcher,
		Logger:     logger,
	})
}

// =============================================================================
// Get / Update
// =============================================================================

func TestProfileGet(t *testing.T) {
	env := setupEnv(t)
	ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	svc := newProfileService(env, nil, &fakeUploader{}, nil)

	got, err := svc.Get(context.Background(), sessionFor(ann))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != ann.ID || got.Email != "ann@x.com" {
		t.Errorf("Get() = %+v, want ann", got)
	}

	_, err = svc.Get(context.Background(), nil)
	assertCode(t, err, apperrors.CodeUnauthenticated)
}

func TestProfileUpdate(t *testing.T) {
	env := setupEnv(t)
	ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	svc := newProfileService(env, nil, &fakeUploader{}, nil)
	ctx := context.Background()

	updated, err := svc.Update(ctx, sessionFor(ann), domain.UserUpdate{
		Name:     ptr("  Ann Smith "),
		Password: ptr("newsecret"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Ann Smith" {
		t.Errorf("Name = %q, want %q", updated.Name, "Ann Smith")
	}

	stored, _ := env.store.Users().GetByID(ctx, ann.ID)
	if err := auth.ComparePassword(stored.PasswordHash, "newsecret"); err != nil {
		t.Errorf("stored hash does not verify new password: %v", err)
	}
	if stored.Role != domain.RoleUser {
		t.Errorf("Role = %s, want USER", stored.Role)
	}

	evs := env.eventsOf(events.EventUserUpdated)
	if len(evs) != 1 {
		t.Fatalf("UserUpdated events = %d, want 1", len(evs))
	}
	payload, ok := evs[0].Payload.(events.UserUpdatedPayload)
	if !ok || strings.Join(payload.Fields, ",") != "name,password" {
		t.Errorf("payload = %+v, want fields name,password", evs[0].Payload)
	}
}

func TestProfileUpdateRejections(t *testing.T) {
	tests := []struct {
		name     string
		role     domain.Role
		update   domain.UserUpdate
		wantCode string
	}{
		{"empty body", domain.RoleUser, domain.UserUpdate{}, apperrors.CodeNothingToUpdate},
		{"blank fields only", domain.RoleUser, domain.UserUpdate{Name: ptr("   "), Password: ptr("")}, apperrors.CodeNothingToUpdate},
		{"short password", domain.RoleUser, domain.UserUpdate{Password: ptr("abc")}, apperrors.CodeValidationFailed},
		{"user raises own role", domain.RoleUser, domain.UserUpdate{Role: ptr(domain.RoleAdmin)}, apperrors.CodeForbidden},
		{"user resends own role", domain.RoleUser, domain.UserUpdate{Role: ptr(domain.RoleUser)}, apperrors.CodeForbidden},
		{"admin resends own role", domain.RoleAdmin, domain.UserUpdate{Name: ptr("Root"), Role: ptr(domain.RoleAdmin)}, apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			user := env.createUser(t, "Ann", "ann@x.com", "secret1", tt.role)
			svc := newProfileService(env, nil, &fakeUploader{}, nil)
			ctx := context.Background()

			_, err := svc.Update(ctx, sessionFor(user), tt.update)
			assertCode(t, err, tt.wantCode)

			stored, _ := env.store.Users().GetByID(ctx, user.ID)
			if stored.PasswordHash != user.PasswordHash {
				t.Error("password hash changed after rejected update")
			}
			if stored.Name != "Ann" || stored.Role != tt.role {
				t.Errorf("stored = %s/%s, want unchanged", stored.Name, stored.Role)
			}
			if n := len(env.eventsOf(events.EventUserUpdated)); n != 0 {
				t.Errorf("UserUpdated events = %d, want 0", n)
			}
		})
	}
}

// =============================================================================
// Avatar
// =============================================================================

func TestUpdateAvatar(t *testing.T) {
	env := setupEnv(t)
	ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	uploader := &fakeUploader{}
	svc := newProfileService(env, nil, uploader, nil)
	ctx := context.Background()

	updated, err := svc.UpdateAvatar(ctx, sessionFor(ann), AvatarUpload{ContentType: "image/png", Data: pngBytes(t)})
	if err != nil {
		t.Fatalf("UpdateAvatar() error = %v", err)
	}

	wantKey := fmt.Sprintf("user_%d.png", ann.ID)
	if len(uploader.calls) != 1 {
		t.Fatalf("uploads = %d, want 1", len(uploader.calls))
	}
	call := uploader.calls[0]
	if call.key != wantKey || call.contentType != "image/png" {
		t.Errorf("upload = %s (%s), want %s (image/png)", call.key, call.contentType, wantKey)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(call.data))
	if err != nil {
		t.Fatalf("uploaded data does not decode: %v", err)
	}
	if cfg.Width != imagestore.AvatarSize || cfg.Height != imagestore.AvatarSize {
		t.Errorf("uploaded size = %dx%d, want %dx%d", cfg.Width, cfg.Height, imagestore.AvatarSize, imagestore.AvatarSize)
	}

	wantURL := "/avatars/" + wantKey
	if updated.AvatarURL == nil || *updated.AvatarURL != wantURL {
		t.Errorf("AvatarURL = %v, want %s", updated.AvatarURL, wantURL)
	}
	stored, _ := env.store.Users().GetByID(ctx, ann.ID)
	if stored.AvatarURL == nil || *stored.AvatarURL != wantURL {
		t.Errorf("stored AvatarURL = %v, want %s", stored.AvatarURL, wantURL)
	}
	if n := len(env.eventsOf(events.EventUserAvatarChanged)); n != 1 {
		t.Errorf("UserAvatarChanged events = %d, want 1", n)
	}
}

func TestUpdateAvatarRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        func(t *testing.T) []byte
	}{
		{"empty", "image/png", func(*testing.T) []byte { return nil }},
		{"not an image", "image/png", func(*testing.T) []byte { return []byte("plain text, not pixels") }},
		{"wrong content type", "text/plain", pngBytes},
		{"too large", "image/png", func(*testing.T) []byte { return make([]byte, 64*1024+1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
			uploader := &fakeUploader{}
			svc := newProfileService(env, nil, uploader, nil)

			_, err := svc.UpdateAvatar(context.Background(), sessionFor(ann), AvatarUpload{ContentType: tt.contentType, Data: tt.data(t)})
			assertCode(t, err, apperrors.CodeValidationFailed)
			if len(uploader.calls) != 0 {
				t.Errorf("uploads = %d, want 0", len(uploader.calls))
			}
		})
	}
}

func TestUpdateAvatarUploadFailure(t *testing.T) {
	env := setupEnv(t)
	ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	uploader := &fakeUploader{
		UploadFunc: func(context.Context, string, string, []byte) (string, error) {
			return "", errors.New("bucket credentials expired")
		},
	}
	svc := newProfileService(env, nil, uploader, nil)
	ctx := context.Background()

	_, err := svc.UpdateAvatar(ctx, sessionFor(ann), AvatarUpload{ContentType: "image/png", Data: pngBytes(t)})
	assertCode(t, err, apperrors.CodeUpstreamFailure)

	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus != 500 {
		t.Errorf("HTTPStatus = %d, want 500", domainErr.HTTPStatus)
	}
	if strings.Contains(domainErr.Message, "credentials") {
		t.Errorf("Message leaks cause: %q", domainErr.Message)
	}

	stored, _ := env.store.Users().GetByID(ctx, ann.ID)
	if stored.AvatarURL != nil {
		t.Errorf("AvatarURL = %v, want nil", *stored.AvatarURL)
	}
	if n := len(env.eventsOf(events.EventUserAvatarChanged)); n != 0 {
		t.Errorf("UserAvatarChanged events = %d, want 0", n)
	}
}

func TestUpdateAvatarRecordUpdateFailureOrphansImage(t *testing.T) {
	env := setupEnv(t)
	ann := env.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	uploader := &fakeUploader{}
	users := failingUserRepo{
		UserRepository: env.store.Users(),
		UpdateFunc: func(context.Context, *domain.User) error {
			return errors.New("connection reset")
		},
	}
	core, logs := observer.New(zap.WarnLevel)
	svc := newProfileService(env, users, uploader, zap.New(core))
	ctx := context.Background()

	_, err := svc.UpdateAvatar(ctx, sessionFor(ann), AvatarUpload{ContentType: "image/png", Data: pngBytes(t)})
	assertCode(t, err, apperrors.CodeUpstreamFailure)

	if len(uploader.calls) != 1 {
		t.Errorf("uploads = %d, want 1", len(uploader.calls))
	}
	if logs.FilterMessageSnippet("orphaned").Len() != 1 {
		t.Errorf("orphan warnings = %d, want 1", logs.FilterMessageSnippet("orphaned").Len())
	}
	stored, _ := env.store.Users().GetByID(ctx, ann.ID)
	if stored.AvatarURL != nil {
		t.Errorf("AvatarURL = %v, want nil", *stored.AvatarURL)
	}
	if n := len(env.eventsOf(events.EventUserAvatarChanged)); n != 0 {
		t.Errorf("UserAvatarChanged events = %d, want 0", n)
	}
}
