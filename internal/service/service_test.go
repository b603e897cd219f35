package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository/memory"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// =============================================================================
// Test Helpers
// =============================================================================

type testEnv struct {
	cfg        config.Config
	store      *memory.Store
	sessions   *auth.RedisSessionStore
	policy     *auth.Policy
	dispatcher events.Dispatcher
	published  []events.Event
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "service-test-secret",
			SessionTTLHours: 1,
			BcryptCost:      bcrypt.MinCost,
		},
		Avatar: config.AvatarConfig{MaxBytes: 64 * 1024},
	}
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		cfg:        testConfig(),
		store:      memory.NewStore(),
		sessions:   auth.NewRedisSessionStore(client),
		dispatcher: events.NewInMemoryDispatcher(nil),
	}
	tokens := auth.NewTokenManager(env.cfg.Auth.JWTSecret, env.cfg.Auth.SessionTTL())
	env.policy = auth.NewPolicy(tokens, env.sessions, env.store.Users(), nil)

	record := func(_ context.Context, e events.Event) error {
		env.published = append(env.published, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventUserRegistered, events.EventUserUpdated, events.EventUserRoleChanged,
		events.EventUserDeleted, events.EventUserAvatarChanged, events.EventCustomerCreated,
		events.EventCustomerUpdated, events.EventCustomerDeleted,
	} {
		env.dispatcher.Subscribe(et, record)
	}
	return env
}

func (e *testEnv) createUser(t *testing.T, name, email, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	user := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := e.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user
}

func (e *testEnv) eventsOf(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range e.published {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func sessionFor(user *domain.User) *domain.Session {
	return &domain.Session{
		ID:        "sess-" + user.Email,
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func ptr[T any](v T) *T { return &v }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", code)
	}
	if !apperrors.IsCode(err, code) {
		t.Fatalf("error = %v (code %q), want %s", err, apperrors.ToDomainError(err).Code, code)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}
