package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/validation"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// AdminService manages user accounts on behalf of an ADMIN.
type AdminService struct {
	users      repository.UserRepository
	policy     *auth.Policy
	validator  *validation.Validator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	UserRepo   repository.UserRepository
	Policy     *auth.Policy
	Validator  *validation.Validator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(cfg config.Config, deps AdminDependencies) *AdminService {
	s := &AdminService{
		users:      deps.UserRepo,
		policy:     deps.Policy,
		validator:  deps.Validator,
		dispatcher: deps.Dispatcher,
		logger:     orNop(deps.Logger),
		bcryptCost: cfg.Auth.BcryptCost,
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	return s
}

func (s *AdminService) requireAdmin(session *domain.Session) error {
	return s.policy.AuthorizeRole(session, domain.RoleAdmin).Err("admin role required")
}

// ListUsers returns accounts, newest first.
func (s *AdminService) ListUsers(ctx context.Context, session *domain.Session, filter domain.UserFilter) ([]domain.User, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, apperrors.NewFieldError("role", "must be one of USER, ADMIN")
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return users, nil
}

// GetUser returns a single account.
func (s *AdminService) GetUser(ctx context.Context, session *domain.Session, id int64) (*domain.User, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

// UpdateUser changes name, role or password of an account. An admin may not
// send a role for their own account, not even the role they already hold.
func (s *AdminService) UpdateUser(ctx context.Context, session *domain.Session, id int64, update domain.UserUpdate) (*domain.User, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}

	update = update.Normalize()
	if update.IsEmpty() {
		return nil, apperrors.NewNoOp("nothing to update")
	}
	if err := s.validateUpdate(update); err != nil {
		return nil, err
	}
	if s.policy.ForbidSelfRoleChange(session, id, update) {
		s.logger.Info("self role change blocked", zap.Int64("user_id", session.UserID))
		return nil, apperrors.NewForbidden("you cannot change your own role")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user")
	}

	oldRole := user.Role
	var fields []string
	if update.Name != nil {
		user.Name = *update.Name
		fields = append(fields, "name")
	}
	if update.Role != nil {
		user.Role = *update.Role
		fields = append(fields, "role")
	}
	if update.Password != nil {
		hash, err := hashPassword(*update.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		fields = append(fields, "password")
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, storeError(err, "user")
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventUserUpdated,
		ActorID:   session.UserID,
		SubjectID: user.ID,
		Payload:   events.UserUpdatedPayload{Fields: fields},
	})
	if user.Role != oldRole {
		publish(ctx, s.dispatcher, s.logger, events.Event{
			Type:      events.EventUserRoleChanged,
			ActorID:   session.UserID,
			SubjectID: user.ID,
			Payload:   events.UserRoleChangedPayload{OldRole: oldRole, NewRole: user.Role},
		})
	}
	return user, nil
}

func (s *AdminService) validateUpdate(update domain.UserUpdate) error {
	if update.Name != nil {
		if err := s.validator.Fields(validation.Check{Field: "name", Value: *update.Name, Tag: "max=100"}); err != nil {
			return err
		}
	}
	if update.Role != nil && !update.Role.Valid() {
		return apperrors.NewFieldError("role", "must be one of USER, ADMIN")
	}
	if update.Password != nil {
		return validatePassword(*update.Password)
	}
	return nil
}

// DeleteUser removes an account other than the caller's own. The account's
// customers go with it.
func (s *AdminService) DeleteUser(ctx context.Context, session *domain.Session, id int64) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if s.policy.ForbidSelfDeletion(session, id) {
		s.logger.Info("self deletion blocked", zap.Int64("user_id", session.UserID))
		return apperrors.NewForbidden("you cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return storeError(err, "user")
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventUserDeleted,
		ActorID:   session.UserID,
		SubjectID: id,
	})
	return nil
}
