package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/imagestore"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/validation"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// AvatarUpload is an image submitted for the caller's profile.
type AvatarUpload struct {
	ContentType string
	Data        []byte
}

// ProfileService lets a signed-in user read and edit their own account.
type ProfileService struct {
	users      repository.UserRepository
	policy     *auth.Policy
	images     imagestore.Uploader
	validator  *validation.Validator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	maxAvatar  int
}

// ProfileDependencies bundles collaborators for the profile service.
type ProfileDependencies struct {
	UserRepo   repository.UserRepository
	Policy     *auth.Policy
	Images     imagestore.Uploader
	Validator  *validation.Validator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewProfileService constructs the service.
func NewProfileService(cfg config.Config, deps ProfileDependencies) *ProfileService {
	s := &ProfileService{
		users:      deps.UserRepo,
		policy:     deps.Policy,
		images:     deps.Images,
		validator:  deps.Validator,
		dispatcher: deps.Dispatcher,
		logger:     orNop(deps.Logger),
		bcryptCost: cfg.Auth.BcryptCost,
		maxAvatar:  cfg.Avatar.MaxBytes,
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	return s
}

// Get returns the caller's own account.
func (s *ProfileService) Get(ctx context.Context, session *domain.Session) (*domain.User, error) {
	if session == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

// Update applies name and password changes to the caller's account. A role in
// the update is rejected by the self-role guard.
func (s *ProfileService) Update(ctx context.Context, session *domain.Session, update domain.UserUpdate) (*domain.User, error) {
	if session == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}

	update = update.Normalize()
	if update.IsEmpty() {
		return nil, apperrors.NewNoOp("nothing to update")
	}
	if err := s.validateUpdate(update); err != nil {
		return nil, err
	}
	if s.policy.ForbidSelfRoleChange(session, session.UserID, update) {
		return nil, apperrors.NewForbidden("you cannot change your own role")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, storeError(err, "user")
	}

	var fields []string
	if update.Name != nil {
		user.Name = *update.Name
		fields = append(fields, "name")
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
	return user, nil
}

func (s *ProfileService) validateUpdate(update domain.UserUpdate) error {
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

// UpdateAvatar stores the image and then points the caller's account at it.
// If the record update fails the uploaded image is left orphaned.
func (s *ProfileService) UpdateAvatar(ctx context.Context, session *domain.Session, upload AvatarUpload) (*domain.User, error) {
	if session == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	if len(upload.Data) == 0 {
		return nil, apperrors.NewFieldError("avatar", "is required")
	}
	if s.maxAvatar > 0 && len(upload.Data) > s.maxAvatar {
		return nil, apperrors.NewFieldError("avatar", fmt.Sprintf("must be at most %d bytes", s.maxAvatar))
	}
	if _, err := imagestore.DetectImage(upload.ContentType, upload.Data); err != nil {
		return nil, avatarError(err)
	}
	data, format, err := imagestore.NormalizeAvatar(upload.Data)
	if err != nil {
		return nil, avatarError(err)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, storeError(err, "user")
	}

	key := fmt.Sprintf("user_%d.%s", user.ID, format)
	url, err := s.images.Upload(ctx, key, "image/"+format, data)
	if err != nil {
		s.logger.Error("avatar upload failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, apperrors.NewUpstreamFailure("upload failed", err)
	}

	user.AvatarURL = &url
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("avatar stored but user update failed; image orphaned",
			zap.Int64("user_id", user.ID), zap.String("avatar_url", url))
		return nil, storeError(err, "user")
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventUserAvatarChanged,
		ActorID:   session.UserID,
		SubjectID: user.ID,
		Payload:   events.UserAvatarChangedPayload{AvatarURL: url},
	})
	return user, nil
}

func avatarError(err error) error {
	switch {
	case errors.Is(err, imagestore.ErrNotImage):
		return apperrors.NewFieldError("avatar", err.Error())
	case errors.Is(err, imagestore.ErrImageTooLarge):
		return apperrors.NewFieldError("avatar", "image dimensions are too large")
	default:
		return apperrors.NewInternalError(err)
	}
}
