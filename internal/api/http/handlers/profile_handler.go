package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// ProfileHandler serves the caller's own account.
type ProfileHandler struct {
	service  *service.ProfileService
	maxBytes int
}

// NewProfileHandler constructs handler.
func NewProfileHandler(profileService *service.ProfileService, maxAvatarBytes int) *ProfileHandler {
	return &ProfileHandler{service: profileService, maxBytes: maxAvatarBytes}
}

// Get handles GET /profile.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	user, err := h.service.Get(c.UserContext(), session)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Update handles PATCH /profile.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	var req dto.ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	user, err := h.service.Update(c.UserContext(), session, req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UploadAvatar handles POST /profile/avatar with a multipart "avatar" file.
func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	file, err := c.FormFile("avatar")
	if err != nil {
		return apperrors.NewFieldError("avatar", "is required as a multipart file")
	}

	src, err := file.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer src.Close()

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(src, int64(h.maxBytes)+1))
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	user, err := h.service.UpdateAvatar(c.UserContext(), session, service.AvatarUpload{
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
