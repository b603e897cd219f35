package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/service"
)

// AdminUsersHandler exposes account management to admins.
type AdminUsersHandler struct {
	service *service.AdminService
}

// NewAdminUsersHandler constructs handler.
func NewAdminUsersHandler(adminService *service.AdminService) *AdminUsersHandler {
	return &AdminUsersHandler{service: adminService}
}

// List GET /admin/users?page=&page_size=&role=.
func (h *AdminUsersHandler) List(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	limit, offset, page, err := pagination(c)
	if err != nil {
		return err
	}

	filter := domain.UserFilter{Limit: limit, Offset: offset}
	if role := c.Query("role"); role != "" {
		r := domain.Role(role)
		filter.Role = &r
	}

	users, err := h.service.ListUsers(c.UserContext(), session, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewUserList(users),
		"meta": fiber.Map{"page": page, "page_size": limit},
	})
}

// Get GET /admin/users/:id.
func (h *AdminUsersHandler) Get(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	user, err := h.service.GetUser(c.UserContext(), session, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Update PATCH /admin/users/:id.
func (h *AdminUsersHandler) Update(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.AdminUserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	user, err := h.service.UpdateUser(c.UserContext(), session, id, req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Delete DELETE /admin/users/:id.
func (h *AdminUsersHandler) Delete(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteUser(c.UserContext(), session, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
