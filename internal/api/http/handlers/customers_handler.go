package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/service"
)

// CustomersHandler manages the caller's customer records.
type CustomersHandler struct {
	service *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customerService *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{service: customerService}
}

// List GET /customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	customers, err := h.service.List(c.UserContext(), session)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerList(customers)})
}

// Create POST /customers.
func (h *CustomersHandler) Create(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	var req dto.CreateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	customer, err := h.service.Create(c.UserContext(), session, service.CustomerCreateInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Status: req.StatusValue(),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// Get GET /customers/:id.
func (h *CustomersHandler) Get(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	customer, err := h.service.Get(c.UserContext(), session, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// Update PATCH /customers/:id.
func (h *CustomersHandler) Update(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	customer, err := h.service.Update(c.UserContext(), session, id, req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// Delete DELETE /customers/:id.
func (h *CustomersHandler) Delete(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), session, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
