package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// CreateCustomerRequest payload for POST /customers.
type CreateCustomerRequest struct {
	Name   string  `json:"name"`
	Email  *string `json:"email"`
	Phone  *string `json:"phone"`
	Status *string `json:"status"`
}

// UpdateCustomerRequest payload for PATCH /customers/:id. An empty email or
// phone clears the field.
type UpdateCustomerRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Phone  *string `json:"phone"`
	Status *string `json:"status"`
}

func statusPtr(s *string) *domain.CustomerStatus {
	if s == nil {
		return nil
	}
	status := domain.CustomerStatus(*s)
	return &status
}

// ToDomain converts the payload.
func (r UpdateCustomerRequest) ToDomain() domain.CustomerUpdate {
	return domain.CustomerUpdate{
		Name:   r.Name,
		Email:  r.Email,
		Phone:  r.Phone,
		Status: statusPtr(r.Status),
	}
}

// StatusValue returns the requested status, if any.
func (r CreateCustomerRequest) StatusValue() *domain.CustomerStatus {
	return statusPtr(r.Status)
}

// CustomerResponse is the public view of a customer.
type CustomerResponse struct {
	ID        int64                 `json:"id"`
	OwnerID   int64                 `json:"owner_id"`
	Name      string                `json:"name"`
	Email     *string               `json:"email"`
	Phone     *string               `json:"phone"`
	Status    domain.CustomerStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
}

// NewCustomerResponse maps a domain customer.
func NewCustomerResponse(c *domain.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

// NewCustomerList maps a list of customers.
func NewCustomerList(customers []domain.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(customers))
	for i := range customers {
		out = append(out, NewCustomerResponse(&customers[i]))
	}
	return out
}
