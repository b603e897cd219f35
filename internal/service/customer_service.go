package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/validation"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const customerStatusTag = "oneof=NEW ACTIVE INACTIVE"

// CustomerCreateInput describes a new customer. Empty email or phone means
// "not provided".
type CustomerCreateInput struct {
	Name   string
	Email  *string
	Phone  *string
	Status *domain.CustomerStatus
}

// CustomerService manages the caller's own customers. Every operation is
// scoped to the session's user id; the role plays no part.
type CustomerService struct {
	customers  repository.CustomerRepository
	policy     *auth.Policy
	validator  *validation.Validator
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// CustomerDependencies bundles collaborators for the customer service.
type CustomerDependencies struct {
	CustomerRepo repository.CustomerRepository
	Policy       *auth.Policy
	Validator    *validation.Validator
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewCustomerService constructs the service.
func NewCustomerService(deps CustomerDependencies) *CustomerService {
	s := &CustomerService{
		customers:  deps.CustomerRepo,
		policy:     deps.Policy,
		validator:  deps.Validator,
		dispatcher: deps.Dispatcher,
		logger:     orNop(deps.Logger),
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	return s
}

// List returns the caller's customers, newest first.
func (s *CustomerService) List(ctx context.Context, session *domain.Session) ([]domain.Customer, error) {
	if session == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	customers, err := s.customers.ListByOwner(ctx, session.UserID)
	if err != nil {
		return nil, storeError(err, "customer")
	}
	return customers, nil
}

// Create adds a customer owned by the caller.
func (s *CustomerService) Create(ctx context.Context, session *domain.Session, input CustomerCreateInput) (*domain.Customer, error) {
	if session == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}

	customer := &domain.Customer{
		OwnerID: session.UserID,
		Name:    strings.TrimSpace(input.Name),
		Email:   optional(input.Email),
		Phone:   optional(input.Phone),
		Status:  domain.CustomerStatusNew,
	}
	if input.Status != nil && *input.Status != "" {
		customer.Status = *input.Status
	}

	checks := []validation.Check{
		{Field: "name", Value: customer.Name, Tag: "required,max=200"},
		{Field: "status", Value: string(customer.Status), Tag: customerStatusTag},
	}
	checks = append(checks, contactChecks(customer.Email, customer.Phone)...)
	if err := s.validator.Fields(checks...); err != nil {
		return nil, err
	}

	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, storeError(err, "customer")
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventCustomerCreated,
		ActorID:   session.UserID,
		SubjectID: customer.OwnerID,
		Payload:   events.CustomerPayload{CustomerID: customer.ID, Status: customer.Status},
	})
	return customer, nil
}

// Get returns one of the caller's customers.
func (s *CustomerService) Get(ctx context.Context, session *domain.Session, id int64) (*domain.Customer, error) {
	return s.owned(ctx, session, id)
}

// Update applies a partial update to one of the caller's customers.
func (s *CustomerService) Update(ctx context.Context, session *domain.Session, id int64, update domain.CustomerUpdate) (*domain.Customer, error) {
	customer, err := s.owned(ctx, session, id)
	if err != nil {
		return nil, err
	}

	update = normalizeCustomerUpdate(update)
	if update.IsEmpty() {
		return nil, apperrors.NewNoOp("nothing to update")
	}

	var checks []validation.Check
	if update.Name != nil {
		checks = append(checks, validation.Check{Field: "name", Value: *update.Name, Tag: "required,max=200"})
	}
	if update.Status != nil {
		checks = append(checks, validation.Check{Field: "status", Value: string(*update.Status), Tag: customerStatusTag})
	}
	checks = append(checks, contactChecks(update.Email, update.Phone)...)
	if err := s.validator.Fields(checks...); err != nil {
		return nil, err
	}

	update.Apply(customer)
	if customer.Email != nil && *customer.Email == "" {
		customer.Email = nil
	}
	if customer.Phone != nil && *customer.Phone == "" {
		customer.Phone = nil
	}

	if err := s.customers.Update(ctx, customer); err != nil {
		return nil, storeError(err, "customer")
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventCustomerUpdated,
		ActorID:   session.UserID,
		SubjectID: customer.OwnerID,
		Payload:   events.CustomerPayload{CustomerID: customer.ID, Status: customer.Status},
	})
	return customer, nil
}

// Delete removes one of the caller's customers.
func (s *CustomerService) Delete(ctx context.Context, session *domain.Session, id int64) error {
	customer, err := s.owned(ctx, session, id)
	if err != nil {
		return err
	}
	if err := s.customers.Delete(ctx, customer.ID); err != nil {
		return storeError(err, "customer")
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventCustomerDeleted,
		ActorID:   session.UserID,
		SubjectID: customer.OwnerID,
		Payload:   events.CustomerPayload{CustomerID: customer.ID},
	})
	return nil
}

// owned fetches a customer and applies the ownership check. Another user's
// customer is reported exactly like a missing one.
func (s *CustomerService) owned(ctx context.Context, session *domain.Session, id int64) (*domain.Customer, error) {
	if session == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "customer")
	}
	if decision := s.policy.AuthorizeOwner(session, customer.OwnerID); decision != auth.Allow {
		s.logger.Info("customer access denied",
			zap.String("reason", "not_owner"),
			zap.Int64("user_id", session.UserID),
			zap.Int64("customer_id", id))
		return nil, apperrors.NewNotFound("customer", nil)
	}
	return customer, nil
}

// contactChecks validates email and phone when they carry a value.
func contactChecks(email, phone *string) []validation.Check {
	var checks []validation.Check
	if email != nil && *email != "" {
		checks = append(checks, validation.Check{Field: "email", Value: *email, Tag: "email,max=254"})
	}
	if phone != nil && *phone != "" {
		checks = append(checks, validation.Check{Field: "phone", Value: *phone, Tag: "max=32"})
	}
	return checks
}

// normalizeCustomerUpdate trims values. A blank email or phone stays present
// so it clears the field; a blank status is dropped.
func normalizeCustomerUpdate(u domain.CustomerUpdate) domain.CustomerUpdate {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		return &v
	}
	u.Name = trim(u.Name)
	u.Email = trim(u.Email)
	u.Phone = trim(u.Phone)
	if u.Status != nil {
		status := domain.CustomerStatus(strings.TrimSpace(string(*u.Status)))
		if status == "" {
			u.Status = nil
		} else {
			u.Status = &status
		}
	}
	return u
}

// optional trims s and treats blank as absent.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
