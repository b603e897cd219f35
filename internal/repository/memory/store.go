// Package memory provides mutex-guarded in-memory repositories. They back the
// service when no Postgres DSN is configured and serve as fakes in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
)

// Store holds users and customers and enforces the same constraints as the
// relational schema: unique email and cascade delete of a user's customers.
type Store struct {
	mu         sync.RWMutex
	users      map[int64]domain.User
	customers  map[int64]domain.Customer
	nextUserID int64
	nextCustID int64
	now        func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:     make(map[int64]domain.User),
		customers: make(map[int64]domain.Customer),
		now:       time.Now,
	}
}

// Users returns a UserRepository view of the store.
func (s *Store) Users() repository.UserRepository {
	return userRepo{s}
}

// Customers returns a CustomerRepository view of the store.
func (s *Store) Customers() repository.CustomerRepository {
	return customerRepo{s}
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, 0) {
		return repository.ErrDuplicate
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = s.now()
	s.users[user.ID] = cloneUser(*user)
	return nil
}

func (r userRepo) Update(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.emailTaken(user.Email, user.ID) {
		return repository.ErrDuplicate
	}
	updated := cloneUser(*user)
	updated.CreatedAt = existing.CreatedAt
	s.users[user.ID] = updated
	return nil
}

func (r userRepo) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	for cid, c := range s.customers {
		if c.OwnerID == id {
			delete(s.customers, cid)
		}
	}
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(user)
	return &out, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			out := cloneUser(user)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) List(_ context.Context, filter domain.UserFilter) ([]domain.User, error) {
	s := r.s
	s.mu.RLock()
	result := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		result = append(result, cloneUser(user))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

// emailTaken must be called with s.mu held.
func (s *Store) emailTaken(email string, exceptID int64) bool {
	for id, user := range s.users {
		if id != exceptID && user.Email == email {
			return true
		}
	}
	return false
}

type customerRepo struct{ s *Store }

func (r customerRepo) Create(_ context.Context, customer *domain.Customer) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[customer.OwnerID]; !ok {
		return repository.ErrNotFound
	}
	s.nextCustID++
	customer.ID = s.nextCustID
	customer.CreatedAt = s.now()
	s.customers[customer.ID] = cloneCustomer(*customer)
	return nil
}

func (r customerRepo) Update(_ context.Context, customer *domain.Customer) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := cloneCustomer(*customer)
	updated.OwnerID = existing.OwnerID
	updated.CreatedAt = existing.CreatedAt
	s.customers[customer.ID] = updated
	return nil
}

func (r customerRepo) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (r customerRepo) GetByID(_ context.Context, id int64) (*domain.Customer, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneCustomer(customer)
	return &out, nil
}

func (r customerRepo) ListByOwner(_ context.Context, ownerID int64) ([]domain.Customer, error) {
	s := r.s
	s.mu.RLock()
	result := []domain.Customer{}
	for _, customer := range s.customers {
		if customer.OwnerID == ownerID {
			result = append(result, cloneCustomer(customer))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneUser(u domain.User) domain.User {
	u.AvatarURL = cloneString(u.AvatarURL)
	return u
}

func cloneCustomer(c domain.Customer) domain.Customer {
	c.Email = cloneString(c.Email)
	c.Phone = cloneString(c.Phone)
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
