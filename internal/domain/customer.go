package domain

import "time"

// CustomerStatus tracks where a customer is in the sales lifecycle.
type CustomerStatus string

const (
	CustomerStatusNew      CustomerStatus = "NEW"
	CustomerStatusActive   CustomerStatus = "ACTIVE"
	CustomerStatusInactive CustomerStatus = "INACTIVE"
)

// Valid reports whether s is a known status.
func (s CustomerStatus) Valid() bool {
	switch s {
	case CustomerStatusNew, CustomerStatusActive, CustomerStatusInactive:
		return true
	}
	return false
}

// Customer is a contact record visible only to its owner.
type Customer struct {
	ID        int64
	OwnerID   int64
	Name      string
	Email     *string
	Phone     *string
	Status    CustomerStatus
	CreatedAt time.Time
}

// CustomerUpdate is a partial update of a customer. OwnerID is not part of
// it: ownership never changes after creation.
type CustomerUpdate struct {
	Name   *string
	Email  *string
	Phone  *string
	Status *CustomerStatus
}

// IsEmpty reports whether no recognized field is present.
func (u CustomerUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.Status == nil
}

// Apply copies present fields onto c.
func (u CustomerUpdate) Apply(c *Customer) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Email != nil {
		c.Email = u.Email
	}
	if u.Phone != nil {
		c.Phone = u.Phone
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
}
