package dto

import (
	"time"

	"github.com/spec-kit/contact-service/internal/domain"
)

// ContactCreateRequest payload for POST /Contacts.
type ContactCreateRequest struct {
	FirstName       string `json:"firstName" validate:"required_without=LastName,max=50"`
	LastName        string `json:"lastName" validate:"required_without=FirstName,max=50"`
	ContactNumber   string `json:"contactNumber" validate:"omitempty,phone"`
	EmailAddress    string `json:"emailAddress" validate:"omitempty,email,max=255"`
	DeliveryAddress string `json:"deliveryAddress" validate:"max=500"`
	BillingAddress  string `json:"billingAddress" validate:"max=500"`
}

// ContactUpdateRequest payload for PUT /Contacts/:id. Omitted fields are kept.
type ContactUpdateRequest struct {
	FirstName       *string `json:"firstName" validate:"omitempty,max=50"`
	LastName        *string `json:"lastName" validate:"omitempty,max=50"`
	ContactNumber   *string `json:"contactNumber" validate:"omitempty,phone"`
	EmailAddress    *string `json:"emailAddress" validate:"omitempty,email,max=255"`
	DeliveryAddress *string `json:"deliveryAddress" validate:"omitempty,max=500"`
	BillingAddress  *string `json:"billingAddress" validate:"omitempty,max=500"`
}

func (r *ContactCreateRequest) normalize() {
	trim(&r.FirstName, &r.LastName, &r.ContactNumber, &r.EmailAddress, &r.DeliveryAddress, &r.BillingAddress)
}

func (r *ContactUpdateRequest) normalize() {
	trimOptional(r.FirstName, r.LastName, r.ContactNumber, r.EmailAddress, r.DeliveryAddress, r.BillingAddress)
}

// ContactResponse is the public view of a contact.
type ContactResponse struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	ContactNumber   string    `json:"contactNumber"`
	EmailAddress    string    `json:"emailAddress"`
	DeliveryAddress string    `json:"deliveryAddress"`
	BillingAddress  string    `json:"billingAddress"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ContactListResponse is one page of contacts.
type ContactListResponse struct {
	Items    []ContactResponse `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// NewContactResponse maps a domain contact.
func NewContactResponse(c *domain.Contact) ContactResponse {
	return ContactResponse{
		ID:              c.ID,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		ContactNumber:   c.ContactNumber,
		EmailAddress:    c.EmailAddress,
		DeliveryAddress: c.DeliveryAddress,
		BillingAddress:  c.BillingAddress,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
