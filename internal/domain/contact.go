package domain

import "time"

// Contact is an address-book entry owned by a single user.
type Contact struct {
	ID              string
	UserID          string
	FirstName       string
	LastName        string
	ContactNumber   string
	EmailAddress    string
	DeliveryAddress string
	BillingAddress  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
