package user

import (
	"errors"
	"time"
)

// ErrCustomerNotFound is returned when the authenticated subject has no customer row.
var ErrCustomerNotFound = errors.New("customer not found")

// Customer identifies the buyer and feeds the payment payer block.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Address is an entry in a customer's address book.
type Address struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone,omitempty"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state,omitempty"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddressInput captures the payload for creating an address.
type AddressInput struct {
	Recipient  string `json:"recipient" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"max=32"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=120"`
	State      string `json:"state" validate:"max=64"`
	PostalCode string `json:"postal_code" validate:"required,max=16"`
	Country    string `json:"country" validate:"omitempty,len=2"`
}
