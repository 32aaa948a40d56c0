package entity

import (
	"errors"
	"strings"
	"time"
)

// Supplier is a counterparty for purchase requests.
type Supplier struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	TaxID         string    `json:"tax_id,omitempty"`
	PaymentMethod string    `json:"preferred_payment_method,omitempty"`
	BankDetails   string    `json:"bank_details,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the fields a supplier record must carry.
func (s *Supplier) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("supplier name is required")
	}
	return nil
}
