package customer

import (
	"errors"
	"time"

	"github.com/clockbill/clockbill/internal/domain/project"
)

// ErrNotFound is returned for rows that are missing or owned by another
// user; the two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("customer not found")

type Customer struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"-"`
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	Zip          string `json:"zip,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
	ContactName  string `json:"contactName,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty"`
	VatID        string `json:"vatId,omitempty"`

	// populated only when a listing eagerly includes projects
	Projects []project.Project `json:"projects,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateCustomerRequest struct {
	Name         string `json:"name" binding:"required,max=200"`
	Address      string `json:"address" binding:"omitempty,max=300"`
	Zip          string `json:"zip" binding:"omitempty,max=20"`
	City         string `json:"city" binding:"omitempty,max=120"`
	Country      string `json:"country" binding:"omitempty,max=120"`
	ContactName  string `json:"contactName" binding:"omitempty,max=120"`
	ContactEmail string `json:"contactEmail" binding:"omitempty,email"`
	ContactPhone string `json:"contactPhone" binding:"omitempty,max=40"`
	VatID        string `json:"vatId" binding:"omitempty,max=60"`
}

// full-update payload, same shape as create
type UpdateCustomerRequest = CreateCustomerRequest
