package project

import (
	"errors"
	"time"

	"github.com/clockbill/clockbill/internal/domain/task"
)

const (
	PricingHourly = "HOURLY"
	PricingFixed  = "FIXED"
)

var ErrNotFound = errors.New("project not found")

type Project struct {
	ID          int64  `json:"id"`
	CustomerID  int64  `json:"customerId"`
	UserID      int64  `json:"-"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// PricingType selects which of HourlyRate/FixedPrice is authoritative;
	// the other is inert but still stored and returned.
	PricingType string  `json:"pricingType"`
	HourlyRate  float64 `json:"hourlyRate"`
	FixedPrice  float64 `json:"fixedPrice"`

	// snapshot from the owner's sequence; frozen once set
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	// nil until the first invoice preview materializes it
	InvoiceDate *time.Time `json:"invoiceDate,omitempty"`

	Tasks []task.Task `json:"tasks,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateProjectRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Description string  `json:"description" binding:"omitempty,max=1000"`
	PricingType string  `json:"pricingType" binding:"omitempty,oneof=HOURLY FIXED"`
	HourlyRate  float64 `json:"hourlyRate" binding:"gte=0"`
	FixedPrice  float64 `json:"fixedPrice" binding:"gte=0"`
	// supplying a number here skips the allocator: the owner's sequence
	// does not advance for manually numbered projects
	InvoiceNumber string `json:"invoiceNumber" binding:"omitempty,max=40"`
}

// UpdateProjectRequest replaces the mutable fields wholesale, so the pricing
// type must always be stated; defaulting it here would let a partial payload
// flip a FIXED project to HOURLY and change its totals.
type UpdateProjectRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Description string  `json:"description" binding:"omitempty,max=1000"`
	PricingType string  `json:"pricingType" binding:"required,oneof=HOURLY FIXED"`
	HourlyRate  float64 `json:"hourlyRate" binding:"gte=0"`
	FixedPrice  float64 `json:"fixedPrice" binding:"gte=0"`
}
