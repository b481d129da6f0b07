package user

import (
	"errors"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	// ErrNotFound covers both missing rows and rows owned by someone else,
	// so callers cannot probe for existence.
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	Locale       string `json:"locale"`

	CompanyName    string `json:"companyName"`
	CompanyAddress string `json:"companyAddress"`
	CompanyZip     string `json:"companyZip"`
	CompanyCity    string `json:"companyCity"`
	CompanyCountry string `json:"companyCountry"`
	TaxID          string `json:"taxId"`
	VatID          string `json:"vatId"`
	ContactEmail   string `json:"contactEmail"`
	ContactPhone   string `json:"contactPhone"`
	ContactWeb     string `json:"contactWeb"`

	BankName string `json:"bankName"`
	BankBIC  string `json:"bankBic"`
	// IBAN at rest is a cipher/iv/tag triple, never plaintext
	IBANCipher string `json:"-"`
	IBANIV     string `json:"-"`
	IBANTag    string `json:"-"`

	VatPercent    float64   `json:"vatPercent"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Role          string    `json:"role"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required,max=120"`
	Locale   string `json:"locale" binding:"omitempty,max=10"`
}

type UpdateProfileRequest struct {
	Name   string `json:"name" binding:"required,max=120"`
	Locale string `json:"locale" binding:"omitempty,max=10"`

	CompanyName    string `json:"companyName" binding:"omitempty,max=200"`
	CompanyAddress string `json:"companyAddress" binding:"omitempty,max=300"`
	CompanyZip     string `json:"companyZip" binding:"omitempty,max=20"`
	CompanyCity    string `json:"companyCity" binding:"omitempty,max=120"`
	CompanyCountry string `json:"companyCountry" binding:"omitempty,max=120"`
	TaxID          string `json:"taxId" binding:"omitempty,max=60"`
	VatID          string `json:"vatId" binding:"omitempty,max=60"`
	ContactEmail   string `json:"contactEmail" binding:"omitempty,email"`
	ContactPhone   string `json:"contactPhone" binding:"omitempty,max=40"`
	ContactWeb     string `json:"contactWeb" binding:"omitempty,max=200"`

	BankName string `json:"bankName" binding:"omitempty,max=120"`
	BankBIC  string `json:"bankBic" binding:"omitempty,max=20"`
	IBAN     string `json:"iban" binding:"omitempty,max=60"`

	VatPercent    float64 `json:"vatPercent" binding:"gte=0"`
	InvoiceNumber string  `json:"invoiceNumber" binding:"omitempty,max=40"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// AdminUpdateRequest is the role/active toggle exposed to administrators.
type AdminUpdateRequest struct {
	Role   string `json:"role" binding:"required,oneof=user admin"`
	Active *bool  `json:"active" binding:"required"`
}
