package invoice

import (
	"time"

	"github.com/clockbill/clockbill/internal/domain/customer"
	"github.com/clockbill/clockbill/internal/domain/project"
	"github.com/clockbill/clockbill/internal/domain/task"
	"github.com/clockbill/clockbill/internal/domain/user"
)

const dateLayout = "2006-01-02"

// Line is one rendered invoice row. Cost is nil for fixed-price projects,
// where tasks are listed but do not contribute to the total.
type Line struct {
	Date  string   `json:"date,omitempty"`
	Name  string   `json:"name"`
	Hours float64  `json:"hours"`
	Cost  *float64 `json:"cost,omitempty"`
}

// View is the computed, serializable invoice: header, lines, totals and
// footer blocks. It is derived state, distinct from the persisted entities.
type View struct {
	InvoiceNumber string `json:"invoiceNumber"`
	InvoiceDate   string `json:"invoiceDate"`
	ProjectName   string `json:"projectName"`
	Description   string `json:"description,omitempty"`
	PricingType   string `json:"pricingType"`

	BillToLines []string `json:"billToLines"`
	Lines       []Line   `json:"lines"`

	Subtotal   float64 `json:"subtotal"`
	VatPercent float64 `json:"vatPercent"`
	VatAmount  float64 `json:"vatAmount"`
	Total      float64 `json:"total"`

	CompanyLines []string `json:"companyLines"`
	ContactLines []string `json:"contactLines"`
	BankLines    []string `json:"bankLines"`
}

// Input carries everything Compute needs; IBAN is the already-decrypted
// plaintext (the caller is always the authenticated owner).
type Input struct {
	User     user.User
	Customer customer.Customer
	Project  project.Project
	Tasks    []task.Task
	IBAN     string
}

// Compute derives the invoice view. Fixed-price projects take their subtotal
// from the project; hourly projects sum estimatedHours * hourlyRate with each
// line cost computed independently, never by distributing the aggregate. With
// a zero VAT rate the total is the untouched subtotal, so no rounding noise
// is introduced.
func Compute(in Input) View {
	p := in.Project
	u := in.User

	v := View{
		InvoiceNumber: p.InvoiceNumber,
		InvoiceDate:   formatDate(p.InvoiceDate),
		ProjectName:   p.Name,
		Description:   p.Description,
		PricingType:   p.PricingType,
		VatPercent:    u.VatPercent,
	}

	v.Lines = make([]Line, 0, len(in.Tasks))

	for _, t := range in.Tasks {
		line := Line{
			Date:  formatDate(t.Date),
			Name:  t.Name,
			Hours: t.EstimatedHours,
		}

		if p.PricingType == project.PricingHourly {
			cost := t.EstimatedHours * p.HourlyRate
			line.Cost = &cost
			v.Subtotal += cost
		}

		v.Lines = append(v.Lines, line)
	}

	if p.PricingType == project.PricingFixed {
		v.Subtotal = p.FixedPrice
	}

	if u.VatPercent > 0 {
		v.VatAmount = v.Subtotal * (u.VatPercent / 100)
		v.Total = v.Subtotal + v.VatAmount
	} else {
		v.Total = v.Subtotal
	}

	c := in.Customer
	v.BillToLines = nonBlank(
		c.Name,
		c.ContactName,
		c.Address,
		joinNonBlank(c.Zip, c.City),
		c.Country,
		c.VatID,
	)

	v.CompanyLines = nonBlank(
		u.CompanyName,
		u.CompanyAddress,
		joinNonBlank(u.CompanyZip, u.CompanyCity),
		u.CompanyCountry,
		u.TaxID,
		u.VatID,
	)

	v.ContactLines = nonBlank(
		u.ContactEmail,
		u.ContactPhone,
		u.ContactWeb,
	)

	v.BankLines = nonBlank(
		u.BankName,
		in.IBAN,
		u.BankBIC,
	)

	return v
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(dateLayout)
}

// nonBlank keeps only non-empty lines; the rendered footer never shows
// placeholder rows.
func nonBlank(lines ...string) []string {
	out := make([]string, 0, len(lines))

	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}

	return out
}

func joinNonBlank(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
