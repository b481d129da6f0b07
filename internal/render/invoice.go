// Package render turns a computed invoice view into standalone HTML markup.
// It is a pure presentation step: all totals arrive precomputed.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/clockbill/clockbill/internal/invoice"
)

type lineData struct {
	Date  string
	Name  string
	Hours string
	Cost  string
}

type invoiceData struct {
	InvoiceNumber string
	InvoiceDate   string
	ProjectName   string
	Description   string

	BillToLines []string
	Lines       []lineData

	Subtotal string
	ShowVat  bool
	VatLabel string
	Vat      string
	Total    string

	CompanyLines []string
	ContactLines []string
	BankLines    []string
}

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: sans-serif; margin: 3em; color: #222; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1.5em 0; }
th, td { text-align: left; padding: 0.4em 0.8em; border-bottom: 1px solid #ddd; }
td.num, th.num { text-align: right; }
tfoot td { border-bottom: none; font-weight: bold; }
footer { margin-top: 3em; font-size: 0.85em; color: #555; display: flex; gap: 4em; }
</style>
</head>
<body>
<header>
<h1>Invoice {{.InvoiceNumber}}</h1>
<p>Date: {{.InvoiceDate}}</p>
<div>
{{range .BillToLines}}<div>{{.}}</div>
{{end}}</div>
</header>
<section>
<h2>{{.ProjectName}}</h2>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<table>
<thead><tr><th>Date</th><th>Description</th><th class="num">Hours</th><th class="num">Amount</th></tr></thead>
<tbody>
{{range .Lines}}<tr><td>{{.Date}}</td><td>{{.Name}}</td><td class="num">{{.Hours}}</td><td class="num">{{.Cost}}</td></tr>
{{end}}</tbody>
<tfoot>
<tr><td colspan="3">Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
{{if .ShowVat}}<tr><td colspan="3">{{.VatLabel}}</td><td class="num">{{.Vat}}</td></tr>
{{end}}<tr><td colspan="3">Total</td><td class="num">{{.Total}}</td></tr>
</tfoot>
</table>
</section>
<footer>
<div>{{range .CompanyLines}}<div>{{.}}</div>{{end}}</div>
<div>{{range .ContactLines}}<div>{{.}}</div>{{end}}</div>
<div>{{range .BankLines}}<div>{{.}}</div>{{end}}</div>
</footer>
</body>
</html>
`))

func amount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Invoice renders the view as a self-contained HTML document.
func Invoice(v invoice.View) ([]byte, error) {
	data := invoiceData{
		InvoiceNumber: v.InvoiceNumber,
		InvoiceDate:   v.InvoiceDate,
		ProjectName:   v.ProjectName,
		Description:   v.Description,
		BillToLines:   v.BillToLines,
		Subtotal:      amount(v.Subtotal),
		ShowVat:       v.VatPercent > 0,
		VatLabel:      fmt.Sprintf("VAT %g%%", v.VatPercent),
		Vat:           amount(v.VatAmount),
		Total:         amount(v.Total),
		CompanyLines:  v.CompanyLines,
		ContactLines:  v.ContactLines,
		BankLines:     v.BankLines,
	}

	data.Lines = make([]lineData, 0, len(v.Lines))

	for _, l := range v.Lines {
		ld := lineData{
			Date:  l.Date,
			Name:  l.Name,
			Hours: amount(l.Hours),
		}

		if l.Cost != nil {
			ld.Cost = amount(*l.Cost)
		}

		data.Lines = append(data.Lines, ld)
	}

	var buf bytes.Buffer

	if err := invoiceTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
