package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-faster/errors"
	"github.com/skip2/go-qrcode"

	"marketplace_back_end/internal/models"
)

// OrderQRCode encode la référence de la commande en PNG base64 prêt pour <img src>.
func OrderQRCode(o models.Order) (string, error) {
	payload := fmt.Sprintf("ORDER:%s\nAMOUNT:%s\nTX:%s", o.ID, o.Amount.StringFixed(2), o.TransactionID)
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", errors.Wrap(err, "encode qr")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

const invoiceHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Invoice {{.Ref}}</title>
<style>
body{font-family:Arial,sans-serif;margin:40px;color:#222}
table{width:100%;border-collapse:collapse;margin:24px 0}
th,td{border:1px solid #ddd;padding:8px;text-align:left}
.right{text-align:right}
</style></head>
<body>
<h1>{{.Company}}</h1>
<p>Invoice #{{.Ref}}<br>Date: {{.Date}}<br>Status: {{.Status}}</p>
<p>{{.Name}}<br>{{.Address.AddressLine1}}{{if .Address.AddressLine2}}, {{.Address.AddressLine2}}{{end}}<br>
{{.Address.PostalZipCode}} {{.Address.City}}, {{.Address.StateProvinceRegion}}<br>{{.Address.CountryRegion}}</p>
<table>
<thead><tr><th>Product</th><th>Quantity</th><th class="right">Unit price</th><th class="right">Total</th></tr></thead>
<tbody>{{range .Lines}}<tr><td>{{.Title}}</td><td>{{.Quantity}}</td><td class="right">{{.Price}}</td><td class="right">{{.Total}}</td></tr>{{end}}</tbody>
</table>
<p class="right">Discount: {{.Discount}}<br><strong>Total: {{.Amount}}</strong></p>
<img src="{{.QR}}" alt="QR" width="128" height="128">
</body></html>`

var invoiceTemplate = template.Must(template.New("invoice").Parse(invoiceHTML))

type invoiceLine struct {
	Title    string
	Quantity int
	Price    string
	Total    string
}

// InvoiceRenderer produit la facture PDF d'une commande via Chrome headless.
type InvoiceRenderer struct {
	company string
	timeout time.Duration
}

func NewInvoiceRenderer(company string, timeout time.Duration) *InvoiceRenderer {
	return &InvoiceRenderer{company: company, timeout: timeout}
}

// HTML construit la facture HTML.
func (r *InvoiceRenderer) HTML(o models.Order, buyer models.User) (string, error) {
	qr, err := OrderQRCode(o)
	if err != nil {
		return "", err
	}

	lines := make([]invoiceLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, invoiceLine{
			Title:    it.Title,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
			Total:    it.Subtotal().StringFixed(2),
		})
	}

	var buf bytes.Buffer
	err = invoiceTemplate.Execute(&buf, map[string]any{
		"Company":  r.company,
		"Ref":      o.Reference(),
		"Date":     o.CreatedAt.Format("2006-01-02"),
		"Status":   o.Status,
		"Name":     buyer.FirstName + " " + buyer.LastName,
		"Address":  o.ShippingAddress,
		"Lines":    lines,
		"Discount": o.Discount.StringFixed(2),
		"Amount":   o.Amount.StringFixed(2),
		"QR":       template.URL(qr),
	})
	if err != nil {
		return "", errors.Wrap(err, "render invoice")
	}
	return buf.String(), nil
}

// Render imprime la facture en PDF.
func (r *InvoiceRenderer) Render(ctx context.Context, o models.Order, buyer models.User) ([]byte, error) {
	html, err := r.HTML(o, buyer)
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox, chromedp.DisableGPU)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancel := context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(html))),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "print invoice")
	}
	return pdf, nil
}
