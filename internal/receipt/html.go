// internal/receipt/html.go
package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"github.com/shopspring/decimal"

	"print-agent/internal/escpos"
)

// HTMLRenderer produces the fallback document used when the USB path is
// unavailable: a self-contained page styled at 80mm width that mirrors the
// thermal layout and triggers the browser print dialog on load. The native
// QR command group is replaced with an externally hosted QR bitmap.
type HTMLRenderer struct {
	layout Layout
	tmpl   *template.Template
}

// NewHTMLRenderer creates a renderer for the given layout.
func NewHTMLRenderer(layout Layout) (*HTMLRenderer, error) {
	tmpl, err := template.New("receipt").Parse(receiptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse receipt template: %w", err)
	}
	if layout.QRModuleSize == 0 {
		layout.QRModuleSize = 6
	}
	return &HTMLRenderer{layout: layout, tmpl: tmpl}, nil
}

// Render builds the printable HTML document for one receipt.
func (r *HTMLRenderer) Render(data *ReceiptData) (string, error) {
	view := r.buildView(data)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render receipt document: %w", err)
	}
	return buf.String(), nil
}

type htmlView struct {
	ShopName     string
	HeaderLines  []string
	SaleNo       string
	Date         string
	Cashier      string
	CustomerName string
	Phone        string
	Items        []htmlItem
	HasDiscount  bool
	Subtotal     string
	Discount     string
	Total        string
	Payments     []htmlPayment
	TotalPaid    string
	Balance      string
	Change       string
	Notes        string
	FooterLines  []string
	QRInviteLine string
	QRImageURL   string
}

type htmlItem struct {
	Label    string
	Qty      int
	Price    string
	Total    string
	Discount string
}

type htmlPayment struct {
	Label  string
	Amount string
}

func (r *HTMLRenderer) buildView(data *ReceiptData) htmlView {
	view := htmlView{
		ShopName:     r.layout.ShopName,
		HeaderLines:  r.layout.HeaderLines,
		SaleNo:       data.SaleNo,
		Date:         data.Date.Format("02/01/2006 3:04 PM"),
		Cashier:      data.Cashier,
		CustomerName: data.CustomerName,
		Phone:        data.CustomerPhone,
		HasDiscount:  data.Discount.IsPositive(),
		Subtotal:     currencyHTML(data.Subtotal),
		Discount:     currencyHTML(data.Discount),
		Total:        currencyHTML(data.Total),
		TotalPaid:    currencyHTML(data.TotalPaid),
		Notes:        data.Notes,
		FooterLines:  r.layout.FooterLines,
		QRInviteLine: r.layout.QRInviteLine,
	}

	if data.Balance.IsPositive() {
		view.Balance = currencyHTML(data.Balance)
	}
	if data.Change.IsPositive() {
		view.Change = currencyHTML(data.Change)
	}

	for _, item := range data.Items {
		hi := htmlItem{
			Label: item.Label(),
			Qty:   item.Qty,
			Price: amountHTML(item.UnitPrice),
			Total: amountHTML(item.LineTotal),
		}
		if item.HasDiscount() {
			if item.DiscountIsPercent {
				hi.Discount = "Disc: " + item.Discount.String() + "%"
			} else {
				hi.Discount = "Disc: -" + currencyHTML(item.Discount)
			}
		}
		view.Items = append(view.Items, hi)
	}

	for _, p := range data.Payments {
		label := p.Method
		if p.Reference != "" {
			label += " (" + p.Reference + ")"
		}
		view.Payments = append(view.Payments, htmlPayment{
			Label:  label,
			Amount: currencyHTML(p.Amount),
		})
	}

	if r.layout.QRContent != "" {
		view.QRImageURL = "https://api.qrserver.com/v1/create-qr-code/?size=140x140&data=" +
			url.QueryEscape(r.layout.QRContent)
	}

	return view
}

// Both paths must show identical figures, so the fallback reuses the thermal
// formatter's amount rendering.
func amountHTML(d decimal.Decimal) string {
	return escpos.Amount(d)
}

func currencyHTML(d decimal.Decimal) string {
	return escpos.Currency(d)
}

const receiptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Receipt {{.SaleNo}}</title>
<style>
  body { margin: 0; font-family: "Courier New", monospace; font-size: 12px; }
  .receipt { width: 80mm; padding: 4mm; box-sizing: border-box; }
  .center { text-align: center; }
  .shop { font-size: 20px; font-weight: bold; }
  .divider { border-top: 1px dashed #000; margin: 4px 0; }
  table { width: 100%; border-collapse: collapse; }
  th, td { padding: 1px 0; vertical-align: top; }
  th { text-align: left; border-bottom: 1px dashed #000; }
  .num { text-align: right; }
  .row { display: flex; justify-content: space-between; }
  .total { font-size: 15px; font-weight: bold; }
  .bold { font-weight: bold; }
  .disc { padding-left: 8px; font-size: 11px; }
  img.qr { margin-top: 4px; }
  @media print { body { width: 80mm; } }
</style>
</head>
<body>
<div class="receipt">
  <div class="center">
    <div class="shop">{{.ShopName}}</div>
    {{range .HeaderLines}}<div>{{.}}</div>{{end}}
  </div>
  <div class="divider"></div>
  <div class="row"><span>Sale #{{.SaleNo}}</span><span>{{.Date}}</span></div>
  {{if .Cashier}}<div>Cashier: {{.Cashier}}</div>{{end}}
  {{if .CustomerName}}<div>Customer: {{.CustomerName}}</div>{{end}}
  {{if .Phone}}<div>Phone: {{.Phone}}</div>{{end}}
  <div class="divider"></div>
  <table>
    <tr><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Total</th></tr>
    {{range .Items}}
    <tr><td>{{.Label}}</td><td class="num">{{.Qty}}</td><td class="num">{{.Price}}</td><td class="num">{{.Total}}</td></tr>
    {{if .Discount}}<tr><td class="disc" colspan="4">{{.Discount}}</td></tr>{{end}}
    {{end}}
  </table>
  <div class="divider"></div>
  {{if .HasDiscount}}
  <div class="row"><span>Subtotal</span><span>{{.Subtotal}}</span></div>
  <div class="row"><span>Discount</span><span>-{{.Discount}}</span></div>
  {{end}}
  <div class="row total"><span>TOTAL</span><span>{{.Total}}</span></div>
  <div class="divider"></div>
  {{range .Payments}}<div class="row"><span>{{.Label}}</span><span>{{.Amount}}</span></div>{{end}}
  <div class="row"><span>Total Paid</span><span>{{.TotalPaid}}</span></div>
  {{if .Balance}}<div class="row bold"><span>CREDIT DUE</span><span>{{.Balance}}</span></div>{{end}}
  {{if .Change}}<div class="row bold"><span>CHANGE</span><span>{{.Change}}</span></div>{{end}}
  {{if .Notes}}<div>Note: {{.Notes}}</div>{{end}}
  <div class="divider"></div>
  <div class="center">
    {{range .FooterLines}}<div>{{.}}</div>{{end}}
    {{if .QRImageURL}}
    {{if .QRInviteLine}}<div>{{.QRInviteLine}}</div>{{end}}
    <img class="qr" src="{{.QRImageURL}}" alt="QR" width="140" height="140">
    {{end}}
  </div>
</div>
<script>
  window.onload = function () { window.print(); };
  window.onafterprint = function () { window.close(); };
</script>
</body>
</html>`
