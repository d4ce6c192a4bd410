// internal/receipt/receipt.go
package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptData describes one printable receipt. It is a value handed over by
// the billing workflow after the sale has been committed; the print subsystem
// renders it and never recomputes business totals. The caller guarantees
// Total == Subtotal - Discount.
type ReceiptData struct {
	SaleNo        string          `json:"sale_no"`
	Date          time.Time       `json:"date"`
	Cashier       string          `json:"cashier,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []ReceiptItem   `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Payments      []Payment       `json:"payments"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Balance       decimal.Decimal `json:"balance"`
	Change        decimal.Decimal `json:"change"`
	Notes         string          `json:"notes,omitempty"`
	OpenDrawer    bool            `json:"open_drawer"`
}

// ReceiptItem is a single sold line.
type ReceiptItem struct {
	Name              string          `json:"name"`
	Size              string          `json:"size,omitempty"`
	Qty               int             `json:"qty"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	Discount          decimal.Decimal `json:"discount"`
	DiscountIsPercent bool            `json:"discount_is_percent"`
}

// Payment is one settlement entry of the sale.
type Payment struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

// Label is the display name of the item, with the size variant appended when
// one exists.
func (i ReceiptItem) Label() string {
	if i.Size != "" {
		return i.Name + " (" + i.Size + ")"
	}
	return i.Name
}

// HasDiscount reports whether the line carries its own discount.
func (i ReceiptItem) HasDiscount() bool {
	return i.Discount.IsPositive()
}
