// internal/receipt/formatter.go
package receipt

import (
	"bytes"
	"strconv"
	"strings"

	"print-agent/internal/escpos"
)

// Fixed column widths of the items table. With the three separating spaces
// they fill the 48-character line exactly.
const (
	colItem  = 21
	colQty   = 4
	colPrice = 9
	colTotal = 11
)

// Layout carries the business content of the receipt frame: shop identity,
// footer courtesy lines and the QR invitation. These are configuration, not
// protocol.
type Layout struct {
	ShopName     string
	HeaderLines  []string // tagline, address, contact
	FooterLines  []string // thank-you lines
	QRInviteLine string
	QRContent    string
	QRModuleSize int
	DrawerPin    int
}

// Formatter converts one ReceiptData into one complete ESC/POS command
// buffer. It performs no I/O and no validation of business figures.
type Formatter struct {
	layout Layout
}

// NewFormatter creates a formatter for the given layout.
func NewFormatter(layout Layout) *Formatter {
	if layout.QRModuleSize == 0 {
		layout.QRModuleSize = 6
	}
	return &Formatter{layout: layout}
}

// Format builds the full command buffer for a receipt: header, items table
// with word wrap, totals, payment breakdown, QR footer and a partial cut.
// An empty item list still yields a valid buffer.
func (f *Formatter) Format(data *ReceiptData) []byte {
	var buf bytes.Buffer
	cmd := escpos.ESC_POS_COMMANDS

	// 1. Device init, optional drawer kick.
	buf.Write(cmd.INITIALIZE)
	buf.Write(cmd.SELECT_CHARSET_PC437)
	if data.OpenDrawer {
		buf.Write(f.drawerKick())
	}

	// 2. Shop header.
	buf.Write(cmd.ALIGN_CENTER)
	buf.Write(cmd.TEXT_BOLD_ON)
	buf.Write(cmd.TEXT_SIZE_TRIPLE)
	buf.Write(escpos.Line(f.layout.ShopName))
	buf.Write(cmd.TEXT_SIZE_NORMAL)
	buf.Write(cmd.TEXT_BOLD_OFF)
	for _, line := range f.layout.HeaderLines {
		buf.Write(escpos.Line(line))
	}
	buf.Write(cmd.ALIGN_LEFT)
	f.divider(&buf)

	// 3. Sale metadata.
	buf.Write(escpos.Line(escpos.TwoColumn(
		"Sale #"+data.SaleNo,
		data.Date.Format("02/01/2006 3:04 PM"),
		escpos.LineWidth,
	)))
	if data.Cashier != "" {
		buf.Write(escpos.Line("Cashier: " + data.Cashier))
	}
	if data.CustomerName != "" {
		buf.Write(escpos.Line("Customer: " + data.CustomerName))
	}
	if data.CustomerPhone != "" {
		buf.Write(escpos.Line("Phone: " + data.CustomerPhone))
	}
	f.divider(&buf)

	// 4. Items table header.
	buf.Write(cmd.TEXT_BOLD_ON)
	buf.Write(escpos.Line(f.columns("Item", "Qty", "Price", "Total")))
	buf.Write(cmd.TEXT_BOLD_OFF)
	f.divider(&buf)

	// 5. Item lines.
	for _, item := range data.Items {
		f.writeItem(&buf, item)
	}
	f.divider(&buf)

	// 6. Totals.
	if data.Discount.IsPositive() {
		buf.Write(escpos.Line(escpos.TwoColumn("Subtotal", escpos.Currency(data.Subtotal), escpos.LineWidth)))
		buf.Write(escpos.Line(escpos.TwoColumn("Discount", "-"+escpos.Currency(data.Discount), escpos.LineWidth)))
	}
	buf.Write(cmd.TEXT_BOLD_ON)
	buf.Write(cmd.TEXT_SIZE_DOUBLE_HEIGHT)
	buf.Write(escpos.Line(escpos.TwoColumn("TOTAL", escpos.Currency(data.Total), escpos.LineWidth)))
	buf.Write(cmd.TEXT_SIZE_NORMAL)
	buf.Write(cmd.TEXT_BOLD_OFF)
	f.divider(&buf)

	// 7. Payments.
	for _, p := range data.Payments {
		label := p.Method
		if p.Reference != "" {
			label += " (" + p.Reference + ")"
		}
		buf.Write(escpos.Line(escpos.TwoColumn(label, escpos.Currency(p.Amount), escpos.LineWidth)))
	}
	buf.Write(escpos.Line(escpos.TwoColumn("Total Paid", escpos.Currency(data.TotalPaid), escpos.LineWidth)))
	if data.Balance.IsPositive() {
		buf.Write(cmd.TEXT_BOLD_ON)
		buf.Write(escpos.Line(escpos.TwoColumn("CREDIT DUE", escpos.Currency(data.Balance), escpos.LineWidth)))
		buf.Write(cmd.TEXT_BOLD_OFF)
	}
	if data.Change.IsPositive() {
		buf.Write(cmd.TEXT_BOLD_ON)
		buf.Write(escpos.Line(escpos.TwoColumn("CHANGE", escpos.Currency(data.Change), escpos.LineWidth)))
		buf.Write(cmd.TEXT_BOLD_OFF)
	}

	if data.Notes != "" {
		buf.Write(escpos.Line("Note: " + data.Notes))
	}

	// 8. Footer with the native QR invitation.
	f.divider(&buf)
	buf.Write(cmd.ALIGN_CENTER)
	for _, line := range f.layout.FooterLines {
		buf.Write(escpos.Line(line))
	}
	if f.layout.QRContent != "" {
		if f.layout.QRInviteLine != "" {
			buf.Write(escpos.Line(f.layout.QRInviteLine))
		}
		for _, block := range escpos.QRCode(f.layout.QRContent, f.layout.QRModuleSize) {
			buf.Write(block)
		}
	}
	buf.Write(cmd.ALIGN_LEFT)
	buf.Write(escpos.FeedLines(4))
	buf.Write(cmd.CUT_PARTIAL)

	return buf.Bytes()
}

// TestPage builds the minimal connectivity-check buffer.
func (f *Formatter) TestPage() []byte {
	var buf bytes.Buffer
	cmd := escpos.ESC_POS_COMMANDS

	buf.Write(cmd.INITIALIZE)
	buf.Write(cmd.ALIGN_CENTER)
	buf.Write(cmd.TEXT_BOLD_ON)
	buf.Write(escpos.Line("TEST PRINT"))
	buf.Write(cmd.TEXT_BOLD_OFF)
	buf.Write(escpos.Line("Printer connection OK"))
	buf.Write(cmd.ALIGN_LEFT)
	buf.Write(escpos.FeedLines(4))
	buf.Write(cmd.CUT_PARTIAL)

	return buf.Bytes()
}

// writeItem prints one item: the first wrapped label line alongside the
// numeric columns, overflow label lines indented below, and the per-line
// discount when one exists.
func (f *Formatter) writeItem(buf *bytes.Buffer, item ReceiptItem) {
	lines := wrapLabel(item.Label(), colItem)

	buf.Write(escpos.Line(f.columns(
		lines[0],
		strconv.Itoa(item.Qty),
		escpos.Amount(item.UnitPrice),
		escpos.Amount(item.LineTotal),
	)))
	for _, overflow := range lines[1:] {
		buf.Write(escpos.Line("  " + overflow))
	}

	if item.HasDiscount() {
		if item.DiscountIsPercent {
			buf.Write(escpos.Line("  Disc: " + item.Discount.String() + "%"))
		} else {
			buf.Write(escpos.Line("  Disc: -" + escpos.Currency(item.Discount)))
		}
	}
}

// columns renders one table row with the fixed widths.
func (f *Formatter) columns(item, qty, price, total string) string {
	return escpos.Pad(item, colItem, escpos.AlignLeft) + " " +
		escpos.Pad(qty, colQty, escpos.AlignRight) + " " +
		escpos.Pad(price, colPrice, escpos.AlignRight) + " " +
		escpos.Pad(total, colTotal, escpos.AlignRight)
}

func (f *Formatter) divider(buf *bytes.Buffer) {
	buf.Write(escpos.Line(escpos.Divider(escpos.LineWidth)))
}

func (f *Formatter) drawerKick() []byte {
	if f.layout.DrawerPin == 1 || f.layout.DrawerPin == 5 {
		return escpos.ESC_POS_COMMANDS.DRAWER_KICK_PIN5
	}
	return escpos.ESC_POS_COMMANDS.DRAWER_KICK_PIN2
}

// wrapLabel word-wraps a label greedily at the column width, breaking at the
// last space at or before the limit and hard-breaking a single word that
// exceeds it. Always returns at least one line.
func wrapLabel(label string, width int) []string {
	if len(label) <= width {
		return []string{label}
	}

	var lines []string
	rest := label
	for len(rest) > width {
		cut := strings.LastIndexByte(rest[:width+1], ' ')
		if cut <= 0 {
			lines = append(lines, rest[:width])
			rest = rest[width:]
			continue
		}
		lines = append(lines, rest[:cut])
		rest = rest[cut+1:]
	}
	if rest != "" {
		lines = append(lines, rest)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}
