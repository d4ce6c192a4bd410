package receipt

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"print-agent/internal/escpos"
)

func testLayout() Layout {
	return Layout{
		ShopName:     "CEYLON MART",
		HeaderLines:  []string{"Fresh groceries daily", "12 Galle Road, Colombo", "Tel: 011-2345678"},
		FooterLines:  []string{"Thank you, come again!"},
		QRInviteLine: "Scan to join our community",
		QRContent:    "https://chat.whatsapp.com/invite/example",
		QRModuleSize: 6,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFormatRoundTripFigures(t *testing.T) {
	// 2 x 500 plus 1 x 1200 with 10% item discount, bill discount 50:
	// total = 1000 + 1080 - 50 = 2530, paid 2000, balance 530, no change.
	data := &ReceiptData{
		SaleNo: "00412",
		Date:   time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC),
		Items: []ReceiptItem{
			{Name: "Rice 5kg", Qty: 2, UnitPrice: dec("500"), LineTotal: dec("1000")},
			{Name: "Dry Fish Pack", Qty: 1, UnitPrice: dec("1200"), LineTotal: dec("1080"),
				Discount: dec("10"), DiscountIsPercent: true},
		},
		Subtotal:  dec("2580"),
		Discount:  dec("50"),
		Total:     dec("2530"),
		Payments:  []Payment{{Method: "CASH", Amount: dec("2000")}},
		TotalPaid: dec("2000"),
		Balance:   dec("530"),
		Change:    dec("0"),
	}

	out := string(NewFormatter(testLayout()).Format(data))

	for _, want := range []string{"Rs.2,530.00", "Rs.2,000.00", "Rs.530.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("buffer missing figure %q", want)
		}
	}
	if !strings.Contains(out, "CREDIT DUE") {
		t.Error("positive balance should render the credit line")
	}
	if strings.Contains(out, "CHANGE") {
		t.Error("zero change must not render a change line")
	}
	if !strings.Contains(out, "Disc: 10%") {
		t.Error("percent item discount not rendered")
	}
}

func TestFormatLongItemNamesNeverPanic(t *testing.T) {
	for _, length := range []int{22, 42, 100} {
		name := strings.Repeat("X", length)
		data := &ReceiptData{
			SaleNo: "1",
			Date:   time.Now(),
			Items: []ReceiptItem{
				{Name: name, Qty: 1, UnitPrice: dec("10"), LineTotal: dec("10")},
			},
			Subtotal: dec("10"), Total: dec("10"),
			Payments:  []Payment{{Method: "CASH", Amount: dec("10")}},
			TotalPaid: dec("10"),
		}

		out := NewFormatter(testLayout()).Format(data)
		if len(out) == 0 {
			t.Errorf("length %d produced an empty buffer", length)
		}
	}
}

func TestFormatEmptyItemListStillValid(t *testing.T) {
	data := &ReceiptData{SaleNo: "7", Date: time.Now()}

	out := NewFormatter(testLayout()).Format(data)

	if !bytes.HasPrefix(out, escpos.ESC_POS_COMMANDS.INITIALIZE) {
		t.Error("buffer must start with the init command")
	}
	if !bytes.HasSuffix(out, escpos.ESC_POS_COMMANDS.CUT_PARTIAL) {
		t.Error("buffer must end with the partial cut")
	}
}

func TestFormatDrawerKick(t *testing.T) {
	data := &ReceiptData{SaleNo: "8", Date: time.Now(), OpenDrawer: true}

	out := NewFormatter(testLayout()).Format(data)
	if !bytes.Contains(out, escpos.ESC_POS_COMMANDS.DRAWER_KICK_PIN2) {
		t.Error("drawer kick requested but not emitted")
	}

	data.OpenDrawer = false
	out = NewFormatter(testLayout()).Format(data)
	if bytes.Contains(out, escpos.ESC_POS_COMMANDS.DRAWER_KICK_PIN2) {
		t.Error("drawer kick emitted without request")
	}
}

func TestFormatIdempotence(t *testing.T) {
	data := &ReceiptData{
		SaleNo: "9",
		Date:   time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		Items: []ReceiptItem{
			{Name: "Tea", Qty: 3, UnitPrice: dec("90"), LineTotal: dec("270")},
		},
		Subtotal: dec("270"), Total: dec("270"),
		Payments:  []Payment{{Method: "CARD", Amount: dec("270"), Reference: "8812"}},
		TotalPaid: dec("270"),
	}

	f := NewFormatter(testLayout())
	if !bytes.Equal(f.Format(data), f.Format(data)) {
		t.Error("identical inputs must yield byte-identical buffers")
	}
}

func TestWrapLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		first string
		lines int
	}{
		{"fits", "Short", "Short", 1},
		{"breaks at space", "Chicken Kottu Full Portion", "Chicken Kottu Full", 2},
		{"hard break", strings.Repeat("A", 30), strings.Repeat("A", 21), 2},
		{"exactly width", strings.Repeat("B", 21), strings.Repeat("B", 21), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := wrapLabel(tt.label, colItem)
			if len(lines) != tt.lines {
				t.Fatalf("wrapLabel(%q) = %d lines, want %d: %v", tt.label, len(lines), tt.lines, lines)
			}
			if lines[0] != tt.first {
				t.Errorf("first line = %q, want %q", lines[0], tt.first)
			}
			for _, line := range lines {
				if len(line) > colItem {
					t.Errorf("line %q exceeds column width", line)
				}
			}
		})
	}
}

func TestTestPage(t *testing.T) {
	out := NewFormatter(testLayout()).TestPage()

	if !bytes.Contains(out, []byte("TEST PRINT")) {
		t.Error("test page missing banner")
	}
	if !bytes.HasSuffix(out, escpos.ESC_POS_COMMANDS.CUT_PARTIAL) {
		t.Error("test page missing cut")
	}
}
