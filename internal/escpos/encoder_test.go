package escpos

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTextLowByteFallback(t *testing.T) {
	got := Text("Rs. 100")
	if !bytes.Equal(got, []byte("Rs. 100")) {
		t.Errorf("ascii should pass through, got %q", got)
	}

	// Code points outside the single-byte range collapse to '?'.
	got = Text("Kottu ₨世")
	want := []byte("Kottu ??")
	if !bytes.Equal(got, want) {
		t.Errorf("Text() = %q, want %q", got, want)
	}

	// High latin-1 stays a single low byte.
	got = Text("café")
	if got[len(got)-1] != 0xE9 {
		t.Errorf("expected low byte 0xE9, got %#x", got[len(got)-1])
	}
}

func TestPadWidthInvariant(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		align Alignment
	}{
		{"short left", "abc", 10, AlignLeft},
		{"short right", "abc", 10, AlignRight},
		{"short center", "abc", 10, AlignCenter},
		{"center odd remainder", "ab", 7, AlignCenter},
		{"exact", "abcdefghij", 10, AlignLeft},
		{"truncated", "this text is far too long", 10, AlignLeft},
		{"truncated right", "this text is far too long", 10, AlignRight},
		{"empty", "", 10, AlignCenter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pad(tt.text, tt.width, tt.align)
			if len(got) != tt.width {
				t.Errorf("Pad(%q, %d) length = %d, want %d", tt.text, tt.width, len(got), tt.width)
			}
		})
	}
}

func TestPadAlignment(t *testing.T) {
	if got := Pad("ab", 5, AlignLeft); got != "ab   " {
		t.Errorf("left pad = %q", got)
	}
	if got := Pad("ab", 5, AlignRight); got != "   ab" {
		t.Errorf("right pad = %q", got)
	}
	// Odd remainder goes to the right.
	if got := Pad("ab", 5, AlignCenter); got != " ab  " {
		t.Errorf("center pad = %q", got)
	}
}

func TestTwoColumn(t *testing.T) {
	tests := []struct {
		name  string
		left  string
		right string
	}{
		{"plain", "Sale #00123", "29/08/2026"},
		{"long left truncated", strings.Repeat("x", 60), "Rs.1,000.00"},
		{"empty left", "", "Rs.0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TwoColumn(tt.left, tt.right, LineWidth)
			if len(got) != LineWidth {
				t.Errorf("length = %d, want %d", len(got), LineWidth)
			}
			if !strings.HasSuffix(got, tt.right) {
				t.Errorf("output %q does not end with %q", got, tt.right)
			}
		})
	}
}

func TestTwoColumnOversizedRight(t *testing.T) {
	tests := []struct {
		name  string
		left  string
		right string
		width int
	}{
		{"right fills the line", "Total", strings.Repeat("R", LineWidth), LineWidth},
		{"right exceeds the line", "", strings.Repeat("R", 80), LineWidth},
		{"right exactly width minus one", "x", strings.Repeat("R", LineWidth-1), LineWidth},
		{"tiny width", "a", "bb", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TwoColumn(tt.left, tt.right, tt.width)
			if len(got) != tt.width {
				t.Errorf("length = %d, want %d", len(got), tt.width)
			}
		})
	}

	if got := TwoColumn("a", "b", 0); got != "" {
		t.Errorf("zero width = %q, want empty", got)
	}
}

func TestCurrencyFormatting(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "Rs.0.00"},
		{"5", "Rs.5.00"},
		{"999.9", "Rs.999.90"},
		{"1000", "Rs.1,000.00"},
		{"2530", "Rs.2,530.00"},
		{"1234567.891", "Rs.1,234,567.89"},
	}

	for _, tt := range tests {
		d, err := decimal.NewFromString(tt.in)
		if err != nil {
			t.Fatalf("bad fixture %q: %v", tt.in, err)
		}
		if got := Currency(d); got != tt.want {
			t.Errorf("Currency(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQRCodeCommandGroup(t *testing.T) {
	url := "https://chat.whatsapp.com/invite/example"
	blocks := QRCode(url, 6)

	if len(blocks) != 5 {
		t.Fatalf("expected 5 command blocks, got %d", len(blocks))
	}

	store := blocks[3]
	if !bytes.HasPrefix(store, ESC_POS_COMMANDS.QR_FUNCTION_PREFIX) {
		t.Error("store block missing GS ( k prefix")
	}

	// Stored-data length covers payload plus three function bytes, low/high.
	wantLen := len(url) + 3
	if store[3] != byte(wantLen&0xFF) || store[4] != byte(wantLen>>8) {
		t.Errorf("length prefix = (%d, %d), want (%d, %d)",
			store[3], store[4], wantLen&0xFF, wantLen>>8)
	}

	if !bytes.HasSuffix(store, []byte(url)) {
		t.Error("store block does not carry the payload")
	}

	// Module size is carried in the size block's last byte.
	if size := blocks[1][len(blocks[1])-1]; size != 6 {
		t.Errorf("module size byte = %d, want 6", size)
	}
}

func TestQRCodeLengthPrefixMatchesEncodedPayload(t *testing.T) {
	// Multi-byte runes collapse to one '?' byte each, so the declared length
	// must follow the encoded payload, not the UTF-8 source.
	url := "https://example.com/menu?city=Colombo&name=කොළඹ"
	blocks := QRCode(url, 6)

	store := blocks[3]
	payload := Text(url)

	declared := int(store[3]) | int(store[4])<<8
	if declared != len(payload)+3 {
		t.Errorf("declared length = %d, want %d", declared, len(payload)+3)
	}
	if !bytes.HasSuffix(store, payload) {
		t.Error("store block does not carry the encoded payload")
	}
	if wire := len(store) - len(ESC_POS_COMMANDS.QR_FUNCTION_PREFIX) - 2; wire != declared {
		t.Errorf("bytes on the wire after the length prefix = %d, declared %d", wire, declared)
	}
}

func TestQRCodeModuleSizeClamped(t *testing.T) {
	low := QRCode("x", 0)
	if got := low[1][len(low[1])-1]; got != QRModuleSizeMin {
		t.Errorf("module size below range clamped to %d, got %d", QRModuleSizeMin, got)
	}

	high := QRCode("x", 99)
	if got := high[1][len(high[1])-1]; got != QRModuleSizeMax {
		t.Errorf("module size above range clamped to %d, got %d", QRModuleSizeMax, got)
	}
}

func TestEncoderIdempotence(t *testing.T) {
	a := QRCode("https://example.com", 6)
	b := QRCode("https://example.com", 6)
	if len(a) != len(b) {
		t.Fatal("block counts differ")
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Errorf("block %d differs between identical invocations", i)
		}
	}

	if !bytes.Equal(Text("same input"), Text("same input")) {
		t.Error("Text not idempotent")
	}
	if !bytes.Equal(FeedLines(4), FeedLines(4)) {
		t.Error("FeedLines not idempotent")
	}
}

func TestFeedLines(t *testing.T) {
	got := FeedLines(4)
	want := []byte{0x1B, 0x64, 0x04}
	if !bytes.Equal(got, want) {
		t.Errorf("FeedLines(4) = %v, want %v", got, want)
	}
}
