// internal/escpos/encoder.go
package escpos

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineWidth is the character count of the normal font on 80mm paper.
const LineWidth = 48

// Alignment selects how Pad distributes padding around text.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// QR module size bounds accepted by GS ( k function 167.
const (
	QRModuleSizeMin = 1
	QRModuleSizeMax = 8
)

// Text encodes a string for the printer. The target firmware carries no
// extended character set, so every character is reduced to its low byte and
// anything outside the single-byte range becomes '?'. Deliberately lossy.
func Text(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 0x100 {
			out = append(out, '?')
			continue
		}
		out = append(out, byte(r))
	}
	return out
}

// Line encodes text followed by a line feed.
func Line(s string) []byte {
	return append(Text(s), ESC_POS_COMMANDS.LINE_FEED...)
}

// Pad fits text into exactly width characters: longer input is truncated,
// shorter input is padded with spaces on the side the alignment dictates.
// Center padding puts the odd remainder on the right.
func Pad(text string, width int, align Alignment) string {
	if width <= 0 {
		return ""
	}
	if len(text) > width {
		return text[:width]
	}

	gap := width - len(text)
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + text
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", gap-left)
	default:
		return text + strings.Repeat(" ", gap)
	}
}

// TwoColumn lays out a label/value pair across totalWidth characters with the
// right field right-aligned and at least one separating space. The left field
// is truncated if the pair cannot fit; a value that would overflow the line on
// its own is truncated too, so the result is always exactly totalWidth.
func TwoColumn(left, right string, totalWidth int) string {
	if totalWidth <= 0 {
		return ""
	}
	if len(right) > totalWidth-1 {
		right = right[:totalWidth-1]
	}
	return Pad(left, totalWidth-len(right)-1, AlignLeft) + " " + right
}

// Divider returns a full-width dash line.
func Divider(width int) string {
	return strings.Repeat("-", width)
}

// Amount renders a decimal with two fixed decimals and thousands separators.
func Amount(d decimal.Decimal) string {
	s := d.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}

	if neg {
		return "-" + b.String() + frac
	}
	return b.String() + frac
}

// Currency renders a decimal as a rupee amount, e.g. "Rs.1,250.00".
func Currency(d decimal.Decimal) string {
	return "Rs." + Amount(d)
}

// FeedLines emits ESC d n to advance the paper n lines.
func FeedLines(n byte) []byte {
	return append(append([]byte{}, ESC_POS_COMMANDS.FEED_LINES...), n)
}

// QRCode builds the five-block GS ( k command group that renders a QR code on
// the printer's own processor: model selection, module size, error correction
// (level M), payload store, payload print. No bitmap transfer is involved.
func QRCode(data string, moduleSize int) [][]byte {
	if moduleSize < QRModuleSizeMin {
		moduleSize = QRModuleSizeMin
	}
	if moduleSize > QRModuleSizeMax {
		moduleSize = QRModuleSizeMax
	}

	prefix := ESC_POS_COMMANDS.QR_FUNCTION_PREFIX

	// Function 165: select model 2.
	selectModel := append(append([]byte{}, prefix...), 0x04, 0x00, 0x31, 0x41, 0x32, 0x00)

	// Function 167: module size in dots.
	setSize := append(append([]byte{}, prefix...), 0x03, 0x00, 0x31, 0x43, byte(moduleSize))

	// Function 169: error correction level M.
	setErrorCorrection := append(append([]byte{}, prefix...), 0x03, 0x00, 0x31, 0x45, 0x31)

	// Function 180: store payload. Length covers the encoded payload plus the
	// three function bytes, low byte first.
	payload := Text(data)
	storeLen := len(payload) + 3
	store := append(append([]byte{}, prefix...),
		byte(storeLen&0xFF), byte(storeLen>>8), 0x31, 0x50, 0x30)
	store = append(store, payload...)

	// Function 181: print the stored payload.
	print := append(append([]byte{}, prefix...), 0x03, 0x00, 0x31, 0x51, 0x30)

	return [][]byte{selectModel, setSize, setErrorCorrection, store, print}
}
