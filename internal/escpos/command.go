// internal/escpos/command.go
package escpos

// ESC_POS_COMMANDS contains the ESC/POS command definitions used by the
// 80mm receipt profile
var ESC_POS_COMMANDS = struct {
	// Basic commands
	INITIALIZE []byte

	// Text formatting
	TEXT_BOLD_ON  []byte
	TEXT_BOLD_OFF []byte
	TEXT_RESET    []byte

	// Text size (GS ! n, width/height multipliers in the nibbles)
	TEXT_SIZE_NORMAL        []byte
	TEXT_SIZE_DOUBLE_HEIGHT []byte
	TEXT_SIZE_TRIPLE        []byte

	// Text alignment
	ALIGN_LEFT   []byte
	ALIGN_CENTER []byte
	ALIGN_RIGHT  []byte

	// Character sets
	SELECT_CHARSET_PC437 []byte

	// Paper handling
	LINE_FEED  []byte
	FEED_LINES []byte // + line count byte

	// Cutting
	CUT_PARTIAL []byte

	// Cash drawer
	DRAWER_KICK_PIN2 []byte // Pin 2 (most common)
	DRAWER_KICK_PIN5 []byte // Pin 5

	// QR code (GS ( k function prefix, model/size/EC/store/print built on top)
	QR_FUNCTION_PREFIX []byte
}{
	// Basic commands
	INITIALIZE: []byte{0x1B, 0x40}, // ESC @

	// Text formatting
	TEXT_BOLD_ON:  []byte{0x1B, 0x45, 0x01}, // ESC E 1
	TEXT_BOLD_OFF: []byte{0x1B, 0x45, 0x00}, // ESC E 0
	TEXT_RESET:    []byte{0x1B, 0x21, 0x00}, // ESC ! 0

	// Text size
	TEXT_SIZE_NORMAL:        []byte{0x1D, 0x21, 0x00}, // GS ! 0
	TEXT_SIZE_DOUBLE_HEIGHT: []byte{0x1D, 0x21, 0x01}, // GS ! 1
	TEXT_SIZE_TRIPLE:        []byte{0x1D, 0x21, 0x22}, // GS ! 34

	// Text alignment
	ALIGN_LEFT:   []byte{0x1B, 0x61, 0x00}, // ESC a 0
	ALIGN_CENTER: []byte{0x1B, 0x61, 0x01}, // ESC a 1
	ALIGN_RIGHT:  []byte{0x1B, 0x61, 0x02}, // ESC a 2

	// Character sets
	SELECT_CHARSET_PC437: []byte{0x1B, 0x74, 0x00}, // ESC t 0

	// Paper handling
	LINE_FEED:  []byte{0x0A},       // LF
	FEED_LINES: []byte{0x1B, 0x64}, // ESC d + n

	// Cutting
	CUT_PARTIAL: []byte{0x1D, 0x56, 0x01}, // GS V 1

	// Cash drawer
	DRAWER_KICK_PIN2: []byte{0x1B, 0x70, 0x00, 0x19, 0x19}, // ESC p 0 25 25
	DRAWER_KICK_PIN5: []byte{0x1B, 0x70, 0x01, 0x19, 0x19}, // ESC p 1 25 25

	// QR code
	QR_FUNCTION_PREFIX: []byte{0x1D, 0x28, 0x6B}, // GS ( k
}
