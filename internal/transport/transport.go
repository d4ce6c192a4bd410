// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"print-agent/internal/config"
	"print-agent/internal/utils"
)

var (
	// ErrNotConnected is returned by Send when no device is held.
	ErrNotConnected = errors.New("no printer connected")

	// ErrNoBulkOutEndpoint marks a selected device that cannot receive
	// printer data. Fatal for that device.
	ErrNoBulkOutEndpoint = errors.New("device has no bulk OUT endpoint")

	// ErrUSBUnavailable means the host has no usable USB subsystem. Native
	// printing is impossible; callers fall back to the HTML path.
	ErrUSBUnavailable = errors.New("usb subsystem unavailable")
)

// DeviceInfo identifies one USB device for the picker UI.
type DeviceInfo struct {
	VendorID     uint16 `json:"vendor_id"`
	ProductID    uint16 `json:"product_id"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Key returns the vid:pid identity string.
func (d DeviceInfo) Key() string {
	return fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
}

// DevicePicker chooses one device from an enumeration. A nil result with a
// nil error means the user dismissed the chooser; that is not a failure.
// Thermal printers vary by deployment, so the list is unfiltered.
type DevicePicker interface {
	Pick(ctx context.Context, devices []DeviceInfo) (*DeviceInfo, error)
}

// AutoPicker selects the first enumerated device. Used when the caller does
// not supply an explicit selection.
type AutoPicker struct{}

func (AutoPicker) Pick(_ context.Context, devices []DeviceInfo) (*DeviceInfo, error) {
	if len(devices) == 0 {
		return nil, nil
	}
	d := devices[0]
	return &d, nil
}

// printerPort is the held slice of an initialized USB device: the claimed
// interface plus its resolved bulk OUT endpoint.
type printerPort interface {
	Write(p []byte) (int, error)
	Endpoint() int
	Closed() bool
	Close() error
}

// Manager owns the single physical printer connection. It is the only
// component allowed to open or claim the device. Lifecycle: a session is
// created by Connect/Reconnect and destroyed by Disconnect or by a transfer
// failure, which invalidates the session so the next attempt re-initializes.
type Manager struct {
	cfg    *config.USBConfig
	logger *zap.Logger
	picker DevicePicker

	mu         sync.Mutex
	port       printerPort
	current    *DeviceInfo
	plog       *utils.PrinterLogger
	authorized []DeviceInfo

	// Seams over gousb, replaced in tests.
	enumerate func(ctx context.Context) ([]DeviceInfo, error)
	openPort  func(ctx context.Context, info DeviceInfo) (printerPort, error)
	supported func() bool
}

// NewManager creates the transport manager. A VID/PID pair in the config
// seeds the authorized-device registry so Reconnect can restore the printer
// from a previous run without a chooser.
func NewManager(cfg *config.USBConfig, picker DevicePicker, logger *zap.Logger) *Manager {
	if picker == nil {
		picker = AutoPicker{}
	}

	m := &Manager{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "usb-transport")),
		picker: picker,
	}
	m.enumerate = func(ctx context.Context) ([]DeviceInfo, error) {
		return enumerateDevices(ctx, m.logger)
	}
	m.openPort = func(ctx context.Context, info DeviceInfo) (printerPort, error) {
		return openUSBPort(ctx, info, m.logger)
	}
	m.supported = usbSupported

	if info, ok := seedFromConfig(cfg); ok {
		m.authorized = append(m.authorized, info)
	}

	return m
}

// Supported is the explicit capability query for the native printing path.
func (m *Manager) Supported() bool {
	return m.supported()
}

// List enumerates all USB devices for the picker UI, unfiltered.
func (m *Manager) List(ctx context.Context) ([]DeviceInfo, error) {
	devices, err := m.enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUSBUnavailable, err)
	}
	return devices, nil
}

// Connect enumerates devices and lets the picker choose one. A dismissed
// picker resolves to (false, nil) rather than an error.
func (m *Manager) Connect(ctx context.Context) (bool, error) {
	devices, err := m.List(ctx)
	if err != nil {
		return false, err
	}

	choice, err := m.picker.Pick(ctx, devices)
	if err != nil {
		return false, fmt.Errorf("device picker failed: %w", err)
	}
	if choice == nil {
		m.logger.Info("Device picker dismissed, no printer selected")
		return false, nil
	}

	if err := m.ConnectTo(ctx, *choice); err != nil {
		return false, err
	}
	return true, nil
}

// ConnectTo initializes a specific device and records it as authorized.
func (m *Manager) ConnectTo(ctx context.Context, info DeviceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pl := m.printerLogger(info)
	if err := m.initLocked(ctx, info); err != nil {
		pl.LogConnection("connect", false, err)
		return err
	}
	m.remember(info)

	pl.LogConnection("connect", true, nil)
	m.logger.Debug("Printer endpoint resolved",
		zap.String("device", info.Key()),
		zap.Int("endpoint", m.port.Endpoint()),
	)
	return nil
}

// Reconnect restores a previously authorized device without any chooser.
// Zero authorized devices is the expected first-run state and resolves to
// (false, nil).
func (m *Manager) Reconnect(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.authorized) == 0 {
		return false, nil
	}

	info := m.authorized[0]
	pl := m.printerLogger(info)
	if err := m.initLocked(ctx, info); err != nil {
		pl.LogConnection("reconnect", false, err)
		return false, fmt.Errorf("failed to restore printer %s: %w", info.Key(), err)
	}

	pl.LogConnection("reconnect", true, nil)
	return true, nil
}

// Send streams a command buffer to the device in fixed-size bulk chunks.
// A closed-but-held device is re-initialized transparently; any transfer
// failure invalidates the session and is returned wrapped. No retries here:
// resilience lives at the session layer.
func (m *Manager) Send(ctx context.Context, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port == nil {
		return ErrNotConnected
	}

	if m.port.Closed() {
		if m.current == nil {
			return ErrNotConnected
		}
		if err := m.initLocked(ctx, *m.current); err != nil {
			return fmt.Errorf("failed to re-initialize printer: %w", err)
		}
	}

	chunk := m.cfg.ChunkSize
	if chunk <= 0 {
		chunk = 64
	}

	start := time.Now()
	for off := 0; off < len(buf); off += chunk {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := off + chunk
		if end > len(buf) {
			end = len(buf)
		}

		if _, err := m.port.Write(buf[off:end]); err != nil {
			if m.plog != nil {
				m.plog.LogTransfer(off, time.Since(start), err)
			}
			m.invalidateLocked()
			return fmt.Errorf("bulk transfer failed after %d of %d bytes: %w", off, len(buf), err)
		}
	}

	if m.plog != nil {
		m.plog.LogTransfer(len(buf), time.Since(start), nil)
	}
	return nil
}

// Disconnect releases the held device. Close errors are swallowed: the
// device may already be gone.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plog != nil {
		m.plog.LogConnection("disconnect", true, nil)
	}
	m.invalidateLocked()
}

// IsConnected reports whether a usable device session is held.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port != nil && !m.port.Closed()
}

// DevicePresent reports whether the held device still appears on the bus.
// A held handle does not observe an unplug until the next transfer, so the
// agent polls enumeration to notice losses between prints.
func (m *Manager) DevicePresent(ctx context.Context) (bool, error) {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	if current == nil {
		return false, nil
	}

	devices, err := m.enumerate(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUSBUnavailable, err)
	}

	for _, d := range devices {
		if d.VendorID == current.VendorID && d.ProductID == current.ProductID {
			return true, nil
		}
	}
	return false, nil
}

// initLocked replaces any held session with a fresh one for info. The caller
// holds m.mu.
func (m *Manager) initLocked(ctx context.Context, info DeviceInfo) error {
	if m.port != nil {
		if err := m.port.Close(); err != nil {
			m.logger.Warn("Ignoring close error during re-init", zap.Error(err))
		}
		m.port = nil
	}

	port, err := m.openPort(ctx, info)
	if err != nil {
		m.current = nil
		m.plog = nil
		return fmt.Errorf("failed to initialize device %s: %w", info.Key(), err)
	}

	m.port = port
	m.current = &info
	m.plog = m.printerLogger(info)
	return nil
}

// invalidateLocked drops the session so the next attempt re-initializes.
func (m *Manager) invalidateLocked() {
	if m.port != nil {
		if err := m.port.Close(); err != nil {
			m.logger.Debug("Ignoring close error on invalidate", zap.Error(err))
		}
		m.port = nil
	}
	m.current = nil
	m.plog = nil
}

// printerLogger builds the device-scoped logger for connection and transfer
// events.
func (m *Manager) printerLogger(info DeviceInfo) *utils.PrinterLogger {
	return utils.NewPrinterLogger(m.logger,
		fmt.Sprintf("0x%04x", info.VendorID),
		fmt.Sprintf("0x%04x", info.ProductID),
	)
}

// remember adds info to the authorized registry once.
func (m *Manager) remember(info DeviceInfo) {
	for _, a := range m.authorized {
		if a.VendorID == info.VendorID && a.ProductID == info.ProductID {
			return
		}
	}
	m.authorized = append(m.authorized, info)
}

// seedFromConfig parses an optional VID/PID pair from configuration.
func seedFromConfig(cfg *config.USBConfig) (DeviceInfo, bool) {
	if cfg == nil || cfg.VendorID == "" || cfg.ProductID == "" {
		return DeviceInfo{}, false
	}

	vid, err := parseHexID(cfg.VendorID)
	if err != nil {
		return DeviceInfo{}, false
	}
	pid, err := parseHexID(cfg.ProductID)
	if err != nil {
		return DeviceInfo{}, false
	}

	return DeviceInfo{VendorID: vid, ProductID: pid}, true
}

// ParseID parses a USB vendor or product ID from its hex form
// ("0x04b8" or "04b8").
func ParseID(hexStr string) (uint16, error) {
	return parseHexID(hexStr)
}

// parseHexID parses a hex ID string (0x1234 or 1234).
func parseHexID(hexStr string) (uint16, error) {
	if len(hexStr) > 2 && hexStr[:2] == "0x" {
		hexStr = hexStr[2:]
	}
	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(id), nil
}
