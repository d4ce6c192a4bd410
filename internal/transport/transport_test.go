package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"print-agent/internal/config"
)

// fakePort records every bulk write, in the manner of the mock transports
// used for the fiscal driver tests.
type fakePort struct {
	writes  [][]byte
	closed  bool
	failAt  int // fail on the n-th write (1-based), 0 = never
	nWrites int
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.nWrites++
	if f.failAt > 0 && f.nWrites >= f.failAt {
		return 0, errors.New("endpoint stalled")
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	f.writes = append(f.writes, cp)
	return len(p), nil
}

func (f *fakePort) Endpoint() int { return 1 }
func (f *fakePort) Closed() bool  { return f.closed }
func (f *fakePort) Close() error  { f.closed = true; return nil }

func newTestManager(t *testing.T, cfg *config.USBConfig) (*Manager, *fakePort) {
	t.Helper()
	if cfg == nil {
		cfg = &config.USBConfig{ChunkSize: 64}
	}

	port := &fakePort{}
	m := NewManager(cfg, nil, zap.NewNop())
	m.enumerate = func(context.Context) ([]DeviceInfo, error) {
		return []DeviceInfo{{VendorID: 0x04b8, ProductID: 0x0202, Product: "TM-T88V"}}, nil
	}
	m.openPort = func(context.Context, DeviceInfo) (printerPort, error) {
		return port, nil
	}
	m.supported = func() bool { return true }
	return m, port
}

func TestSendChunking(t *testing.T) {
	m, port := newTestManager(t, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	buf := bytes.Repeat([]byte{0xAB}, 200)
	if err := m.Send(context.Background(), buf); err != nil {
		t.Fatalf("Send: %v", err)
	}

	wantSizes := []int{64, 64, 64, 8}
	if len(port.writes) != len(wantSizes) {
		t.Fatalf("got %d transfers, want %d", len(port.writes), len(wantSizes))
	}
	for i, want := range wantSizes {
		if len(port.writes[i]) != want {
			t.Errorf("transfer %d size = %d, want %d", i, len(port.writes[i]), want)
		}
	}

	var joined []byte
	for _, w := range port.writes {
		joined = append(joined, w...)
	}
	if !bytes.Equal(joined, buf) {
		t.Error("reassembled chunks differ from the original buffer")
	}
}

func TestSendWithoutDevice(t *testing.T) {
	m, _ := newTestManager(t, nil)

	err := m.Send(context.Background(), []byte{0x1B, 0x40})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send without device = %v, want ErrNotConnected", err)
	}
}

func TestSendFailureInvalidatesSession(t *testing.T) {
	m, port := newTestManager(t, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	port.failAt = 2

	err := m.Send(context.Background(), bytes.Repeat([]byte{0x00}, 200))
	if err == nil {
		t.Fatal("expected transfer failure")
	}
	if m.IsConnected() {
		t.Error("session must be invalidated after a transfer failure")
	}

	// The next send finds no session; recovery needs a fresh Connect.
	if err := m.Send(context.Background(), []byte{0x0A}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("send after invalidation = %v, want ErrNotConnected", err)
	}
}

func TestSendReinitializesClosedDevice(t *testing.T) {
	m, port := newTestManager(t, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Device reports closed but is still held: Send must re-initialize.
	port.closed = true
	fresh := &fakePort{}
	m.openPort = func(context.Context, DeviceInfo) (printerPort, error) {
		return fresh, nil
	}

	if err := m.Send(context.Background(), []byte{0x1B, 0x40}); err != nil {
		t.Fatalf("Send after silent close: %v", err)
	}
	if len(fresh.writes) != 1 {
		t.Errorf("re-initialized port got %d writes, want 1", len(fresh.writes))
	}
}

func TestReconnectWithoutAuthorizedDevices(t *testing.T) {
	m, _ := newTestManager(t, nil)

	ok, err := m.Reconnect(context.Background())
	if err != nil {
		t.Fatalf("Reconnect must not fail on first run: %v", err)
	}
	if ok {
		t.Error("Reconnect without authorized devices must resolve false")
	}
	if m.IsConnected() {
		t.Error("IsConnected must stay false")
	}
}

func TestReconnectUsesConfigSeed(t *testing.T) {
	cfg := &config.USBConfig{VendorID: "0x04b8", ProductID: "0x0202", ChunkSize: 64}
	m, _ := newTestManager(t, cfg)

	ok, err := m.Reconnect(context.Background())
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !ok {
		t.Error("config-seeded device should reconnect silently")
	}
	if !m.IsConnected() {
		t.Error("expected a held session after reconnect")
	}
}

func TestConnectPickerCancelled(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.picker = cancelledPicker{}

	ok, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if ok {
		t.Error("cancelled picker must resolve to not-connected")
	}
}

type cancelledPicker struct{}

func (cancelledPicker) Pick(context.Context, []DeviceInfo) (*DeviceInfo, error) {
	return nil, nil
}

func TestConnectNoBulkEndpoint(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.openPort = func(context.Context, DeviceInfo) (printerPort, error) {
		return nil, ErrNoBulkOutEndpoint
	}

	_, err := m.Connect(context.Background())
	if !errors.Is(err, ErrNoBulkOutEndpoint) {
		t.Errorf("Connect = %v, want ErrNoBulkOutEndpoint", err)
	}
	if m.IsConnected() {
		t.Error("failed init must leave the manager disconnected")
	}
}

func TestDisconnectSwallowsCloseErrors(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.openPort = func(context.Context, DeviceInfo) (printerPort, error) {
		return &failingClosePort{}, nil
	}
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	m.Disconnect()
	if m.IsConnected() {
		t.Error("Disconnect must clear held state even when close fails")
	}
}

type failingClosePort struct{ fakePort }

func (f *failingClosePort) Close() error {
	f.closed = true
	return errors.New("device already gone")
}

func TestDevicePresent(t *testing.T) {
	m, _ := newTestManager(t, nil)

	// Nothing held yet: nothing can be present.
	present, err := m.DevicePresent(context.Background())
	if err != nil {
		t.Fatalf("DevicePresent: %v", err)
	}
	if present {
		t.Error("no held device must report not present")
	}

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	present, err = m.DevicePresent(context.Background())
	if err != nil {
		t.Fatalf("DevicePresent: %v", err)
	}
	if !present {
		t.Error("held device still enumerated must report present")
	}

	// The printer vanishes from the bus.
	m.enumerate = func(context.Context) ([]DeviceInfo, error) {
		return nil, nil
	}
	present, err = m.DevicePresent(context.Background())
	if err != nil {
		t.Fatalf("DevicePresent: %v", err)
	}
	if present {
		t.Error("unplugged device must report not present")
	}
}

func TestConnectionAndTransferEventsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	cfg := &config.USBConfig{ChunkSize: 64}
	port := &fakePort{}
	m := NewManager(cfg, nil, zap.New(core))
	m.enumerate = func(context.Context) ([]DeviceInfo, error) {
		return []DeviceInfo{{VendorID: 0x04b8, ProductID: 0x0202}}, nil
	}
	m.openPort = func(context.Context, DeviceInfo) (printerPort, error) {
		return port, nil
	}
	m.supported = func() bool { return true }

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Send(context.Background(), bytes.Repeat([]byte{0x1B}, 100)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	m.Disconnect()

	connects := logs.FilterMessage("Printer connection event").All()
	if len(connects) != 2 {
		t.Fatalf("got %d connection events, want connect and disconnect", len(connects))
	}
	if connects[0].ContextMap()["vendor_id"] != "0x04b8" {
		t.Errorf("connection event missing device identity: %v", connects[0].ContextMap())
	}

	transfers := logs.FilterMessage("Bulk transfer completed").All()
	if len(transfers) != 1 {
		t.Fatalf("got %d transfer events, want 1", len(transfers))
	}
	if got := transfers[0].ContextMap()["bytes"]; got != int64(100) {
		t.Errorf("transfer bytes = %v, want 100", got)
	}
}

func TestParseHexID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"0x04b8", 0x04b8, false},
		{"04b8", 0x04b8, false},
		{"ffff", 0xffff, false},
		{"zz", 0, true},
		{"10000", 0, true},
	}

	for _, tt := range tests {
		got, err := parseHexID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHexID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseHexID(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
