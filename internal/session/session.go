// internal/session/session.go
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"print-agent/internal/receipt"
	"print-agent/internal/transport"
)

// State is the UI-observable snapshot of the printer session. Not persisted.
type State struct {
	IsConnected  bool   `json:"is_connected"`
	IsConnecting bool   `json:"is_connecting"`
	IsPrinting   bool   `json:"is_printing"`
	LastError    string `json:"last_error,omitempty"`
}

// PrintMode records which path delivered a receipt.
type PrintMode string

const (
	PrintModeUSB      PrintMode = "usb"
	PrintModeFallback PrintMode = "fallback"
)

// PrintResult describes the outcome of one Print call. A fallback delivery
// is a success from the caller's point of view: the sale is already
// committed and must never be blocked on hardware.
type PrintResult struct {
	Mode    PrintMode `json:"mode"`
	Warning string    `json:"warning,omitempty"`
}

// Session is the facade the rest of the application talks to. It owns the
// observable state machine and the fallback policy, and serializes
// connect/print operations with an in-flight guard so overlapping calls
// cannot interleave chunk writes on the device.
type Session struct {
	transport Transport
	formatter *receipt.Formatter
	primary   ReceiptSink
	fallback  ReceiptSink
	logger    *zap.Logger

	// op serializes connect/disconnect/print/test-print.
	op sync.Mutex

	stateMu  sync.RWMutex
	state    State
	onChange func(State)
}

// NewSession wires the session with its two sinks.
func NewSession(
	tp Transport,
	formatter *receipt.Formatter,
	primary ReceiptSink,
	fallback ReceiptSink,
	logger *zap.Logger,
) *Session {
	return &Session{
		transport: tp,
		formatter: formatter,
		primary:   primary,
		fallback:  fallback,
		logger:    logger.With(zap.String("component", "printer-session")),
	}
}

// SetOnStateChange registers a single observer for state transitions. The
// agent uses it to stream state over WebSocket to the POS UI.
func (s *Session) SetOnStateChange(fn func(State)) {
	s.stateMu.Lock()
	s.onChange = fn
	s.stateMu.Unlock()
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Start attempts a silent reconnect to a previously authorized printer.
// Finding none is the expected first-run state and surfaces no error.
func (s *Session) Start(ctx context.Context) {
	s.op.Lock()
	defer s.op.Unlock()

	ok, err := s.transport.Reconnect(ctx)
	if err != nil {
		s.logger.Warn("Silent reconnect failed", zap.Error(err))
		s.update(func(st *State) { st.IsConnected = false })
		return
	}
	if !ok {
		s.logger.Info("No previously authorized printer, staying disconnected")
		return
	}

	s.update(func(st *State) {
		st.IsConnected = true
		st.LastError = ""
	})
	s.logger.Info("Printer session restored")
}

// Connect runs the device-picker flow. A dismissed picker records a
// "no printer selected" note but is not a failure.
func (s *Session) Connect(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.update(func(st *State) { st.IsConnecting = true })

	ok, err := s.transport.Connect(ctx)
	if err != nil {
		s.update(func(st *State) {
			st.IsConnecting = false
			st.IsConnected = false
			st.LastError = err.Error()
		})
		return err
	}
	if !ok {
		s.update(func(st *State) {
			st.IsConnecting = false
			st.IsConnected = false
			st.LastError = "no printer selected"
		})
		return nil
	}

	s.update(func(st *State) {
		st.IsConnecting = false
		st.IsConnected = true
		st.LastError = ""
	})
	return nil
}

// ConnectTo connects to an explicitly selected device.
func (s *Session) ConnectTo(ctx context.Context, info transport.DeviceInfo) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.update(func(st *State) { st.IsConnecting = true })

	if err := s.transport.ConnectTo(ctx, info); err != nil {
		s.update(func(st *State) {
			st.IsConnecting = false
			st.IsConnected = false
			st.LastError = err.Error()
		})
		return err
	}

	s.update(func(st *State) {
		st.IsConnecting = false
		st.IsConnected = true
		st.LastError = ""
	})
	return nil
}

// Disconnect releases the printer.
func (s *Session) Disconnect() {
	s.op.Lock()
	defer s.op.Unlock()

	s.transport.Disconnect()
	s.update(func(st *State) {
		st.IsConnected = false
		st.IsPrinting = false
	})
}

// Print delivers one receipt. The native path is tried first; any transport
// failure marks the session disconnected and triggers the HTML fallback
// exactly once with the same data. Print only returns an error for invalid
// input — printing problems are recorded in the state and as a warning, and
// never abort the caller's sale flow.
func (s *Session) Print(ctx context.Context, data *receipt.ReceiptData) (*PrintResult, error) {
	if data == nil {
		return nil, errors.New("receipt data is required")
	}

	s.op.Lock()
	defer s.op.Unlock()

	s.update(func(st *State) { st.IsPrinting = true })

	err := s.primary.Deliver(ctx, data)
	if err == nil {
		s.update(func(st *State) {
			st.IsPrinting = false
			st.IsConnected = true
			st.LastError = ""
		})
		return &PrintResult{Mode: PrintModeUSB}, nil
	}

	s.logger.Warn("Native print failed, falling back to HTML",
		zap.String("sale_no", data.SaleNo),
		zap.Error(err),
	)
	s.update(func(st *State) {
		st.IsPrinting = false
		st.IsConnected = false
		st.LastError = err.Error()
	})

	result := &PrintResult{Mode: PrintModeFallback}
	if fbErr := s.fallback.Deliver(ctx, data); fbErr != nil {
		// The document could not be shown either. Surface a warning; the
		// sale itself is already committed.
		s.logger.Error("HTML fallback failed",
			zap.String("sale_no", data.SaleNo),
			zap.Error(fbErr),
		)
		result.Warning = fbErr.Error()
		s.update(func(st *State) { st.LastError = fbErr.Error() })
	}

	return result, nil
}

// TestPrint sends the fixed connectivity-check buffer through the native
// path. Unlike Print it fails hard: the operator asked about the hardware.
func (s *Session) TestPrint(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.update(func(st *State) { st.IsPrinting = true })

	if err := s.transport.Send(ctx, s.formatter.TestPage()); err != nil {
		s.update(func(st *State) {
			st.IsPrinting = false
			st.IsConnected = false
			st.LastError = err.Error()
		})
		return err
	}

	s.update(func(st *State) {
		st.IsPrinting = false
		st.IsConnected = true
		st.LastError = ""
	})
	return nil
}

// NotifyDeviceLost reflects an externally observed unplug into the session.
func (s *Session) NotifyDeviceLost(reason string) {
	s.transport.Disconnect()
	s.update(func(st *State) {
		st.IsConnected = false
		st.IsPrinting = false
		st.LastError = reason
	})
	s.logger.Warn("Printer lost", zap.String("reason", reason))
}

// update mutates the state under lock and notifies the observer with the
// new snapshot.
func (s *Session) update(mutate func(*State)) {
	s.stateMu.Lock()
	mutate(&s.state)
	snapshot := s.state
	observer := s.onChange
	s.stateMu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
}
