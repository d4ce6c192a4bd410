// internal/session/sink.go
package session

import (
	"context"
	"errors"
	"fmt"

	"print-agent/internal/receipt"
	"print-agent/internal/transport"
)

// ErrNoPresenter means the HTML fallback had nowhere to show the document —
// the analog of a blocked print popup. Reported, never retried.
var ErrNoPresenter = errors.New("no client attached to present the fallback document")

// ReceiptSink delivers one receipt to some output. The session holds two:
// the native USB path and the HTML fallback, and switches between them by
// explicit control flow.
type ReceiptSink interface {
	Deliver(ctx context.Context, data *receipt.ReceiptData) error
}

// Transport is the slice of the USB manager the session drives.
type Transport interface {
	Connect(ctx context.Context) (bool, error)
	ConnectTo(ctx context.Context, info transport.DeviceInfo) error
	Reconnect(ctx context.Context) (bool, error)
	Send(ctx context.Context, buf []byte) error
	Disconnect()
	IsConnected() bool
}

// UsbEscPosSink renders a receipt to ESC/POS bytes and streams them over the
// USB transport.
type UsbEscPosSink struct {
	transport Transport
	formatter *receipt.Formatter
}

// NewUsbEscPosSink creates the native printing sink.
func NewUsbEscPosSink(transport Transport, formatter *receipt.Formatter) *UsbEscPosSink {
	return &UsbEscPosSink{transport: transport, formatter: formatter}
}

func (s *UsbEscPosSink) Deliver(ctx context.Context, data *receipt.ReceiptData) error {
	buf := s.formatter.Format(data)
	if err := s.transport.Send(ctx, buf); err != nil {
		return fmt.Errorf("receipt transfer failed: %w", err)
	}
	return nil
}

// Presenter shows a rendered HTML document to the operator, typically by
// pushing it to the attached POS UI which opens its print dialog.
type Presenter interface {
	Present(ctx context.Context, html string) error
}

// HtmlPrintSink renders the same receipt as a printable HTML document and
// hands it to the presenter. Used when the native path is unavailable so the
// committed sale is never blocked on hardware.
type HtmlPrintSink struct {
	renderer  *receipt.HTMLRenderer
	presenter Presenter
}

// NewHtmlPrintSink creates the fallback sink.
func NewHtmlPrintSink(renderer *receipt.HTMLRenderer, presenter Presenter) *HtmlPrintSink {
	return &HtmlPrintSink{renderer: renderer, presenter: presenter}
}

func (s *HtmlPrintSink) Deliver(ctx context.Context, data *receipt.ReceiptData) error {
	doc, err := s.renderer.Render(data)
	if err != nil {
		return fmt.Errorf("fallback document rendering failed: %w", err)
	}
	if s.presenter == nil {
		return ErrNoPresenter
	}
	if err := s.presenter.Present(ctx, doc); err != nil {
		return fmt.Errorf("fallback presentation failed: %w", err)
	}
	return nil
}
