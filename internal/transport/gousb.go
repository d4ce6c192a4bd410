// internal/transport/gousb.go
package transport

import (
	"context"
	"sync"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

// usbSupported probes the host USB subsystem once at startup.
func usbSupported() bool {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	_, err := usbCtx.OpenDevices(func(*gousb.DeviceDesc) bool { return false })
	return err == nil
}

// enumerateDevices lists every USB device on the bus with its descriptor
// strings. No vendor/product filter: the deployment decides what a printer
// looks like.
func enumerateDevices(ctx context.Context, logger *zap.Logger) ([]DeviceInfo, error) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	devices, err := usbCtx.OpenDevices(func(*gousb.DeviceDesc) bool { return true })
	if err != nil {
		// OpenDevices can return partial results alongside an error when one
		// device refuses to open; keep what we got.
		logger.Warn("USB enumeration reported errors", zap.Error(err))
	}

	var infos []DeviceInfo
	for _, dev := range devices {
		select {
		case <-ctx.Done():
			dev.Close()
			continue
		default:
		}

		desc := dev.Desc
		info := DeviceInfo{
			VendorID:  uint16(desc.Vendor),
			ProductID: uint16(desc.Product),
		}
		if s, err := dev.Manufacturer(); err == nil {
			info.Manufacturer = s
		}
		if s, err := dev.Product(); err == nil {
			info.Product = s
		}

		infos = append(infos, info)
		dev.Close()
	}

	if len(infos) == 0 && err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// usbPort holds one initialized device: opened handle, configuration 1,
// claimed interface 0 and the first bulk OUT endpoint of its first alternate
// setting.
type usbPort struct {
	usbCtx   *gousb.Context
	device   *gousb.Device
	cfg      *gousb.Config
	intf     *gousb.Interface
	out      *gousb.OutEndpoint
	endpoint int

	mu     sync.Mutex
	closed bool

	logger *zap.Logger
}

// openUSBPort performs the device initialization sequence of the 80mm
// profile. A device without a bulk OUT endpoint is a fatal configuration
// error for that device.
func openUSBPort(_ context.Context, info DeviceInfo, logger *zap.Logger) (printerPort, error) {
	usbCtx := gousb.NewContext()

	device, err := usbCtx.OpenDeviceWithVIDPID(gousb.ID(info.VendorID), gousb.ID(info.ProductID))
	if err != nil {
		usbCtx.Close()
		return nil, err
	}
	if device == nil {
		usbCtx.Close()
		return nil, ErrUSBUnavailable
	}

	// The kernel usblp driver may hold the interface.
	if err := device.SetAutoDetach(true); err != nil {
		logger.Warn("SetAutoDetach not supported", zap.Error(err))
	}

	cfg, err := device.Config(1)
	if err != nil {
		device.Close()
		usbCtx.Close()
		return nil, err
	}

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		device.Close()
		usbCtx.Close()
		return nil, err
	}

	epNum := -1
	for _, ep := range intf.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && ep.TransferType == gousb.TransferTypeBulk {
			epNum = ep.Number
			break
		}
	}
	if epNum < 0 {
		intf.Close()
		cfg.Close()
		device.Close()
		usbCtx.Close()
		return nil, ErrNoBulkOutEndpoint
	}

	out, err := intf.OutEndpoint(epNum)
	if err != nil {
		intf.Close()
		cfg.Close()
		device.Close()
		usbCtx.Close()
		return nil, err
	}

	logger.Debug("USB device initialized",
		zap.String("device", info.Key()),
		zap.Int("endpoint", epNum),
	)

	return &usbPort{
		usbCtx:   usbCtx,
		device:   device,
		cfg:      cfg,
		intf:     intf,
		out:      out,
		endpoint: epNum,
		logger:   logger,
	}, nil
}

func (p *usbPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrNotConnected
	}
	return p.out.Write(data)
}

func (p *usbPort) Endpoint() int {
	return p.endpoint
}

func (p *usbPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *usbPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	p.intf.Close()
	if err := p.cfg.Close(); err != nil {
		p.logger.Debug("Config close error", zap.Error(err))
	}
	if err := p.device.Close(); err != nil {
		p.logger.Debug("Device close error", zap.Error(err))
	}
	return p.usbCtx.Close()
}
