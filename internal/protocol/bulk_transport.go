// internal/protocol/bulk_transport.go
package protocol

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"scope-service/internal/config"
)

// BulkTransport implements Transport over the instrument's native bulk
// endpoints. Outbound commands and inbound responses are framed with the
// tagged 12-byte header; multi-packet responses are reassembled until the
// device raises EOM.
type BulkTransport struct {
	config   *config.USBConfig
	ctx      *gousb.Context
	device   *gousb.Device
	intf     *gousb.Interface
	intfDone func()
	outEndpt *gousb.OutEndpoint
	inEndpt  *gousb.InEndpoint
	tags     tagCounter
	logger   *zap.Logger
	mutex    sync.Mutex
	isOpen   bool
	stats    *Stats
}

// NewBulkTransport creates a new bulk-endpoint transport
func NewBulkTransport(cfg *config.USBConfig, logger *zap.Logger) *BulkTransport {
	return &BulkTransport{
		config: cfg,
		logger: logger.With(
			zap.String("transport", "bulk"),
			zap.String("vendor_id", cfg.VendorID),
			zap.String("product_id", cfg.ProductID),
		),
		stats: &Stats{},
	}
}

// Kind reports the transport variant
func (bt *BulkTransport) Kind() Kind {
	return KindBulk
}

// Open locates the instrument by vendor/product identifier and claims its
// bulk endpoints
func (bt *BulkTransport) Open(ctx context.Context) error {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if bt.isOpen {
		return nil
	}

	vendorID, err := parseHexID(bt.config.VendorID)
	if err != nil {
		return fmt.Errorf("invalid vendor ID: %w", err)
	}

	productID, err := parseHexID(bt.config.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	bt.logger.Info("Opening bulk transport",
		zap.Int("out_endpoint", bt.config.OutEndpoint),
		zap.Int("in_endpoint", bt.config.InEndpoint),
	)

	bt.ctx = gousb.NewContext()

	device, err := bt.findAndOpenDevice(vendorID, productID)
	if err != nil {
		bt.ctx.Close()
		bt.ctx = nil
		return fmt.Errorf("failed to find instrument: %w", err)
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		bt.ctx.Close()
		bt.ctx = nil
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	outEndpt, err := intf.OutEndpoint(bt.config.OutEndpoint)
	if err != nil {
		done()
		device.Close()
		bt.ctx.Close()
		bt.ctx = nil
		return fmt.Errorf("failed to get out endpoint: %w", err)
	}

	inEndpt, err := intf.InEndpoint(bt.config.InEndpoint)
	if err != nil {
		done()
		device.Close()
		bt.ctx.Close()
		bt.ctx = nil
		return fmt.Errorf("failed to get in endpoint: %w", err)
	}

	bt.device = device
	bt.intf = intf
	bt.intfDone = done
	bt.outEndpt = outEndpt
	bt.inEndpt = inEndpt
	bt.isOpen = true
	bt.stats.IsConnected = true
	bt.stats.LastActivity = time.Now()

	bt.logger.Info("Bulk transport opened successfully")
	return nil
}

// Close releases the claimed interface and the device
func (bt *BulkTransport) Close() error {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if !bt.isOpen {
		return nil
	}

	if bt.intfDone != nil {
		bt.intfDone()
		bt.intfDone = nil
	}
	bt.intf = nil

	if bt.device != nil {
		bt.device.Close()
		bt.device = nil
	}

	if bt.ctx != nil {
		bt.ctx.Close()
		bt.ctx = nil
	}

	bt.outEndpt = nil
	bt.inEndpt = nil
	bt.isOpen = false
	bt.stats.IsConnected = false

	bt.logger.Info("Bulk transport closed")
	return nil
}

// IsOpen returns whether the transport is open
func (bt *BulkTransport) IsOpen() bool {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()
	return bt.isOpen && bt.device != nil && bt.outEndpt != nil
}

// Transmit frames one command with the next tag and writes it to the out
// endpoint
func (bt *BulkTransport) Transmit(ctx context.Context, command []byte) error {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if !bt.isOpen || bt.outEndpt == nil {
		return fmt.Errorf("bulk transport not open")
	}

	data := packCommand(bt.tags.next(), command)
	if err := bt.writePacket(ctx, data); err != nil {
		bt.stats.ErrorCount++
		bt.logger.Error("Bulk write failed", zap.Error(err))
		return err
	}

	bt.stats.BytesWritten += int64(len(data))
	bt.stats.OperationCount++
	bt.stats.LastActivity = time.Now()

	bt.logger.Debug("Command transmitted", zap.Int("bytes", len(command)))
	return nil
}

// Receive reassembles one logical response. Each iteration requests a
// chunk of at most the configured transfer size, reads one packet and
// appends its payload, until the device sets the EOM flag.
func (bt *BulkTransport) Receive(ctx context.Context) ([]byte, error) {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if !bt.isOpen || bt.inEndpt == nil {
		return nil, fmt.Errorf("bulk transport not open")
	}

	result, err := collectResponse(func() ([]byte, error) {
		request := packRequest(bt.tags.next(), uint32(bt.config.TransferSize))
		if err := bt.writePacket(ctx, request); err != nil {
			return nil, err
		}
		return bt.readPacket(ctx, headerSize+bt.config.TransferSize)
	})
	if err != nil {
		bt.stats.ErrorCount++
		return nil, err
	}

	bt.stats.BytesRead += int64(len(result))
	bt.stats.OperationCount++
	bt.stats.LastActivity = time.Now()

	return result, nil
}

// ReceiveExact reassembles one response and verifies its size. The framing
// already delimits responses, so the size only acts as a check here.
func (bt *BulkTransport) ReceiveExact(ctx context.Context, size int) ([]byte, error) {
	result, err := bt.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if len(result) != size {
		return nil, fmt.Errorf("unexpected response size: got %d bytes, want %d", len(result), size)
	}
	return result, nil
}

// writePacket writes one framed packet within the configured timeout
func (bt *BulkTransport) writePacket(ctx context.Context, data []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, bt.config.Timeout)
	defer cancel()

	n, err := bt.outEndpt.WriteContext(opCtx, data)
	if err != nil {
		return fmt.Errorf("failed to write to instrument: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// readPacket reads a single packet of at most maxBytes within the
// configured timeout
func (bt *BulkTransport) readPacket(ctx context.Context, maxBytes int) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, bt.config.Timeout)
	defer cancel()

	buffer := make([]byte, maxBytes)
	n, err := bt.inEndpt.ReadContext(opCtx, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to read from instrument: %w", err)
	}
	return buffer[:n], nil
}

// parseHexID parses hex ID string (0x1234 or 1234)
func parseHexID(hexStr string) (gousb.ID, error) {
	if len(hexStr) > 2 && hexStr[:2] == "0x" {
		hexStr = hexStr[2:]
	}

	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}

	return gousb.ID(id), nil
}

// findAndOpenDevice finds and opens the instrument by VID/PID
func (bt *BulkTransport) findAndOpenDevice(vendorID, productID gousb.ID) (*gousb.Device, error) {
	devices, err := bt.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && desc.Product == productID
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("instrument not found (VID: %04X, PID: %04X)", uint16(vendorID), uint16(productID))
	}

	if len(devices) > 1 {
		for i := 1; i < len(devices); i++ {
			devices[i].Close()
		}
		bt.logger.Warn("Multiple matching instruments found, using first one")
	}

	return devices[0], nil
}
