// internal/discovery/discovery.go
package discovery

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/gousb"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// USBDevice describes one USB device seen on the bus
type USBDevice struct {
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
	Bus       int    `json:"bus"`
	Address   int    `json:"address"`
	Matches   bool   `json:"matches"`
}

// Report lists every attachment point an instrument session could be
// opened on.
type Report struct {
	USBDevices  []USBDevice `json:"usb_devices"`
	CharDevices []string    `json:"char_devices"`
	SerialPorts []string    `json:"serial_ports"`
}

// Probe scans the USB bus, the character-device pattern and the serial
// port list. Scan failures are logged and leave that section empty; a
// machine without one of the buses still gets a report.
func Probe(vendorID, productID, pattern string, logger *zap.Logger) *Report {
	report := &Report{}

	wantVendor, err := parseHexID(vendorID)
	if err != nil {
		logger.Warn("Invalid vendor ID", zap.String("vendor_id", vendorID), zap.Error(err))
	}
	wantProduct, err := parseHexID(productID)
	if err != nil {
		logger.Warn("Invalid product ID", zap.String("product_id", productID), zap.Error(err))
	}

	usbContext := gousb.NewContext()
	defer usbContext.Close()

	_, err = usbContext.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		report.USBDevices = append(report.USBDevices, USBDevice{
			VendorID:  fmt.Sprintf("0x%04x", uint16(desc.Vendor)),
			ProductID: fmt.Sprintf("0x%04x", uint16(desc.Product)),
			Bus:       desc.Bus,
			Address:   desc.Address,
			Matches:   desc.Vendor == wantVendor && desc.Product == wantProduct,
		})
		// Enumerate only, open nothing.
		return false
	})
	if err != nil {
		logger.Warn("USB bus scan failed", zap.Error(err))
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		logger.Warn("Character device scan failed",
			zap.String("pattern", pattern), zap.Error(err))
	}
	report.CharDevices = matches

	ports, err := serial.GetPortsList()
	if err != nil {
		logger.Warn("Serial port scan failed", zap.Error(err))
	}
	report.SerialPorts = ports

	return report
}

// parseHexID parses hex ID string (0x1234 or 1234)
func parseHexID(hexStr string) (gousb.ID, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(hexStr, "0x"), 16, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(id), nil
}
