// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"

	"scope-service/internal/config"
)

// CreateTransport creates a transport based on the configured kind
func CreateTransport(cfg *config.TransportConfig, logger *zap.Logger) (Transport, error) {
	switch Kind(cfg.Kind) {
	case KindBulk:
		logger.Info("Creating bulk transport",
			zap.String("vendor_id", cfg.USB.VendorID),
			zap.String("product_id", cfg.USB.ProductID),
		)
		return NewBulkTransport(&cfg.USB, logger), nil
	case KindLine:
		logger.Info("Creating line transport",
			zap.String("pattern", cfg.Line.Pattern),
			zap.String("port", cfg.Line.Port),
		)
		return NewLineTransport(&cfg.Line, logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport kind: %s", cfg.Kind)
	}
}
