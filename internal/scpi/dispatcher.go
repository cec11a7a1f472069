// internal/scpi/dispatcher.go
package scpi

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"scope-service/internal/protocol"
)

// Dispatcher sends SCPI commands and returns raw response bytes,
// independent of which transport the session was opened with.
//
// The instrument speaks a half-duplex protocol and is itself a state
// machine: every Transmit must be consumed by the matching Receive
// before the next command goes out, and a source selection (DAT:SOU)
// only affects the query that immediately follows it. The Dispatcher
// preserves issue order exactly and never batches or reorders.
type Dispatcher struct {
	transport protocol.Transport
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher bound to an opened transport
func NewDispatcher(transport protocol.Transport, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		logger:    logger.With(zap.String("component", "dispatcher")),
	}
}

// Transmit sends one command without waiting for a response
func (d *Dispatcher) Transmit(ctx context.Context, command string) error {
	d.logger.Debug("Transmitting command", zap.String("command", command))

	if err := d.transport.Transmit(ctx, []byte(command)); err != nil {
		return fmt.Errorf("transmit %q: %w", command, err)
	}
	return nil
}

// Receive returns one raw response, trailing terminator included
func (d *Dispatcher) Receive(ctx context.Context) ([]byte, error) {
	return d.transport.Receive(ctx)
}

// Query sends a query and returns its response with the trailing
// terminator stripped
func (d *Dispatcher) Query(ctx context.Context, command string) (string, error) {
	if err := d.Transmit(ctx, command); err != nil {
		return "", err
	}

	raw, err := d.transport.Receive(ctx)
	if err != nil {
		return "", fmt.Errorf("receive response to %q: %w", command, err)
	}

	return strings.TrimRight(string(raw), "\r\n"), nil
}

// QueryBinary sends a query and returns a binary response of exactly
// size bytes, terminator included. Transports that delimit responses
// themselves verify the size; line-oriented ones read exactly that many
// bytes.
func (d *Dispatcher) QueryBinary(ctx context.Context, command string, size int) ([]byte, error) {
	if err := d.Transmit(ctx, command); err != nil {
		return nil, err
	}

	raw, err := d.transport.ReceiveExact(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("receive binary response to %q: %w", command, err)
	}

	return raw, nil
}
