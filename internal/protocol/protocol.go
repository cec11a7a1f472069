// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"
)

// Kind identifies which transport variant a session was opened with.
// The variant is selected once at session-open time; callers never
// branch on it per operation.
type Kind string

const (
	// KindBulk drives the instrument's native bulk endpoints with the
	// tagged 12-byte header framing.
	KindBulk Kind = "bulk"
	// KindLine writes newline-terminated commands to a character device
	// or serial port, with no framing of its own.
	KindLine Kind = "line"
)

// Transport represents a command/response channel to the instrument.
// The protocol is half duplex: every Transmit must be consumed by the
// matching Receive (or ReceiveExact) before the next Transmit.
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Kind reports the transport variant.
	Kind() Kind

	// Transmit frames and sends one SCPI command or query.
	Transmit(ctx context.Context, command []byte) error

	// Receive returns one complete logical response, trailing
	// terminator included; callers strip it.
	Receive(ctx context.Context) ([]byte, error)

	// ReceiveExact returns a response of exactly size bytes. Binary
	// curve payloads are read this way on transports that cannot
	// delimit them otherwise.
	ReceiveExact(ctx context.Context, size int) ([]byte, error)
}

// Stats provides transport-level statistics
type Stats struct {
	BytesWritten   int64     `json:"bytes_written"`
	BytesRead      int64     `json:"bytes_read"`
	OperationCount int64     `json:"operation_count"`
	ErrorCount     int64     `json:"error_count"`
	LastActivity   time.Time `json:"last_activity"`
	IsConnected    bool      `json:"is_connected"`
}
