// internal/protocol/line_transport.go
package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"scope-service/internal/config"
)

// LineTransport implements Transport over a line-oriented stream: the
// kernel usbtmc character device, or an RS-232 option-module serial port
// when one is configured. Commands go out newline-terminated; responses
// are either a newline-terminated line or an exact byte count for binary
// curve payloads. The stream is strictly sequential and single-client, so
// no tag or header framing is needed.
type LineTransport struct {
	config *config.LineConfig
	stream io.ReadWriteCloser
	reader *bufio.Reader
	path   string
	logger *zap.Logger
	mutex  sync.Mutex
	isOpen bool
	stats  *Stats
}

// readDeadliner is satisfied by character-device streams; serial ports
// get their read timeout at open time instead.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// NewLineTransport creates a new line-oriented transport
func NewLineTransport(cfg *config.LineConfig, logger *zap.Logger) *LineTransport {
	return &LineTransport{
		config: cfg,
		logger: logger.With(zap.String("transport", "line")),
		stats:  &Stats{},
	}
}

// Kind reports the transport variant
func (lt *LineTransport) Kind() Kind {
	return KindLine
}

// Open opens the configured serial port, or the first character device
// matching the configured glob pattern
func (lt *LineTransport) Open(ctx context.Context) error {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	if lt.isOpen {
		return nil
	}

	var stream io.ReadWriteCloser
	var path string

	if lt.config.Port != "" {
		mode := &serial.Mode{
			BaudRate: lt.config.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}

		port, err := serial.Open(lt.config.Port, mode)
		if err != nil {
			return fmt.Errorf("failed to open serial port: %w", err)
		}
		if err := port.SetReadTimeout(lt.config.Timeout); err != nil {
			port.Close()
			return fmt.Errorf("failed to set read timeout: %w", err)
		}

		stream = port
		path = lt.config.Port
	} else {
		matches, err := filepath.Glob(lt.config.Pattern)
		if err != nil {
			return fmt.Errorf("invalid device pattern %q: %w", lt.config.Pattern, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no instrument device matches %q", lt.config.Pattern)
		}

		file, err := os.OpenFile(matches[0], os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("failed to open instrument device: %w", err)
		}

		stream = file
		path = matches[0]
	}

	lt.stream = stream
	lt.reader = bufio.NewReader(stream)
	lt.path = path
	lt.isOpen = true
	lt.stats.IsConnected = true
	lt.stats.LastActivity = time.Now()

	lt.logger.Info("Line transport opened successfully", zap.String("path", path))
	return nil
}

// Close closes the underlying stream
func (lt *LineTransport) Close() error {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	if !lt.isOpen || lt.stream == nil {
		return nil
	}

	if err := lt.stream.Close(); err != nil {
		lt.logger.Error("Failed to close instrument device", zap.Error(err))
		return fmt.Errorf("failed to close instrument device: %w", err)
	}

	lt.stream = nil
	lt.reader = nil
	lt.isOpen = false
	lt.stats.IsConnected = false

	lt.logger.Info("Line transport closed")
	return nil
}

// IsOpen returns whether the transport is open
func (lt *LineTransport) IsOpen() bool {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()
	return lt.isOpen && lt.stream != nil
}

// Transmit writes the command followed by a single newline
func (lt *LineTransport) Transmit(ctx context.Context, command []byte) error {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	if !lt.isOpen || lt.stream == nil {
		return fmt.Errorf("line transport not open")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data := make([]byte, 0, len(command)+1)
	data = append(data, command...)
	data = append(data, '\n')

	n, err := lt.stream.Write(data)
	if err != nil {
		lt.stats.ErrorCount++
		lt.logger.Error("Line write failed", zap.Error(err))
		return fmt.Errorf("failed to write to instrument device: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	lt.stats.BytesWritten += int64(len(data))
	lt.stats.OperationCount++
	lt.stats.LastActivity = time.Now()

	lt.logger.Debug("Command transmitted", zap.Int("bytes", len(command)))
	return nil
}

// Receive reads one newline-terminated response, terminator included
func (lt *LineTransport) Receive(ctx context.Context) ([]byte, error) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	if !lt.isOpen || lt.reader == nil {
		return nil, fmt.Errorf("line transport not open")
	}

	lt.armDeadline(ctx)
	line, err := lt.reader.ReadBytes('\n')
	if err != nil {
		lt.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read from instrument device: %w", err)
	}

	lt.stats.BytesRead += int64(len(line))
	lt.stats.OperationCount++
	lt.stats.LastActivity = time.Now()

	return line, nil
}

// ReceiveExact reads exactly size bytes, used for binary curve payloads
// whose length the caller knows up front
func (lt *LineTransport) ReceiveExact(ctx context.Context, size int) ([]byte, error) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	if !lt.isOpen || lt.reader == nil {
		return nil, fmt.Errorf("line transport not open")
	}

	lt.armDeadline(ctx)
	buffer := make([]byte, size)
	if _, err := io.ReadFull(lt.reader, buffer); err != nil {
		lt.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read %d bytes from instrument device: %w", size, err)
	}

	lt.stats.BytesRead += int64(size)
	lt.stats.OperationCount++
	lt.stats.LastActivity = time.Now()

	return buffer, nil
}

// armDeadline applies the configured timeout to streams that support read
// deadlines
func (lt *LineTransport) armDeadline(ctx context.Context) {
	d, ok := lt.stream.(readDeadliner)
	if !ok {
		return
	}

	deadline := time.Now().Add(lt.config.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	if err := d.SetReadDeadline(deadline); err != nil {
		lt.logger.Debug("Read deadline not supported on stream", zap.Error(err))
	}
}
