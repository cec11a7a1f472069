// internal/scope/session.go
package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"scope-service/internal/protocol"
	"scope-service/internal/scpi"
	"scope-service/internal/telemetry"
	"scope-service/internal/utils"
)

// ErrNotConnected is returned when an operation needs an instrument but
// the session was opened without one.
var ErrNotConnected = errors.New("scope: no instrument connected")

// Session owns one instrument connection for its whole lifetime: the
// transport handle, the dispatcher bound to it, and the two fixed sample
// buffers the acquisition cycle overwrites in place. The session is the
// sole owner of that state; access is serialized through its mutex so at
// most one request is ever outstanding on the instrument.
type Session struct {
	transport  protocol.Transport
	dispatcher *scpi.Dispatcher
	logger     *utils.InstrumentLogger
	identity   string

	mutex     sync.Mutex
	buffers   [2]telemetry.SampleBuffer
	preambles [2]*telemetry.Preamble
	latest    *Acquisition
}

// NewSession creates a session bound to the given transport
func NewSession(transport protocol.Transport, logger *zap.Logger) *Session {
	return &Session{
		transport:  transport,
		dispatcher: scpi.NewDispatcher(transport, logger),
		logger:     utils.NewInstrumentLogger(logger, string(transport.Kind())),
	}
}

// NewDetachedSession creates a session without an instrument. Every
// acquisition fails with ErrNotConnected; the rest of the application
// keeps running. This backs the proceed-without-device choice at startup.
func NewDetachedSession(logger *zap.Logger) *Session {
	return &Session{
		logger: utils.NewInstrumentLogger(logger, "none"),
	}
}

// Connect opens the transport, identifies the instrument and runs the
// acquisition setup sequence
func (s *Session) Connect(ctx context.Context) error {
	if s.transport == nil {
		return ErrNotConnected
	}

	if err := s.transport.Open(ctx); err != nil {
		return err
	}

	identity, err := s.dispatcher.Query(ctx, scpi.TDS_COMMANDS.IDENTIFY)
	if err != nil {
		s.transport.Close()
		return fmt.Errorf("identify instrument: %w", err)
	}
	s.identity = identity
	s.logger.Info("Instrument identified", zap.String("identity", identity))

	setup := []string{
		scpi.TDS_COMMANDS.EVENT_ENABLE,
		scpi.TDS_COMMANDS.STATUS_ENABLE,
		scpi.TDS_COMMANDS.SERVICE_ENABLE,
		scpi.TDS_COMMANDS.DATA_INIT,
	}
	for _, command := range setup {
		if err := s.dispatcher.Transmit(ctx, command); err != nil {
			s.transport.Close()
			return fmt.Errorf("acquisition setup: %w", err)
		}
	}

	return nil
}

// Close closes the underlying transport
func (s *Session) Close() error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Close()
}

// Connected reports whether an instrument is attached and open
func (s *Session) Connected() bool {
	return s.transport != nil && s.transport.IsOpen()
}

// Identity returns the instrument identification string
func (s *Session) Identity() string {
	return s.identity
}

// Latest returns the most recent successful acquisition, or nil
func (s *Session) Latest() *Acquisition {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.latest
}
