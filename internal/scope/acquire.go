// internal/scope/acquire.go
package scope

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scope-service/internal/scpi"
	"scope-service/internal/telemetry"
)

// ChannelData is one channel's decoded waveform: the preamble the
// conversion was based on plus the converted sample vectors.
type ChannelData struct {
	Preamble *telemetry.Preamble `json:"preamble"`
	Times    []float64           `json:"times"`
	Volts    []float64           `json:"volts"`
}

// Acquisition is one complete, self-consistent snapshot of the
// instrument state: every field was read within the same cycle.
type Acquisition struct {
	ID           string                                        `json:"id"`
	Taken        time.Time                                     `json:"taken"`
	Scales       *telemetry.Scales                             `json:"scales"`
	Channels     [2]ChannelData                                `json:"channels"`
	Measurements [scpi.MeasurementSlots]*telemetry.Measurement `json:"measurements"`
	Cursors      *telemetry.CursorState                        `json:"cursors"`
}

// Acquire runs one full acquisition cycle and returns the snapshot.
// The cycle is all-or-nothing: the first failing step aborts the rest,
// the error is returned, and the previously published snapshot stays
// untouched.
func (s *Session) Acquire(ctx context.Context) (*Acquisition, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	start := time.Now()
	acquisition := &Acquisition{
		ID:    uuid.New().String(),
		Taken: start,
	}

	err := s.runCycle(ctx, acquisition)
	s.logger.LogCycle(acquisition.ID, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.latest = acquisition
	return acquisition, nil
}

// runCycle executes the fixed step order of one acquisition. Later
// steps depend on earlier ones (curve conversion needs the matching
// preamble), so the order never varies.
func (s *Session) runCycle(ctx context.Context, acquisition *Acquisition) error {
	response, err := s.dispatcher.Query(ctx, scpi.TDS_COMMANDS.SCALES)
	if err != nil {
		return fmt.Errorf("query scales: %w", err)
	}
	scales, err := telemetry.ParseScales(response)
	if err != nil {
		return fmt.Errorf("decode scales: %w", err)
	}
	acquisition.Scales = scales

	preambleCommands := [2]string{scpi.TDS_COMMANDS.PREAMBLE_CH1, scpi.TDS_COMMANDS.PREAMBLE_CH2}
	for channel := 0; channel < 2; channel++ {
		response, err := s.dispatcher.Query(ctx, preambleCommands[channel])
		if err != nil {
			return fmt.Errorf("query channel %d preamble: %w", channel+1, err)
		}
		preamble, err := telemetry.ParsePreamble(response)
		if err != nil {
			return fmt.Errorf("decode channel %d preamble: %w", channel+1, err)
		}
		s.preambles[channel] = preamble
	}

	curveCommands := [2]string{scpi.TDS_COMMANDS.CURVE_CH1, scpi.TDS_COMMANDS.CURVE_CH2}
	for channel := 0; channel < 2; channel++ {
		raw, err := s.dispatcher.QueryBinary(ctx, curveCommands[channel], telemetry.CurveResponseSize)
		if err != nil {
			return fmt.Errorf("query channel %d curve: %w", channel+1, err)
		}
		if err := telemetry.ExtractCurve(raw, &s.buffers[channel]); err != nil {
			return fmt.Errorf("decode channel %d curve: %w", channel+1, err)
		}
		preamble := s.preambles[channel]
		acquisition.Channels[channel] = ChannelData{
			Preamble: preamble,
			Times:    preamble.Times(),
			Volts:    preamble.Voltages(&s.buffers[channel]),
		}
	}

	for slot := 1; slot <= scpi.MeasurementSlots; slot++ {
		response, err := s.dispatcher.Query(ctx, fmt.Sprintf(scpi.TDS_COMMANDS.MEASUREMENT_SLOT, slot))
		if err != nil {
			return fmt.Errorf("query measurement %d: %w", slot, err)
		}
		measurement, err := telemetry.ParseMeasurement(response)
		if err != nil {
			return fmt.Errorf("decode measurement %d: %w", slot, err)
		}
		acquisition.Measurements[slot-1] = measurement
	}

	return s.readCursors(ctx, acquisition)
}

// readCursors queries the active cursor mode and then only the readout
// that mode provides
func (s *Session) readCursors(ctx context.Context, acquisition *Acquisition) error {
	response, err := s.dispatcher.Query(ctx, scpi.TDS_COMMANDS.CURSOR_MODE)
	if err != nil {
		return fmt.Errorf("query cursor mode: %w", err)
	}
	mode, err := telemetry.ParseCursorMode(response)
	if err != nil {
		return err
	}

	switch mode {
	case telemetry.CursorOff:
		acquisition.Cursors = telemetry.OffCursors()
	case telemetry.CursorTime:
		response, err := s.dispatcher.Query(ctx, scpi.TDS_COMMANDS.CURSOR_VBARS)
		if err != nil {
			return fmt.Errorf("query vbar cursors: %w", err)
		}
		acquisition.Cursors, err = telemetry.ParseVBarCursors(response)
		if err != nil {
			return err
		}
	case telemetry.CursorAmplitude:
		response, err := s.dispatcher.Query(ctx, scpi.TDS_COMMANDS.CURSOR_HBARS)
		if err != nil {
			return fmt.Errorf("query hbar cursors: %w", err)
		}
		acquisition.Cursors, err = telemetry.ParseHBarCursors(response)
		if err != nil {
			return err
		}
	}

	return nil
}
