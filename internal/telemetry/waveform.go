// internal/telemetry/waveform.go
package telemetry

import (
	"fmt"
	"strconv"
)

// SampleCount is the fixed number of samples per channel. The display
// contract is fixed-capacity: buffers never resize regardless of the
// instrument-reported point count.
const SampleCount = 2500

// CurveResponseSize is the on-wire size of a complete curve response:
// block header, samples, terminator. Used by transports that must read
// an exact byte count.
const CurveResponseSize = 2 + blockLengthDigits + SampleCount + 1

// blockLengthDigits is the digit width of the block-header length field
// for a 2500-point transfer.
const blockLengthDigits = 4

// SampleBuffer holds one channel's raw signed samples, overwritten in
// place on every acquisition cycle.
type SampleBuffer [SampleCount]int8

// ExtractCurve validates a raw curve response and writes its samples into
// buf. The response carries an IEEE-488.2 definite-length block: '#', one
// digit giving the width of the length field, the ASCII length, the
// samples, then a single terminator byte. The header is validated rather
// than skipped at a fixed offset.
func ExtractCurve(response []byte, buf *SampleBuffer) error {
	if len(response) < 2 {
		return fmt.Errorf("curve response too short: %d bytes", len(response))
	}
	if response[0] != '#' {
		return fmt.Errorf("curve response does not start with a block header, got %#02x", response[0])
	}

	digits := int(response[1] - '0')
	if digits < 1 || digits > 9 {
		return fmt.Errorf("invalid block header digit count %q", response[1])
	}
	if len(response) < 2+digits {
		return fmt.Errorf("curve response truncated inside block header")
	}

	declared, err := strconv.Atoi(string(response[2 : 2+digits]))
	if err != nil {
		return fmt.Errorf("invalid block length field %q: %w", response[2:2+digits], err)
	}
	if declared != SampleCount {
		return fmt.Errorf("curve block declares %d samples, want %d", declared, SampleCount)
	}

	// Samples plus one trailing terminator byte.
	if got := len(response) - 2 - digits; got != SampleCount+1 {
		return fmt.Errorf("curve payload is %d bytes, want %d", got, SampleCount+1)
	}

	samples := response[2+digits : 2+digits+SampleCount]
	for i, b := range samples {
		buf[i] = int8(b)
	}
	return nil
}

// Times returns the time axis for all samples under the given preamble
func (p *Preamble) Times() []float64 {
	times := make([]float64, SampleCount)
	for n := range times {
		times[n] = p.Time(n)
	}
	return times
}

// Voltages converts a full sample buffer to physical units
func (p *Preamble) Voltages(buf *SampleBuffer) []float64 {
	volts := make([]float64, SampleCount)
	for n, raw := range buf {
		volts[n] = p.Voltage(raw)
	}
	return volts
}
