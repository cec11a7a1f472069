// internal/telemetry/preamble.go
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// PointFormat is the instrument's sample encoding announced in the preamble
type PointFormat string

const (
	// PointFormatY carries one sample per point
	PointFormatY PointFormat = "Y"
	// PointFormatEnvelope carries min/max pairs from envelope acquisition
	PointFormatEnvelope PointFormat = "ENV"
)

// preambleFields is the exact arity of a waveform preamble response.
const preambleFields = 11

// Preamble describes how raw curve samples map to physical units.
// The instrument reports it as eleven semicolon-delimited positional
// fields; order is fixed, fields are not named on the wire.
type Preamble struct {
	WaveformID  string      `json:"waveform_id"`
	Format      PointFormat `json:"format"`
	XIncrement  float64     `json:"x_increment"`
	PointOffset int         `json:"point_offset"` // always 0 on this instrument
	XZero       float64     `json:"x_zero"`
	XUnit       string      `json:"x_unit"`
	YMultiplier float64     `json:"y_multiplier"`
	YZero       float64     `json:"y_zero"` // always 0 on this instrument
	YOffset     float64     `json:"y_offset"`
	YUnit       string      `json:"y_unit"`
	PointCount  int         `json:"point_count"`
}

// ParsePreamble decodes a preamble query response. A response with the
// wrong field count or a non-numeric field is rejected, never padded.
func ParsePreamble(response string) (*Preamble, error) {
	fields := strings.Split(response, ";")
	if len(fields) != preambleFields {
		return nil, fmt.Errorf("preamble has %d fields, want %d", len(fields), preambleFields)
	}

	format := PointFormat(fields[1])
	if format != PointFormatY && format != PointFormatEnvelope {
		return nil, fmt.Errorf("unknown point format %q", fields[1])
	}

	xIncrement, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid x increment %q: %w", fields[2], err)
	}

	pointOffset, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("invalid point offset %q: %w", fields[3], err)
	}

	xZero, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid x zero %q: %w", fields[4], err)
	}

	yMultiplier, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid y multiplier %q: %w", fields[6], err)
	}

	yZero, err := strconv.ParseFloat(fields[7], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid y zero %q: %w", fields[7], err)
	}

	yOffset, err := strconv.ParseFloat(fields[8], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid y offset %q: %w", fields[8], err)
	}

	pointCount, err := strconv.Atoi(fields[10])
	if err != nil {
		return nil, fmt.Errorf("invalid point count %q: %w", fields[10], err)
	}

	return &Preamble{
		WaveformID:  unquote(fields[0]),
		Format:      format,
		XIncrement:  xIncrement,
		PointOffset: pointOffset,
		XZero:       xZero,
		XUnit:       unquote(fields[5]),
		YMultiplier: yMultiplier,
		YZero:       yZero,
		YOffset:     yOffset,
		YUnit:       unquote(fields[9]),
		PointCount:  pointCount,
	}, nil
}

// Time returns the time of sample n: x_zero + x_increment * n
func (p *Preamble) Time(n int) float64 {
	return p.XZero + p.XIncrement*float64(n)
}

// Voltage converts one raw sample to physical units:
// y_zero + y_multiplier * (raw - y_offset)
func (p *Preamble) Voltage(raw int8) float64 {
	return p.YZero + p.YMultiplier*(float64(raw)-p.YOffset)
}

// unquote strips the surrounding quote characters the instrument puts on
// string fields
func unquote(s string) string {
	return strings.Trim(s, "\"")
}
