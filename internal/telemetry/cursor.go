// internal/telemetry/cursor.go
package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CursorMode is the display name of the active cursor function
type CursorMode string

const (
	CursorOff       CursorMode = "OFF"
	CursorAmplitude CursorMode = "AMPLITUDE" // horizontal bars
	CursorTime      CursorMode = "TIME"      // vertical bars
)

// cursorModes maps the instrument's mode reply to its display name.
// Exactly one mode is active at a time; an unknown reply is an error,
// never a default.
var cursorModes = map[string]CursorMode{
	"OFF":   CursorOff,
	"HBARS": CursorAmplitude,
	"VBARS": CursorTime,
}

// CursorState holds the decoded cursor readouts. Fields not applicable
// to the active mode are empty strings.
type CursorState struct {
	Mode       CursorMode `json:"mode"`
	Position1  string     `json:"position1"`  // time of bar 1 (TIME mode)
	Position2  string     `json:"position2"`  // time of bar 2 (TIME mode)
	Amplitude1 string     `json:"amplitude1"` // voltage at/of bar 1
	Amplitude2 string     `json:"amplitude2"` // voltage at/of bar 2
	Delta      string     `json:"delta"`
}

// ParseCursorMode maps a cursor function reply to its display name
func ParseCursorMode(response string) (CursorMode, error) {
	mode, ok := cursorModes[response]
	if !ok {
		return "", fmt.Errorf("unknown cursor mode %q", response)
	}
	return mode, nil
}

// OffCursors returns the cursor state for the OFF mode: every positional
// field and the delta blank, whatever the instrument reports alongside.
func OffCursors() *CursorState {
	return &CursorState{Mode: CursorOff}
}

// ParseVBarCursors decodes the vertical-bar readout: two time positions,
// two voltage readouts and the time delta. Time positions and the delta
// are always shown; a voltage readout beyond the overflow sentinel is
// left blank.
func ParseVBarCursors(response string) (*CursorState, error) {
	values, err := splitFloats(response, 5)
	if err != nil {
		return nil, fmt.Errorf("vbar cursor response: %w", err)
	}

	state := &CursorState{
		Mode:      CursorTime,
		Position1: FormatMetric(values[0]) + "s",
		Position2: FormatMetric(values[1]) + "s",
		Delta:     FormatMetric(values[4]) + "s",
	}

	if math.Abs(values[2]) <= OverflowLimit {
		state.Amplitude1 = FormatMetric(values[2]) + "V"
	}
	if math.Abs(values[3]) <= OverflowLimit {
		state.Amplitude2 = FormatMetric(values[3]) + "V"
	}

	return state, nil
}

// ParseHBarCursors decodes the horizontal-bar readout: two voltage
// positions and the voltage delta, all always shown.
func ParseHBarCursors(response string) (*CursorState, error) {
	values, err := splitFloats(response, 3)
	if err != nil {
		return nil, fmt.Errorf("hbar cursor response: %w", err)
	}

	return &CursorState{
		Mode:       CursorAmplitude,
		Amplitude1: FormatMetric(values[0]) + "V",
		Amplitude2: FormatMetric(values[1]) + "V",
		Delta:      FormatMetric(values[2]) + "V",
	}, nil
}

// splitFloats parses a semicolon-delimited response of exactly n floats
func splitFloats(response string, n int) ([]float64, error) {
	fields := strings.Split(response, ";")
	if len(fields) != n {
		return nil, fmt.Errorf("%d fields, want %d", len(fields), n)
	}

	values := make([]float64, n)
	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", field, err)
		}
		values[i] = value
	}
	return values, nil
}
