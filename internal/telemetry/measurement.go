// internal/telemetry/measurement.go
package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OverflowLimit is the magnitude above which the instrument's numeric
// replies are sentinels for overflow or an invalid reading, not data.
const OverflowLimit = 9.9e9

// Measurement is one decoded measurement slot. Value and Unit follow the
// display policy: empty for an unused slot, "?" with an empty unit for an
// instrument-reported overflow, otherwise the engineering-notation value.
type Measurement struct {
	Kind   string `json:"kind"`
	Unit   string `json:"unit"`
	Source string `json:"source"`
	Value  string `json:"value"`
}

// ParseMeasurement decodes one measurement slot response: kind, unit,
// source and value text, semicolon-delimited.
func ParseMeasurement(response string) (*Measurement, error) {
	fields := strings.Split(response, ";")
	if len(fields) != 4 {
		return nil, fmt.Errorf("measurement has %d fields, want 4", len(fields))
	}

	m := &Measurement{
		Kind:   fields[0],
		Source: fields[2],
	}

	// An unused slot reports kind NONE; value and unit stay blank.
	if m.Kind == "NONE" {
		return m, nil
	}

	value, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid measurement value %q: %w", fields[3], err)
	}

	if math.Abs(value) > OverflowLimit {
		m.Value = "?"
		return m, nil
	}

	m.Value = FormatMetric(value)
	m.Unit = unquote(fields[1])
	return m, nil
}

// Scales holds the decoded scale query: both channel scales and the main
// time base, raw and rendered for display.
type Scales struct {
	Channel1 float64 `json:"channel1"`
	Channel2 float64 `json:"channel2"`
	Main     float64 `json:"main"`

	Channel1Display string `json:"channel1_display"`
	Channel2Display string `json:"channel2_display"`
	MainDisplay     string `json:"main_display"`
}

// ParseScales decodes the three-field scale response: channel-1 scale,
// channel-2 scale and the main time scale.
func ParseScales(response string) (*Scales, error) {
	fields := strings.Split(response, ";")
	if len(fields) != 3 {
		return nil, fmt.Errorf("scale response has %d fields, want 3", len(fields))
	}

	values := make([]float64, 3)
	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid scale %q: %w", field, err)
		}
		values[i] = value
	}

	return &Scales{
		Channel1:        values[0],
		Channel2:        values[1],
		Main:            values[2],
		Channel1Display: FormatMetric(values[0]) + "V",
		Channel2Display: FormatMetric(values[1]) + "V",
		MainDisplay:     FormatMetric(values[2]) + "s",
	}, nil
}
