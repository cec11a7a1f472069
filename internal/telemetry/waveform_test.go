package telemetry

import (
	"bytes"
	"strings"
	"testing"
)

const samplePreamble = `"Ch1, DC coupling, 1.0E0 V/div, 2.5E-4 s/div, 2500 points, Sample mode";Y;1.0E-6;0;-1.25E-3;"s";4.0E-2;0.0E0;-1.2E1;"Volts";2500`

func TestParsePreamble(t *testing.T) {
	p, err := ParsePreamble(samplePreamble)
	if err != nil {
		t.Fatalf("ParsePreamble failed: %v", err)
	}

	if !strings.HasPrefix(p.WaveformID, "Ch1,") {
		t.Errorf("WaveformID = %q", p.WaveformID)
	}
	if p.Format != PointFormatY {
		t.Errorf("Format = %q, want %q", p.Format, PointFormatY)
	}
	if p.XIncrement != 1.0e-6 {
		t.Errorf("XIncrement = %v, want 1e-6", p.XIncrement)
	}
	if p.PointOffset != 0 {
		t.Errorf("PointOffset = %d, want 0", p.PointOffset)
	}
	if p.XZero != -1.25e-3 {
		t.Errorf("XZero = %v, want -1.25e-3", p.XZero)
	}
	if p.XUnit != "s" {
		t.Errorf("XUnit = %q, want %q", p.XUnit, "s")
	}
	if p.YMultiplier != 4.0e-2 {
		t.Errorf("YMultiplier = %v, want 4e-2", p.YMultiplier)
	}
	if p.YZero != 0 {
		t.Errorf("YZero = %v, want 0", p.YZero)
	}
	if p.YOffset != -12 {
		t.Errorf("YOffset = %v, want -12", p.YOffset)
	}
	if p.YUnit != "Volts" {
		t.Errorf("YUnit = %q, want %q", p.YUnit, "Volts")
	}
	if p.PointCount != 2500 {
		t.Errorf("PointCount = %d, want 2500", p.PointCount)
	}
}

func TestParsePreamble_Arity(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "too few fields", response: `"Ch1";Y;1.0E-6;0;0.0E0;"s";1.0E0;0.0E0;0.0E0;"Volts"`},
		{name: "too many fields", response: samplePreamble + ";extra"},
		{name: "empty", response: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePreamble(tt.response); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestParsePreamble_NonNumeric(t *testing.T) {
	bad := strings.Replace(samplePreamble, "1.0E-6", "fast", 1)
	if _, err := ParsePreamble(bad); err == nil {
		t.Error("expected error for non-numeric x increment")
	}

	badFormat := strings.Replace(samplePreamble, ";Y;", ";RAW;", 1)
	if _, err := ParsePreamble(badFormat); err == nil {
		t.Error("expected error for unknown point format")
	}
}

func TestConversionFormulas(t *testing.T) {
	p := &Preamble{
		XIncrement:  1.0e-6,
		XZero:       -1.25e-3,
		YMultiplier: 4.0e-2,
		YZero:       0,
		YOffset:     -12,
	}

	if got, want := p.Time(0), -1.25e-3; got != want {
		t.Errorf("Time(0) = %v, want %v", got, want)
	}
	if got, want := p.Time(2499), -1.25e-3+1.0e-6*2499; got != want {
		t.Errorf("Time(2499) = %v, want %v", got, want)
	}

	for _, raw := range []int8{-128, -1, 0, 1, 127} {
		want := 4.0e-2 * (float64(raw) + 12)
		if got := p.Voltage(raw); got != want {
			t.Errorf("Voltage(%d) = %v, want %v", raw, got, want)
		}
		// Pure function: recomputation yields the identical value.
		if p.Voltage(raw) != p.Voltage(raw) {
			t.Errorf("Voltage(%d) not deterministic", raw)
		}
	}
}

// curveResponse builds a well-formed curve response around the given samples.
func curveResponse(samples []byte) []byte {
	response := append([]byte("#42500"), samples...)
	return append(response, '\n')
}

func TestExtractCurve(t *testing.T) {
	samples := make([]byte, SampleCount)
	for i := range samples {
		samples[i] = byte(int8(i%256 - 128))
	}

	var buf SampleBuffer
	if err := ExtractCurve(curveResponse(samples), &buf); err != nil {
		t.Fatalf("ExtractCurve failed: %v", err)
	}

	for i, b := range samples {
		if buf[i] != int8(b) {
			t.Fatalf("buf[%d] = %d, want %d", i, buf[i], int8(b))
		}
	}
}

func TestExtractCurve_Overwrite(t *testing.T) {
	var buf SampleBuffer
	if err := ExtractCurve(curveResponse(bytes.Repeat([]byte{0x10}, SampleCount)), &buf); err != nil {
		t.Fatalf("first ExtractCurve failed: %v", err)
	}
	if err := ExtractCurve(curveResponse(bytes.Repeat([]byte{0xF0}, SampleCount)), &buf); err != nil {
		t.Fatalf("second ExtractCurve failed: %v", err)
	}

	want := byte(0xF0)
	for i := range buf {
		if buf[i] != int8(want) {
			t.Fatalf("buf[%d] = %d, want %d", i, buf[i], int8(want))
		}
	}
}

func TestExtractCurve_Errors(t *testing.T) {
	good := curveResponse(make([]byte, SampleCount))

	tests := []struct {
		name     string
		response []byte
	}{
		{name: "empty", response: nil},
		{name: "no block header", response: append([]byte("42500"), good[6:]...)},
		{name: "bad digit count", response: append([]byte("#02500"), good[6:]...)},
		{name: "wrong declared length", response: append([]byte("#42000"), good[6:]...)},
		{name: "truncated samples", response: good[:len(good)-100]},
		{name: "missing terminator", response: good[:len(good)-1]},
		{name: "trailing garbage", response: append(append([]byte{}, good...), 'x')},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf SampleBuffer
			if err := ExtractCurve(tt.response, &buf); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestCurveResponseSize(t *testing.T) {
	if got := len(curveResponse(make([]byte, SampleCount))); got != CurveResponseSize {
		t.Errorf("curve response size = %d, want %d", got, CurveResponseSize)
	}
}
