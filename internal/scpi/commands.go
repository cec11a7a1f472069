// internal/scpi/commands.go
package scpi

// TDS_COMMANDS contains the SCPI command surface used on TDS-series
// oscilloscopes. Compound commands chain a source selection and the
// dependent query in one message so the instrument's state machine sees
// them back to back.
var TDS_COMMANDS = struct {
	// Session setup
	IDENTIFY       string
	EVENT_ENABLE   string
	STATUS_ENABLE  string
	SERVICE_ENABLE string
	DATA_INIT      string

	// Scales: channel 1, channel 2 and main time base in one response
	SCALES string

	// Waveform transfer
	PREAMBLE_CH1 string
	PREAMBLE_CH2 string
	CURVE_CH1    string
	CURVE_CH2    string

	// Measurements: slot n expands through MEASUREMENT_SLOT
	MEASUREMENT_SLOT string // + slot number 1..5

	// Cursors
	CURSOR_MODE  string
	CURSOR_VBARS string
	CURSOR_HBARS string
}{
	// Session setup
	IDENTIFY:       "*IDN?",
	EVENT_ENABLE:   "DESE 1",
	STATUS_ENABLE:  "*ESE 1",
	SERVICE_ENABLE: "*SRE 32",
	DATA_INIT:      "DAT INIT",

	// Scales
	SCALES: "CH1:SCA?;:CH2:SCA?;:HOR:MAI:SCA?",

	// Waveform transfer
	PREAMBLE_CH1: "WFMPre:CH1?",
	PREAMBLE_CH2: "WFMPre:CH2?",
	CURVE_CH1:    "DAT:SOU CH1;:CURV?",
	CURVE_CH2:    "DAT:SOU CH2;:CURV?",

	// Measurements: kind, unit, source and value for one slot
	MEASUREMENT_SLOT: "MEASU:MEAS%d:TYP?;UNI?;SOU?;VAL?",

	// Cursors
	CURSOR_MODE:  "CURS:FUNC?",
	CURSOR_VBARS: "CURS:VBA:POS1?;POS2?;HPOS1?;HPOS2?;DELT?",
	CURSOR_HBARS: "CURS:HBA:POS1?;POS2?;DELT?",
}

// MeasurementSlots is the number of measurement slots the instrument
// reports per acquisition.
const MeasurementSlots = 5
