// internal/scope/csv.go
package scope

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"scope-service/internal/telemetry"
)

// tableHeader matches the column layout of the sample rows below it.
const tableHeader = "     t          ;     ch1      ;     ch2\n"

// WriteTable writes the acquisition's samples as a semicolon-delimited
// table: one header line, then one fixed-width row per sample. Both
// channels share channel 1's time base.
func (a *Acquisition) WriteTable(w io.Writer) error {
	ch1, ch2 := a.Channels[0], a.Channels[1]
	if len(ch1.Times) != telemetry.SampleCount ||
		len(ch1.Volts) != telemetry.SampleCount ||
		len(ch2.Volts) != telemetry.SampleCount {
		return errors.New("acquisition has no complete sample set")
	}

	buffered := bufio.NewWriter(w)
	if _, err := buffered.WriteString(tableHeader); err != nil {
		return fmt.Errorf("write table header: %w", err)
	}

	for i := 0; i < telemetry.SampleCount; i++ {
		_, err := fmt.Fprintf(buffered, "%16.11f;%14.9f;%14.9f\n",
			ch1.Times[i], ch1.Volts[i], ch2.Volts[i])
		if err != nil {
			return fmt.Errorf("write sample row %d: %w", i, err)
		}
	}

	return buffered.Flush()
}
