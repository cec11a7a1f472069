// internal/telemetry/metric.go
package telemetry

import (
	"math"
	"strconv"
)

// FormatMetric converts a scalar measurement into an engineering-notation
// string: the value scaled into [1,1000) where a prefix exists, rendered
// in shortest form, with the metric prefix appended. Exactly zero is the
// literal "0"; magnitudes below 1e-9 fall through unscaled.
func FormatMetric(x float64) string {
	abs := math.Abs(x)
	switch {
	case x == 0.0:
		return "0"
	case abs >= 1.0e6:
		return shortest(x*1.0e-6) + "M"
	case abs >= 1.0e3:
		return shortest(x*1.0e-3) + "k"
	case abs >= 1.0:
		return shortest(x)
	case abs >= 1.0e-3:
		return shortest(x*1.0e3) + "m"
	case abs >= 1.0e-6:
		return shortest(x*1.0e6) + "u"
	case abs >= 1.0e-9:
		return shortest(x*1.0e9) + "n"
	default:
		return shortest(x)
	}
}

func shortest(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
