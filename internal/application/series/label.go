package series

import (
	"fmt"
	"math"
)

// Label returns the legend of a series, e.g. "USD vs MXN"
func Label(currency, baseCurrency string) string {
	return currency + " vs " + baseCurrency
}

// HourLabel formats an X value as a whole number of hours, truncating toward zero
func HourLabel(x float64) string {
	return fmt.Sprintf("%dh", int64(math.Trunc(x)))
}
