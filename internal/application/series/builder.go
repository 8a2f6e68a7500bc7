// Package series turns exchange rate records into chart-ready plot points
package series

import (
	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
)

// MillisPerHour converts record timestamps to the chart's X unit
const MillisPerHour = 3_600_000.0

// Build converts records into plot points, one per record and in input order.
// X is the number of hours since the earliest record in the input, Y is the rate.
// The input does not need to be sorted; the earliest timestamp is searched explicitly.
func Build(records []entity.RateRecord) []entity.PlotPoint {
	points := make([]entity.PlotPoint, 0, len(records))
	if len(records) == 0 {
		return points
	}

	minTimestamp := records[0].TimestampMillis
	for _, r := range records[1:] {
		if r.TimestampMillis < minTimestamp {
			minTimestamp = r.TimestampMillis
		}
	}

	for _, r := range records {
		points = append(points, entity.PlotPoint{
			X: float64(r.TimestampMillis-minTimestamp) / MillisPerHour,
			Y: r.Rate,
		})
	}

	return points
}
