package series

import (
	"math"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
)

// Padding applied to a flat Y axis so it keeps a renderable height
const (
	flatLowerFactor = 0.95
	flatUpperFactor = 1.05
)

// Bounds computes the displayed axis ranges for a built series.
// Both axes are nil when there are no points. X spans exactly [min, max]. Y spans exactly
// [min, max] unless every rate is equal, in which case it is padded to [min*0.95, max*1.05].
func Bounds(points []entity.PlotPoint) (x, y *entity.AxisRange) {
	if len(points) == 0 {
		return nil, nil
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	x = &entity.AxisRange{Min: minX, Max: maxX}

	if minY == maxY {
		y = &entity.AxisRange{Min: minY * flatLowerFactor, Max: maxY * flatUpperFactor}
	} else {
		y = &entity.AxisRange{Min: minY, Max: maxY}
	}

	return x, y
}
