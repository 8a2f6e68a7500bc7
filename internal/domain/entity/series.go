package entity

// PlotPoint is a normalized chart point. X is hours since the earliest record of the
// result set, Y is the rate.
type PlotPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AxisRange is the displayed range of one chart axis
type AxisRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Series is everything a client needs to draw one chart
type Series struct {
	Params QueryParams
	Label  string
	Points []PlotPoint

	// XAxis and YAxis are nil when there are no points
	XAxis *AxisRange
	YAxis *AxisRange
}

// Empty reports whether the series has no data to draw
func (s *Series) Empty() bool {
	return s == nil || len(s.Points) == 0
}
