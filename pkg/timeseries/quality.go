package timeseries

// Quality qualifies a series: how much of it is real samples versus
// filler. The score starts at 100 and loses up to 50 points as the
// interpolated share grows, and a fully synthetic series is pinned at
// 50.
type Quality struct {
	TotalPoints        int     `json:"total_points"`
	RealPoints         int     `json:"real_points"`
	InterpolatedPoints int     `json:"interpolated_points"`
	InterpolationRate  float64 `json:"interpolation_rate"`
	DataDensity        float64 `json:"data_density"`
	QualityScore       float64 `json:"quality_score"`
	SyntheticPoints    int     `json:"synthetic_points,omitempty"`
}

// MeasureQuality scores a series against the raw event count it was
// built from.
func MeasureQuality(eventCount int, series []Point) Quality {
	q := Quality{TotalPoints: len(series)}
	for _, p := range series {
		if p.Interpolated {
			q.InterpolatedPoints++
		}
	}
	q.RealPoints = q.TotalPoints - q.InterpolatedPoints
	if q.TotalPoints > 0 {
		q.InterpolationRate = float64(q.InterpolatedPoints) / float64(q.TotalPoints) * 100
		q.QualityScore = 100 - float64(q.InterpolatedPoints)/float64(q.TotalPoints)*50
		if q.QualityScore < 0 {
			q.QualityScore = 0
		}
	}
	if eventCount > 0 {
		q.DataDensity = float64(q.RealPoints) / float64(eventCount) * 100
	}
	return q
}
