package timeseries

import (
	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/stats"
)

// Metadata describes how a series was produced.
type Metadata struct {
	OriginalEventCount int    `json:"original_metrics_count"`
	BucketsCreated     int    `json:"buckets_created"`
	FinalPoints        int    `json:"final_points"`
	ProcessingMethod   string `json:"processing_method"`
}

// Result is a fully processed series plus its provenance.
type Result struct {
	Series      []Point  `json:"timeseries"`
	BucketWidth int64    `json:"bucket_size"`
	Quality     Quality  `json:"data_quality"`
	Metadata    Metadata `json:"metadata"`
}

// Build runs the adaptive pipeline over a period of events: pick a
// bucket width, partition, reduce each bucket, interpolate the gaps
// and score the outcome.
func Build(events []event.Event, r Range, now int64) Result {
	width := BucketWidth(len(events), r)
	buckets := Partition(events, width)
	series := Interpolate(BuildSeries(buckets, now), width)

	return Result{
		Series:      series,
		BucketWidth: width,
		Quality:     MeasureQuality(len(events), series),
		Metadata: Metadata{
			OriginalEventCount: len(events),
			BucketsCreated:     len(buckets),
			FinalPoints:        len(series),
			ProcessingMethod:   "adaptive",
		},
	}
}

// SyntheticScore is the quality score assigned to a placeholder
// series.
const SyntheticScore = 50

// FillSynthetic replaces an empty series with evenly spaced
// placeholder points projected from an aggregate, so the dashboard
// always has a line to draw. The result is marked synthetic and its
// quality score pinned.
func (res *Result) FillSynthetic(agg *stats.Aggregate, r Range, since int64) {
	if len(res.Series) > 0 {
		return
	}
	points := r.SyntheticPoints()
	step := r.Duration().Milliseconds() / int64(points)

	series := make([]Point, 0, points)
	for i := 0; i < points; i++ {
		p := Point{
			Timestamp: since + int64(i)*step,
			Synthetic: true,
		}
		p.WalletSuccessRate = agg.WalletSuccessRate
		p.WalletUserRejectionRate = agg.WalletUserRejectionRate
		p.WalletTechnicalFailureRate = agg.WalletTechnicalFailureRate
		p.WalletConnectSuccessRate = agg.WalletConnectSuccessRate
		p.LoadSuccessRate = agg.LoadSuccessRate
		p.WidgetLoadSuccessRate = agg.WidgetLoadSuccessRate
		p.RenderTimeP50 = agg.RenderTimeP50
		p.RenderTimeP95 = agg.RenderTimeP95
		p.RenderTimeMax = agg.RenderTimeMax
		p.RPCLatencyP50 = agg.RPCLatencyP50
		p.RPCLatencyP95 = agg.RPCLatencyP95
		p.IsRollingRate = agg.IsRollingRate
		p.IsMaintainedRate = agg.IsMaintainedRate
		p.RollingWindowSize = agg.RollingWindowSize
		series = append(series, p)
	}
	res.Series = series
	res.Quality.SyntheticPoints = points
	res.Quality.QualityScore = SyntheticScore
	res.Metadata.FinalPoints = points
}
