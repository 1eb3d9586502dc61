package timeseries

import (
	"sort"

	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/rolling"
	"github.com/starsystemlabs/nebula-telemetry/pkg/stats"
)

// BuildSeries reduces each bucket to an aggregate, in timestamp
// order, threading rolling wallet and load windows through the
// buckets. A bucket without wallet or load events therefore still
// reports the rates as of the buckets before it, and a bucket without
// render samples carries the previous render profile forward.
func BuildSeries(buckets map[int64][]event.Event, now int64) []Point {
	starts := make([]int64, 0, len(buckets))
	for s := range buckets {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	walletWin := rolling.NewState(rolling.DefaultWindowSize)
	loadWin := rolling.NewState(rolling.DefaultWindowSize)
	var lastRender *stats.RenderBaseline

	points := make([]Point, 0, len(starts))
	for _, start := range starts {
		evs := buckets[start]
		walletWin.Append(rolling.WalletOutcomes(evs)...)
		loadWin.Append(rolling.LoadOutcomes(evs)...)

		agg := stats.Compute(stats.Input{
			Events:       evs,
			WalletWindow: walletWin,
			LoadWindow:   loadWin,
			History:      stats.History{Render: lastRender},
			Now:          now,
		})

		// A bucket before any load outcome at all shows the
		// optimistic default rather than 0%, matching the wallet
		// family.
		if loadWin.Len() == 0 {
			agg.LoadSuccessRate = 100
			agg.WidgetLoadSuccessRate = 100
			agg.IsMaintainedLoadRate = true
		}

		if agg.DataQuality.HasRealRenderData {
			lastRender = agg.RenderBaselineSnapshot()
		}

		points = append(points, Point{
			Timestamp:    start,
			Aggregate:    *agg,
			BucketEvents: len(evs),
		})
	}
	return points
}
