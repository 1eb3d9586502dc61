package timeseries

import (
	"math"
)

// Interpolate fills gaps wider than two bucket widths with linearly
// interpolated points. A gap spanning g buckets gets g-1 synthetic
// points, one per missing bucket start, each tagged with its
// interpolation ratio. Only the fields the dashboard charts are
// interpolated; everything else stays zero.
func Interpolate(series []Point, width int64) []Point {
	if len(series) == 0 {
		return []Point{}
	}

	out := make([]Point, 0, len(series))
	for i := 0; i < len(series)-1; i++ {
		cur := series[i]
		next := series[i+1]
		out = append(out, cur)

		gap := next.Timestamp - cur.Timestamp
		if gap <= width*2 {
			continue
		}
		steps := gap / width
		for step := int64(1); step < steps; step++ {
			ratio := float64(step) / float64(steps)
			p := Point{
				Timestamp:          cur.Timestamp + step*width,
				Interpolated:       true,
				InterpolationRatio: ratio,
			}
			p.LoadSuccessRate = lerp(cur.LoadSuccessRate, next.LoadSuccessRate, ratio)
			p.RenderTimeP50 = lerp(cur.RenderTimeP50, next.RenderTimeP50, ratio)
			p.RenderTimeP95 = lerp(cur.RenderTimeP95, next.RenderTimeP95, ratio)
			p.RenderTimeMax = lerp(cur.RenderTimeMax, next.RenderTimeMax, ratio)
			p.WalletConnectSuccessRate = lerp(cur.WalletConnectSuccessRate, next.WalletConnectSuccessRate, ratio)
			p.RPCLatencyP50 = lerp(cur.RPCLatencyP50, next.RPCLatencyP50, ratio)
			p.RPCLatencyP95 = lerp(cur.RPCLatencyP95, next.RPCLatencyP95, ratio)
			p.TotalEvents = lerpInt(cur.TotalEvents, next.TotalEvents, ratio)
			p.UniqueWidgets = lerpInt(cur.UniqueWidgets, next.UniqueWidgets, ratio)
			p.UserVolume.WidgetLoads = lerpInt(cur.UserVolume.WidgetLoads, next.UserVolume.WidgetLoads, ratio)
			p.UserVolume.WalletConnects = lerpInt(cur.UserVolume.WalletConnects, next.UserVolume.WalletConnects, ratio)
			p.UserVolume.UniqueWidgets = lerpInt(cur.UserVolume.UniqueWidgets, next.UserVolume.UniqueWidgets, ratio)
			p.UserVolume.TotalInteractions = lerpInt(cur.UserVolume.TotalInteractions, next.UserVolume.TotalInteractions, ratio)
			p.InteractionErrors.Mine = lerpInt(cur.InteractionErrors.Mine, next.InteractionErrors.Mine, ratio)
			p.InteractionErrors.Stake = lerpInt(cur.InteractionErrors.Stake, next.InteractionErrors.Stake, ratio)
			p.InteractionErrors.Claim = lerpInt(cur.InteractionErrors.Claim, next.InteractionErrors.Claim, ratio)
			out = append(out, p)
		}
	}
	out = append(out, series[len(series)-1])
	return out
}

func lerp(start, end, ratio float64) float64 {
	return start + (end-start)*ratio
}

func lerpInt(start, end int, ratio float64) int {
	return int(math.Round(lerp(float64(start), float64(end), ratio)))
}
