package stats

// PercentChange reports the relative change from previous to current
// as a percentage. Growth from zero has no finite percentage, so it
// is capped at 999 to keep dashboards from rendering infinities.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 999
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// Changes are the period-over-period deltas reported by compare
// queries, as percentages.
type Changes struct {
	LoadSuccessRate          float64 `json:"load_success_rate"`
	RenderTimeAvg            float64 `json:"render_time_avg"`
	WalletConnectSuccessRate float64 `json:"wallet_connect_success_rate"`
	TotalInteractions        float64 `json:"total_interactions"`
	TotalEvents              float64 `json:"total_events"`
	RPCLatencyAvg            float64 `json:"rpc_latency_avg"`
}

// Compare computes the deltas between two aggregates.
func Compare(current, previous *Aggregate) Changes {
	return Changes{
		LoadSuccessRate:          PercentChange(current.LoadSuccessRate, previous.LoadSuccessRate),
		RenderTimeAvg:            PercentChange(current.RenderTimeAvg, previous.RenderTimeAvg),
		WalletConnectSuccessRate: PercentChange(current.WalletConnectSuccessRate, previous.WalletConnectSuccessRate),
		TotalInteractions:        PercentChange(float64(current.UserVolume.TotalInteractions), float64(previous.UserVolume.TotalInteractions)),
		TotalEvents:              PercentChange(float64(current.TotalEvents), float64(previous.TotalEvents)),
		RPCLatencyAvg:            PercentChange(current.RPCLatencyAvg, previous.RPCLatencyAvg),
	}
}
