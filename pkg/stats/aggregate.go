// Package stats reduces a slice of telemetry events into the
// aggregate metrics document served by the analytics API. The
// reduction is a pure function of its input: rolling window state and
// historical baselines are passed in, never fetched, so the same
// input always yields the same aggregate.
package stats

import (
	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/rolling"
)

// Distribution buckets render times into responsiveness classes.
// Fast is under 200ms, slow is 500ms and above.
type Distribution struct {
	Fast   int `json:"fast"`
	Medium int `json:"medium"`
	Slow   int `json:"slow"`
}

// WalletTypeStats break attempts down per wallet provider.
type WalletTypeStats struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// WalletDataQuality counts how many wallet events carried each
// optional field, so the dashboard can qualify the numbers it shows.
type WalletDataQuality struct {
	TotalAttempts      int `json:"total_attempts"`
	SuccessfulAttempts int `json:"successful_attempts"`
	FailedAttempts     int `json:"failed_attempts"`
	HasWalletTypes     int `json:"has_wallet_types"`
	HasErrorDetails    int `json:"has_error_details"`
	HasDurationData    int `json:"has_duration_data"`
}

// RPCMethodStats summarize calls per RPC method.
type RPCMethodStats struct {
	Method      string  `json:"method"`
	Count       int     `json:"count"`
	AvgDuration float64 `json:"avg_duration"`
	ErrorRate   float64 `json:"error_rate"`
}

// InteractionErrors count failed interactions per action.
type InteractionErrors struct {
	Mine    int `json:"mine"`
	Stake   int `json:"stake"`
	Claim   int `json:"claim"`
	Unstake int `json:"unstake"`
	Vesting int `json:"vesting"`
}

// ConversionRates relate funnel stages to each other, as percentages.
type ConversionRates struct {
	WalletConnectRate float64 `json:"wallet_connect_rate"`
	InteractionRate   float64 `json:"interaction_rate"`
}

// UserVolume is the engagement funnel for the period.
type UserVolume struct {
	WidgetLoads       int             `json:"widget_loads"`
	WalletConnects    int             `json:"wallet_connects"`
	UniqueWidgets     int             `json:"unique_widgets"`
	TotalInteractions int             `json:"total_interactions"`
	ConversionRates   ConversionRates `json:"conversion_rates"`
}

// Vital summarizes one web vital across the period.
type Vital struct {
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	Count int     `json:"count"`
}

// DataQuality flags which metric families had real samples inside
// the period, as opposed to values carried over from baselines.
type DataQuality struct {
	HasRealLoadData        bool  `json:"has_real_load_data"`
	HasRealRenderData      bool  `json:"has_real_render_data"`
	HasRealWalletData      bool  `json:"has_real_wallet_data"`
	HasRealInteractionData bool  `json:"has_real_interaction_data"`
	HasRealRPCData         bool  `json:"has_real_rpc_data"`
	TotalEvents            int   `json:"total_events"`
	DataFreshness          int64 `json:"data_freshness"`
}

// KnownRate is a persisted success rate baseline, used when a period
// contains no samples for a family.
type KnownRate struct {
	SuccessRate float64 `json:"success_rate"`
	AvgTime     float64 `json:"avg_time"`
	Timestamp   int64   `json:"timestamp"`
}

// RenderBaseline is the persisted render latency profile.
type RenderBaseline struct {
	Avg          float64      `json:"render_time_avg"`
	P50          float64      `json:"render_time_p50"`
	P95          float64      `json:"render_time_p95"`
	Max          float64      `json:"render_time_max"`
	Min          float64      `json:"render_time_min"`
	Distribution Distribution `json:"render_time_distribution"`
	Timestamp    int64        `json:"timestamp"`
}

// History carries the persisted baselines into a computation. Nil
// members mean no baseline exists yet.
type History struct {
	WalletRate *KnownRate
	LoadRate   *KnownRate
	Render     *RenderBaseline
}

// Input is everything a computation needs. WalletWindow and
// LoadWindow are the rolling windows as of this period, already
// updated with the period's outcomes by the caller.
type Input struct {
	Events       []event.Event
	WalletWindow *rolling.State
	LoadWindow   *rolling.State
	History      History
	Now          int64 // unix milliseconds
}

// Aggregate is the metrics document for one period. Field names
// mirror what the dashboard consumes.
type Aggregate struct {
	TotalEvents   int   `json:"total_events"`
	UniqueWidgets int   `json:"unique_widgets"`
	Timestamp     int64 `json:"timestamp"`

	LoadSuccessRate       float64 `json:"load_success_rate"`
	WidgetLoadSuccessRate float64 `json:"widget_load_success_rate"`
	TotalLoads            int     `json:"total_loads"`
	RollingLoadWindowSize int     `json:"rolling_load_window_size,omitempty"`
	IsRollingLoadRate     bool    `json:"is_rolling_load_rate"`
	IsMaintainedLoadRate  bool    `json:"is_maintained_load_rate"`

	RenderTimeAvg           float64      `json:"render_time_avg"`
	RenderTimeP50           float64      `json:"render_time_p50"`
	RenderTimeP95           float64      `json:"render_time_p95"`
	RenderTimeMax           float64      `json:"render_time_max"`
	RenderTimeMin           float64      `json:"render_time_min"`
	RenderTimeDistribution  Distribution `json:"render_time_distribution"`
	IsMaintainedRenderTimes bool         `json:"is_maintained_render_times"`

	WalletSuccessRate          float64                     `json:"wallet_success_rate"`
	WalletConnectSuccessRate   float64                     `json:"wallet_connect_success_rate"`
	WalletUserRejectionRate    float64                     `json:"wallet_user_rejection_rate"`
	WalletTechnicalFailureRate float64                     `json:"wallet_technical_failure_rate"`
	RollingWindowSize          int                         `json:"rolling_window_size,omitempty"`
	IsRollingRate              bool                        `json:"is_rolling_rate"`
	IsMaintainedRate           bool                        `json:"is_maintained_rate"`
	TotalWalletConnections     int                         `json:"total_wallet_connections"`
	WalletConnectAvgTime       float64                     `json:"wallet_connect_avg_time"`
	WalletDataQuality          WalletDataQuality           `json:"wallet_data_quality"`
	WalletTypeBreakdown        map[string]*WalletTypeStats `json:"wallet_type_breakdown"`
	WalletErrorCategories      map[string]int              `json:"wallet_error_categories"`
	UniqueWallets              int                         `json:"unique_wallets"`

	InteractionErrors InteractionErrors `json:"interaction_errors"`
	ErrorCategories   map[string]int    `json:"error_categories"`

	RPCLatencyAvg      float64          `json:"rpc_latency_avg"`
	RPCLatencyP50      float64          `json:"rpc_latency_p50"`
	RPCLatencyP95      float64          `json:"rpc_latency_p95"`
	RPCLatencyMax      float64          `json:"rpc_latency_max"`
	RPCLatencyMin      float64          `json:"rpc_latency_min"`
	RPCSuccessRate     float64          `json:"rpc_success_rate"`
	RPCMethodBreakdown []RPCMethodStats `json:"rpc_method_breakdown"`

	TransactionSuccessRate float64 `json:"transaction_success_rate"`
	TotalTransactions      int     `json:"total_transactions"`
	AvgGasUsed             float64 `json:"avg_gas_used"`
	MaxGasUsed             float64 `json:"max_gas_used"`
	MinGasUsed             float64 `json:"min_gas_used"`

	UserVolume     UserVolume `json:"user_volume"`
	UniqueSessions int        `json:"unique_sessions"`

	AvgInteractionsPerSession float64 `json:"avg_interactions_per_session,omitempty"`
	AvgErrorsPerSession       float64 `json:"avg_errors_per_session,omitempty"`
	AvgRPCCallsPerSession     float64 `json:"avg_rpc_calls_per_session,omitempty"`

	AvgPageLoadTime float64 `json:"avg_page_load_time,omitempty"`
	MaxPageLoadTime float64 `json:"max_page_load_time,omitempty"`
	MinPageLoadTime float64 `json:"min_page_load_time,omitempty"`

	WebVitals map[string]Vital `json:"web_vitals,omitempty"`

	DataQuality DataQuality `json:"data_quality"`
}

// RenderBaseline extracts the persistable render profile from an
// aggregate that was computed from real render samples.
func (a *Aggregate) RenderBaselineSnapshot() *RenderBaseline {
	return &RenderBaseline{
		Avg:          a.RenderTimeAvg,
		P50:          a.RenderTimeP50,
		P95:          a.RenderTimeP95,
		Max:          a.RenderTimeMax,
		Min:          a.RenderTimeMin,
		Distribution: a.RenderTimeDistribution,
		Timestamp:    a.Timestamp,
	}
}
