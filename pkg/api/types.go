package api

import (
	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/stats"
	"github.com/starsystemlabs/nebula-telemetry/pkg/timeseries"
)

// MaxIngestBatch caps how many events a single ingest request can
// store. Anything past the cap is dropped, not queued.
const MaxIngestBatch = 50

// IngestRequest is the body of POST /api/v1/events.
type IngestRequest struct {
	Metrics []event.Event `json:"metrics"`
}

// IngestResponse acknowledges a stored batch. OriginalSize is the
// submitted batch size before the cap was applied.
type IngestResponse struct {
	Success      bool  `json:"success"`
	Stored       int   `json:"stored"`
	Compressed   bool  `json:"compressed"`
	OriginalSize int   `json:"originalSize"`
	Timestamp    int64 `json:"timestamp"`
}

// Period bounds a query window in ISO 8601.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AggregateMeta describes how an aggregate response was produced.
type AggregateMeta struct {
	TotalRawEvents int    `json:"total_raw_events"`
	CacheStatus    string `json:"cache_status"`
	GeneratedAt    string `json:"generated_at"`
}

// AggregateResponse is the body of GET /api/v1/analytics.
type AggregateResponse struct {
	Range   string           `json:"range"`
	Period  Period           `json:"period"`
	Metrics *stats.Aggregate `json:"metrics"`
	Meta    AggregateMeta    `json:"meta"`
}

// TimeseriesMeta extends the series provenance with processing
// details the dashboard reads directly.
type TimeseriesMeta struct {
	timeseries.Metadata
	BucketSize          int64              `json:"bucketSize"`
	DataQuality         timeseries.Quality `json:"dataQuality"`
	ProcessingTimestamp string             `json:"processing_timestamp"`
}

// TimeseriesResponse is the body of GET /api/v1/analytics?mode=timeseries.
type TimeseriesResponse struct {
	Range      string             `json:"range"`
	Period     Period             `json:"period"`
	Timeseries []timeseries.Point `json:"timeseries"`
	Metadata   TimeseriesMeta     `json:"metadata"`
}

// MetricsEnvelope wraps an aggregate for the nested current/previous
// blocks of a comparison response.
type MetricsEnvelope struct {
	Metrics *stats.Aggregate `json:"metrics"`
}

// CompareResponse is the body of GET /api/v1/analytics?mode=compare.
// The aggregates appear both nested and flat because different
// dashboard panels consume different shapes.
type CompareResponse struct {
	Range           string           `json:"range"`
	CurrentPeriod   Period           `json:"currentPeriod"`
	PreviousPeriod  Period           `json:"previousPeriod"`
	Current         MetricsEnvelope  `json:"current"`
	Previous        MetricsEnvelope  `json:"previous"`
	CurrentMetrics  *stats.Aggregate `json:"currentMetrics"`
	PreviousMetrics *stats.Aggregate `json:"previousMetrics"`
	Comparison      *stats.Changes   `json:"comparison"`
}
