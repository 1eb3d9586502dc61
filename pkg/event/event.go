// Package event defines the telemetry event model shared by the
// collector client, the ingestion endpoint, and the aggregation
// pipeline, together with the compact wire codec used for storage
// and the error classification rules.
package event

// Kind identifies the family an event belongs to. The family decides
// which aggregation functions consume the event downstream.
type Kind string

const (
	KindLoad          Kind = "load"
	KindLoadError     Kind = "load_error"
	KindRender        Kind = "render"
	KindWalletConnect Kind = "wallet_connect"
	KindInteraction   Kind = "interaction"
	KindRPC           Kind = "rpc"
	KindTransaction   Kind = "transaction"
	KindCustom        Kind = "custom"
)

// Category is the top-level error bucket assigned by CategorizeError.
type Category string

const (
	CategoryWallet      Category = "WALLET"
	CategoryNetwork     Category = "NETWORK"
	CategoryContract    Category = "CONTRACT"
	CategoryRPC         Category = "RPC"
	CategoryTransaction Category = "TRANSACTION"
	CategoryValidation  Category = "VALIDATION"
	CategoryUnknown     Category = "UNKNOWN"
)

// Confidence expresses how strong the classification signal was.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// ErrorInfo is the classified description of a failure attached to an
// event. Category and Subtype drive the dashboard error breakdowns;
// Code and Message preserve the raw signal for debugging.
type ErrorInfo struct {
	Category   Category   `json:"category"`
	Subtype    string     `json:"subtype"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason,omitempty"`
	Code       string     `json:"code,omitempty"`
	Name       string     `json:"name,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// Event is a single telemetry record. Fields are populated per Kind:
// load events carry LoadTime and Success, render events RenderTime,
// wallet_connect events WalletType and Success, rpc events Method and
// Duration, transaction events TxHash and GasUsed. Custom events carry
// an EventName and an optional Value.
type Event struct {
	Kind      Kind  `json:"type"`
	Timestamp int64 `json:"timestamp"` // unix milliseconds

	WidgetID  string `json:"widget_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	EventName string `json:"event_name,omitempty"`

	Success    *bool   `json:"success,omitempty"`
	Duration   float64 `json:"duration,omitempty"` // milliseconds
	RenderTime float64 `json:"render_time,omitempty"`
	LoadTime   float64 `json:"load_time,omitempty"`
	PageLoadMS float64 `json:"page_load_ms,omitempty"`
	Value      float64 `json:"value,omitempty"`

	Action        string `json:"action,omitempty"`
	Method        string `json:"method,omitempty"`
	WalletType    string `json:"wallet_type,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
	TxHash        string `json:"tx_hash,omitempty"`
	GasUsed       int64  `json:"gas_used,omitempty"`

	Error   *ErrorInfo      `json:"error,omitempty"`
	Session *SessionSummary `json:"session,omitempty"`

	// StoredAt is stamped by the ingestion endpoint, not the client.
	StoredAt int64 `json:"stored_at,omitempty"`
}

// SessionSummary is emitted once per session, typically when the
// collector shuts down, and feeds the per-session engagement
// averages.
type SessionSummary struct {
	Interactions      int   `json:"interactions"`
	Errors            int   `json:"errors"`
	RPCCalls          int   `json:"rpc_calls"`
	WalletConnections int   `json:"wallet_connections"`
	DurationMS        int64 `json:"duration_ms"`
}

// Succeeded reports whether the event carries an explicit success flag
// set to true. Events without the flag are treated as failures by the
// rate computations, so absence is not success.
func (e *Event) Succeeded() bool {
	return e.Success != nil && *e.Success
}

// Failed reports whether the event carries an explicit success flag
// set to false.
func (e *Event) Failed() bool {
	return e.Success != nil && !*e.Success
}

// Bool is a convenience for building events with the Success pointer.
func Bool(v bool) *bool { return &v }
