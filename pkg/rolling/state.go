// Package rolling maintains bounded first-in first-out outcome
// windows. The windows survive individual query periods, so a success
// rate computed from them reflects the last N attempts overall rather
// than only the attempts inside the period being viewed.
package rolling

// DefaultWindowSize bounds every window. When a window is full the
// oldest outcomes are dropped as new ones arrive.
const DefaultWindowSize = 100

// Window families persisted by the tracker.
const (
	FamilyWallet = "wallet"
	FamilyLoad   = "widget-load"
)

// Outcome is one attempt recorded in a window.
type Outcome struct {
	Success    bool   `json:"success"`
	Category   string `json:"category,omitempty"` // user_rejected or technical_error for failures
	WalletType string `json:"wallet_type,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// State is a window of recent outcomes, oldest first.
type State struct {
	Events  []Outcome `json:"events"`
	MaxSize int       `json:"max_size"`
}

// NewState returns an empty window. A non-positive maxSize falls back
// to DefaultWindowSize.
func NewState(maxSize int) *State {
	if maxSize <= 0 {
		maxSize = DefaultWindowSize
	}
	return &State{Events: []Outcome{}, MaxSize: maxSize}
}

// Append adds outcomes in order and evicts from the front once the
// window exceeds MaxSize.
func (s *State) Append(outcomes ...Outcome) {
	s.Events = append(s.Events, outcomes...)
	if over := len(s.Events) - s.MaxSize; over > 0 {
		s.Events = s.Events[over:]
	}
}

// Len reports how many outcomes the window currently holds.
func (s *State) Len() int { return len(s.Events) }

// Rates are percentages computed over a window.
type Rates struct {
	SuccessRate          float64 `json:"success_rate"`
	UserRejectionRate    float64 `json:"user_rejection_rate"`
	TechnicalFailureRate float64 `json:"technical_failure_rate"`
	TotalEvents          int     `json:"total_events"`
}

// Rates computes percentages over the window. Returns nil for an
// empty window so callers can tell "no data" apart from "0%".
func (s *State) Rates() *Rates {
	if s == nil || len(s.Events) == 0 {
		return nil
	}
	var successes, rejections, technical int
	for _, o := range s.Events {
		switch {
		case o.Success:
			successes++
		case o.Category == "user_rejected":
			rejections++
		default:
			technical++
		}
	}
	n := float64(len(s.Events))
	return &Rates{
		SuccessRate:          float64(successes) / n * 100,
		UserRejectionRate:    float64(rejections) / n * 100,
		TechnicalFailureRate: float64(technical) / n * 100,
		TotalEvents:          len(s.Events),
	}
}
