package event

import (
	"encoding/json"
	"fmt"
)

// compactEvent is the storage representation. Single and two letter
// keys keep the serialized payload small enough that a month of
// events fits comfortably in one sorted set. Fields that are zero are
// dropped entirely.
type compactEvent struct {
	T  int64           `json:"t"`
	Ty Kind            `json:"ty"`
	W  string          `json:"w,omitempty"`
	S  string          `json:"s,omitempty"`
	E  string          `json:"e,omitempty"`
	Su *bool           `json:"su,omitempty"`
	D  float64         `json:"d,omitempty"`
	Rt float64         `json:"rt,omitempty"`
	Lt float64         `json:"lt,omitempty"`
	Pl float64         `json:"pl,omitempty"`
	V  float64         `json:"v,omitempty"`
	A  string          `json:"a,omitempty"`
	M  string          `json:"m,omitempty"`
	Wt string          `json:"wt,omitempty"`
	Wa string          `json:"wa,omitempty"`
	Tx string          `json:"tx,omitempty"`
	G  int64           `json:"g,omitempty"`
	Er *ErrorInfo      `json:"er,omitempty"`
	Sm *SessionSummary `json:"sm,omitempty"`
	St int64           `json:"st,omitempty"`
}

// Encode serializes an event in the compact storage form.
func Encode(e Event) ([]byte, error) {
	c := compactEvent{
		T:  e.Timestamp,
		Ty: e.Kind,
		W:  e.WidgetID,
		S:  e.SessionID,
		E:  e.EventName,
		Su: e.Success,
		D:  e.Duration,
		Rt: e.RenderTime,
		Lt: e.LoadTime,
		Pl: e.PageLoadMS,
		V:  e.Value,
		A:  e.Action,
		M:  e.Method,
		Wt: e.WalletType,
		Wa: e.WalletAddress,
		Tx: e.TxHash,
		G:  e.GasUsed,
		Er: e.Error,
		Sm: e.Session,
		St: e.StoredAt,
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	return data, nil
}

// Decode parses a stored event. Records written before the compact
// codec was introduced use the verbose field names, so when the
// compact type discriminator is absent the payload is re-parsed as a
// plain Event. Either way the result is a fully expanded Event.
func Decode(data []byte) (Event, error) {
	var c compactEvent
	if err := json.Unmarshal(data, &c); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if c.Ty == "" {
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			return Event{}, fmt.Errorf("decoding legacy event: %w", err)
		}
		return e, nil
	}
	return Event{
		Timestamp:     c.T,
		Kind:          c.Ty,
		WidgetID:      c.W,
		SessionID:     c.S,
		EventName:     c.E,
		Success:       c.Su,
		Duration:      c.D,
		RenderTime:    c.Rt,
		LoadTime:      c.Lt,
		PageLoadMS:    c.Pl,
		Value:         c.V,
		Action:        c.A,
		Method:        c.M,
		WalletType:    c.Wt,
		WalletAddress: c.Wa,
		TxHash:        c.Tx,
		GasUsed:       c.G,
		Error:         c.Er,
		Session:       c.Sm,
		StoredAt:      c.St,
	}, nil
}

// DecodeAll parses a list of stored payloads, skipping records that
// fail to parse. A trickle of malformed entries must not take the
// whole query down.
func DecodeAll(payloads []string) []Event {
	events := make([]Event, 0, len(payloads))
	for _, p := range payloads {
		e, err := Decode([]byte(p))
		if err != nil {
			continue
		}
		events = append(events, e)
	}
	return events
}
