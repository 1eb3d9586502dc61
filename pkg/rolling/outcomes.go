package rolling

import (
	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
)

// WalletOutcomes converts the wallet connection events in a batch
// into window outcomes. Failures are split into user rejections and
// technical errors using the classified error attached to the event.
func WalletOutcomes(events []event.Event) []Outcome {
	var out []Outcome
	for i := range events {
		e := &events[i]
		if event.Classify(*e) != event.KindWalletConnect {
			continue
		}
		o := Outcome{
			Success:    e.Succeeded(),
			WalletType: e.WalletType,
			Timestamp:  e.Timestamp,
		}
		if !o.Success {
			o.Category = "technical_error"
			if e.Error != nil && e.Error.Category == event.CategoryWallet && e.Error.Subtype == "user_rejected" {
				o.Category = "user_rejected"
			}
		}
		out = append(out, o)
	}
	return out
}

// LoadOutcomes converts the load family of a batch into window
// outcomes. A load event counts as a success unless it carries an
// explicit failure flag; load_error events always count as failures.
func LoadOutcomes(events []event.Event) []Outcome {
	var out []Outcome
	for i := range events {
		e := &events[i]
		switch event.Classify(*e) {
		case event.KindLoad:
			out = append(out, Outcome{Success: !e.Failed(), Timestamp: e.Timestamp})
		case event.KindLoadError:
			o := Outcome{Success: false, Timestamp: e.Timestamp, Category: "technical_error"}
			if e.Error != nil && e.Error.Subtype == "user_rejected" {
				o.Category = "user_rejected"
			}
			out = append(out, o)
		}
	}
	return out
}
