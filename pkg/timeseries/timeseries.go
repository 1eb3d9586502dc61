// Package timeseries turns a flat period of events into a series of
// per-bucket aggregates. Bucket width adapts to data density, gaps
// are filled with linearly interpolated points, and an entirely empty
// period falls back to a synthetic series derived from the aggregate.
package timeseries

import (
	"fmt"
	"time"

	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/stats"
)

// Range is a supported query window.
type Range string

const (
	Range1h  Range = "1h"
	Range24h Range = "24h"
	Range7d  Range = "7d"
	Range30d Range = "30d"
)

// DefaultRange is used when a query does not name one.
const DefaultRange = Range24h

// ParseRange validates a range string. Empty input yields the
// default.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case Range1h, Range24h, Range7d, Range30d:
		return Range(s), nil
	case "":
		return DefaultRange, nil
	}
	return "", fmt.Errorf("unknown range %q", s)
}

// Duration is the length of the window.
func (r Range) Duration() time.Duration {
	switch r {
	case Range1h:
		return time.Hour
	case Range7d:
		return 7 * 24 * time.Hour
	case Range30d:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// TargetBuckets is how many buckets the window aims for at normal
// data density.
func (r Range) TargetBuckets() int {
	switch r {
	case Range1h:
		return 12
	case Range24h:
		return 24
	case Range7d:
		return 28
	default:
		return 30
	}
}

// SyntheticPoints is how many placeholder points an empty window is
// padded with.
func (r Range) SyntheticPoints() int {
	switch r {
	case Range1h:
		return 12
	case Range24h:
		return 24
	case Range7d:
		return 7
	default:
		return 30
	}
}

// Point is one sample of the series: a full aggregate stamped with
// its bucket start. The underscore fields qualify how the point was
// produced so the dashboard can render provenance.
type Point struct {
	Timestamp int64 `json:"timestamp"`
	stats.Aggregate

	BucketEvents       int     `json:"_bucket_size,omitempty"`
	Interpolated       bool    `json:"_interpolated,omitempty"`
	InterpolationRatio float64 `json:"_interpolation_ratio,omitempty"`
	Synthetic          bool    `json:"_synthetic,omitempty"`
}

// BucketWidth picks a bucket width in milliseconds for a window,
// adapting to how many events the window holds. Sparse windows get
// wider buckets so points stay meaningful; dense windows get narrower
// ones for resolution.
func BucketWidth(eventCount int, r Range) int64 {
	total := r.Duration().Milliseconds()
	target := r.TargetBuckets()

	if float64(eventCount) < float64(target)*0.5 {
		div := eventCount
		if div < 6 {
			div = 6
		}
		width := total / int64(div)
		if total%int64(div) != 0 {
			width++
		}
		return width
	}
	if eventCount > target*2 {
		return total * 2 / (int64(target) * 3)
	}
	return total / int64(target)
}

// Partition groups events into buckets keyed by bucket start.
func Partition(events []event.Event, width int64) map[int64][]event.Event {
	buckets := make(map[int64][]event.Event)
	for _, e := range events {
		start := e.Timestamp / width * width
		buckets[start] = append(buckets[start], e)
	}
	return buckets
}
