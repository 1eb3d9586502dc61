package rolling

import (
	"context"
	"fmt"
)

// Store persists window state per family. Load returns nil when no
// state exists yet.
type Store interface {
	LoadWindow(ctx context.Context, family string) (*State, error)
	SaveWindow(ctx context.Context, family string, s *State) error
}

// Tracker updates persisted windows atomically with respect to a
// single aggregation pass: load, append the batch, truncate, save.
type Tracker struct {
	store   Store
	maxSize int
}

// NewTracker returns a tracker whose windows hold at most maxSize
// outcomes. A non-positive maxSize falls back to DefaultWindowSize.
func NewTracker(store Store, maxSize int) *Tracker {
	if maxSize <= 0 {
		maxSize = DefaultWindowSize
	}
	return &Tracker{store: store, maxSize: maxSize}
}

// Current returns the persisted window for a family, or a fresh empty
// window when none exists.
func (t *Tracker) Current(ctx context.Context, family string) (*State, error) {
	s, err := t.store.LoadWindow(ctx, family)
	if err != nil {
		return nil, fmt.Errorf("loading %s window: %w", family, err)
	}
	if s == nil {
		return NewState(t.maxSize), nil
	}
	// Stored state may predate a size change.
	s.MaxSize = t.maxSize
	if over := len(s.Events) - s.MaxSize; over > 0 {
		s.Events = s.Events[over:]
	}
	return s, nil
}

// Update appends outcomes to a family window and persists the result.
// With no outcomes it degrades to Current and skips the write, which
// keeps repeated reads of the same period idempotent.
func (t *Tracker) Update(ctx context.Context, family string, outcomes []Outcome) (*State, error) {
	s, err := t.Current(ctx, family)
	if err != nil {
		return nil, err
	}
	if len(outcomes) == 0 {
		return s, nil
	}
	s.Append(outcomes...)
	if err := t.store.SaveWindow(ctx, family, s); err != nil {
		return nil, fmt.Errorf("saving %s window: %w", family, err)
	}
	return s, nil
}
