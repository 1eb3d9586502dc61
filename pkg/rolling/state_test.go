package rolling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendKeepsWindowBounded(t *testing.T) {
	s := NewState(100)
	for i := 0; i < 137; i++ {
		s.Append(Outcome{Success: i%2 == 0, Timestamp: int64(i)})
	}
	require.Equal(t, 100, s.Len())
	// Oldest entries were evicted, newest kept, order preserved.
	assert.Equal(t, int64(37), s.Events[0].Timestamp)
	assert.Equal(t, int64(136), s.Events[99].Timestamp)
}

func TestAppendBatchLargerThanWindow(t *testing.T) {
	s := NewState(5)
	batch := make([]Outcome, 12)
	for i := range batch {
		batch[i] = Outcome{Timestamp: int64(i)}
	}
	s.Append(batch...)
	require.Equal(t, 5, s.Len())
	assert.Equal(t, int64(7), s.Events[0].Timestamp)
	assert.Equal(t, int64(11), s.Events[4].Timestamp)
}

func TestRatesEmptyWindow(t *testing.T) {
	assert.Nil(t, NewState(100).Rates())
	var s *State
	assert.Nil(t, s.Rates())
}

func TestRatesThreeWaySplit(t *testing.T) {
	s := NewState(100)
	for n := 0; n < 6; n++ {
		s.Append(Outcome{Success: true})
	}
	for n := 0; n < 3; n++ {
		s.Append(Outcome{Success: false, Category: "user_rejected"})
	}
	s.Append(Outcome{Success: false, Category: "technical_error"})

	r := s.Rates()
	require.NotNil(t, r)
	assert.Equal(t, 10, r.TotalEvents)
	assert.InDelta(t, 60.0, r.SuccessRate, 0.001)
	assert.InDelta(t, 30.0, r.UserRejectionRate, 0.001)
	assert.InDelta(t, 10.0, r.TechnicalFailureRate, 0.001)
}

func TestRatesFailureWithoutCategoryIsTechnical(t *testing.T) {
	s := NewState(100)
	s.Append(Outcome{Success: false})
	r := s.Rates()
	require.NotNil(t, r)
	assert.InDelta(t, 100.0, r.TechnicalFailureRate, 0.001)
	assert.Zero(t, r.UserRejectionRate)
}

type memStore struct {
	windows map[string]*State
	saves   int
}

func newMemStore() *memStore { return &memStore{windows: map[string]*State{}} }

func (m *memStore) LoadWindow(_ context.Context, family string) (*State, error) {
	return m.windows[family], nil
}

func (m *memStore) SaveWindow(_ context.Context, family string, s *State) error {
	m.saves++
	m.windows[family] = s
	return nil
}

func TestTrackerUpdatePersists(t *testing.T) {
	store := newMemStore()
	tr := NewTracker(store, 100)

	s, err := tr.Update(context.Background(), FamilyWallet, []Outcome{
		{Success: true, Timestamp: 1},
		{Success: false, Category: "user_rejected", Timestamp: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, store.saves)

	s, err = tr.Current(context.Background(), FamilyWallet)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestTrackerUpdateEmptyBatchSkipsWrite(t *testing.T) {
	store := newMemStore()
	tr := NewTracker(store, 100)

	_, err := tr.Update(context.Background(), FamilyLoad, []Outcome{{Success: true}})
	require.NoError(t, err)

	s, err := tr.Update(context.Background(), FamilyLoad, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, store.saves)
}

func TestTrackerShrinksOversizedStoredState(t *testing.T) {
	store := newMemStore()
	big := NewState(200)
	for i := 0; i < 150; i++ {
		big.Append(Outcome{Timestamp: int64(i)})
	}
	store.windows[FamilyWallet] = big

	tr := NewTracker(store, 100)
	s, err := tr.Current(context.Background(), FamilyWallet)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Len())
	assert.Equal(t, int64(50), s.Events[0].Timestamp)
}
