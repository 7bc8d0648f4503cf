package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenEmptyPathDisablesStore(t *testing.T) {
	st, err := Open("")
	require.NoError(t, err)
	require.Nil(t, st)

	// nil store must be safe to use
	require.NoError(t, st.RecordAttempt(Attempt{RunID: "x"}))
	require.NoError(t, st.RecordBooking(Booking{RunID: "x"}))
	attempts, err := st.RecentAttempts(5)
	require.NoError(t, err)
	require.Empty(t, attempts)
	require.NoError(t, st.Close())
}

func TestRecordAndList(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer st.Close()

	now := time.Now()
	for i, outcome := range []string{"no-work-found", "transient-failure", "success"} {
		require.NoError(t, st.RecordAttempt(Attempt{
			RunID:      "run-" + outcome,
			StartedAt:  now.Add(time.Duration(i) * time.Minute),
			FinishedAt: now.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Tries:      i + 1,
			Outcome:    outcome,
		}))
	}
	require.NoError(t, st.RecordBooking(Booking{
		RunID:    "run-success",
		Court:    "Court 3",
		Date:     "2025-03-16",
		Start:    "19:00",
		TimeText: "7:00 PM - 8:00 PM",
	}))

	attempts, err := st.RecentAttempts(2)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, "success", attempts[0].Outcome)
	require.Equal(t, "transient-failure", attempts[1].Outcome)

	bookings, err := st.RecentBookings(10)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Equal(t, "Court 3", bookings[0].Court)
	require.Equal(t, "19:00", bookings[0].Start)
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.RecordAttempt(Attempt{RunID: "r1", Outcome: "success"}))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	attempts, err := st.RecentAttempts(10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, "r1", attempts[0].RunID)
}
