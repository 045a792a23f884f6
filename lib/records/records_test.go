package records

import (
	"testing"
	"time"

	"filmcalendar-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestAddScreeningDeduplicates(t *testing.T) {
	film := Film{Title: "Hamnet"}

	added := film.AddScreening(Screening{Timestamp: "2026-03-01 20:00", Location: "Sala 1"})
	require.True(t, added)
	added = film.AddScreening(Screening{Timestamp: "2026-03-01 20:00", Location: "Sala 2"})
	require.True(t, added)

	// same (timestamp, location) pair must not accumulate
	added = film.AddScreening(Screening{
		Timestamp:  "2026-03-01 20:00",
		Location:   "Sala 1",
		UrlTickets: "https://example.com/other",
	})
	require.False(t, added)
	require.Len(t, film.Dates, 2)
}

func TestSortDates(t *testing.T) {
	film := Film{Dates: []Screening{
		{Timestamp: "2026-03-02 17:00", Location: "Sala 1"},
		{Timestamp: "2026-01-15 20:00", Location: "Sala 1"},
		{Timestamp: "2026-03-02 09:30", Location: "Sala 1"},
	}}
	film.SortDates()

	require.Equal(t, "2026-01-15 20:00", film.Dates[0].Timestamp)
	require.Equal(t, "2026-03-02 09:30", film.Dates[1].Timestamp)
	require.Equal(t, "2026-03-02 17:00", film.Dates[2].Timestamp)
}

func TestFilterDates(t *testing.T) {
	film := Film{Dates: []Screening{
		{Timestamp: "2026-02-28 22:00", Location: "Sala 1"},
		{Timestamp: "2026-03-01 09:00", Location: "Sala 1"},
		{Timestamp: "2026-03-01 23:59", Location: "Sala 2"},
		{Timestamp: "2026-03-02 00:01", Location: "Sala 1"},
	}}

	day := timezone.Date(2026, time.March, 1, 0, 0)
	film.FilterDates(day, day)

	require.Len(t, film.Dates, 2)
	for _, s := range film.Dates {
		require.Equal(t, "2026-03-01", s.Timestamp[:10])
	}
}

func TestFormatTimestampZeroPads(t *testing.T) {
	ts := FormatTimestamp(timezone.Date(2026, time.January, 5, 9, 5))
	require.Equal(t, "2026-01-05 09:05", ts)
}
