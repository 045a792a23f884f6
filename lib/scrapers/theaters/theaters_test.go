package theaters

import (
	"testing"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestKeysProcessOrder(t *testing.T) {
	require.Equal(t, []string{
		"dore",
		"cineteca",
		"circulo-bellas-artes",
		"renoir",
		"golem",
		"sala-berlanga",
		"embajadores",
		"cine-paz",
		"verdi",
		"sala-equis",
	}, Keys())
}

func TestByKey(t *testing.T) {
	s, ok := ByKey(nil, "golem")
	require.True(t, ok)
	require.Equal(t, "Golem Madrid", s.Name())

	// display names resolve too
	s, ok = ByKey(nil, "sala equis")
	require.True(t, ok)
	require.Equal(t, "sala-equis", s.Key())

	_, ok = ByKey(nil, "cinema-that-never-was")
	require.False(t, ok)
}

func TestKeysByPeriod(t *testing.T) {
	require.Equal(t, []string{"dore", "cineteca"}, KeysByPeriod(UpdateMonthly))
	require.Equal(t, []string{
		"circulo-bellas-artes",
		"renoir",
		"golem",
		"sala-berlanga",
		"embajadores",
		"cine-paz",
		"verdi",
		"sala-equis",
	}, KeysByPeriod(UpdateWeekly))
}

func TestRegistryIsConsistent(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range All(nil) {
		require.NotEmpty(t, s.Key())
		require.NotEmpty(t, s.Name())
		require.False(t, seen[s.Key()], "duplicate key %q", s.Key())
		seen[s.Key()] = true
	}
}

func TestDateRangeDays(t *testing.T) {
	window := DateRange{
		Start: timezone.Date(2026, 2, 27, 9, 30),
		End:   timezone.Date(2026, 3, 2, 18, 0),
	}
	days := window.Days()
	require.Len(t, days, 4)
	require.Equal(t, "2026-02-27", days[0].Format(records.DateLayout))
	require.Equal(t, "2026-03-02", days[3].Format(records.DateLayout))

	single := DateRange{Start: timezone.Date(2026, 2, 27, 0, 0), End: timezone.Date(2026, 2, 27, 0, 0)}
	require.Len(t, single.Days(), 1)
}

func TestDateRangeContains(t *testing.T) {
	window := DateRange{
		Start: timezone.Date(2026, 2, 27, 0, 0),
		End:   timezone.Date(2026, 3, 2, 0, 0),
	}
	require.True(t, window.Contains(timezone.Date(2026, 2, 27, 23, 59)))
	require.True(t, window.Contains(timezone.Date(2026, 3, 2, 0, 0)))
	require.False(t, window.Contains(timezone.Date(2026, 2, 26, 0, 0)))
	require.False(t, window.Contains(timezone.Date(2026, 3, 3, 0, 0)))
}

func TestFilmFold(t *testing.T) {
	fold := newFilmFold()

	fold.Add("a", records.Film{
		Theater: "T", Title: "Primera", TheaterFilmLink: "https://t/a", Director: "Uno",
		Dates: []records.Screening{
			{Timestamp: "2026-03-02 20:00", Location: "Sala 1"},
		},
	})
	fold.Add("b", records.Film{
		Theater: "T", Title: "Segunda",
		Dates: []records.Screening{{Timestamp: "2026-03-01 17:00", Location: "Sala 1"}},
	})
	// same key: identity fields of the first entry win, screenings union
	fold.Add("a", records.Film{
		Theater: "T", Title: "Primera (VOSE)", Director: "Otro",
		Dates: []records.Screening{
			{Timestamp: "2026-03-02 20:00", Location: "Sala 1"},
			{Timestamp: "2026-03-01 18:00", Location: "Sala 1"},
		},
	})

	films := fold.Films()
	require.Len(t, films, 2)
	require.Equal(t, "Primera", films[0].Title)
	require.Equal(t, "Uno", films[0].Director)
	require.Equal(t, []string{"2026-03-01 18:00", "2026-03-02 20:00"}, timestamps(films[0]))
	require.Equal(t, "Segunda", films[1].Title)
}

func timestamps(film records.Film) []string {
	var out []string
	for _, d := range film.Dates {
		out = append(out, d.Timestamp)
	}
	return out
}
