package filmcal

import (
	"testing"

	"filmcalendar-backend/lib/scrapers/theaters"
	"filmcalendar-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestRefreshWindows(t *testing.T) {
	weekly := refreshWindow(theaters.UpdateWeekly)
	require.Equal(t, timezone.Today(), weekly.Start)
	require.Len(t, weekly.Days(), 7)

	monthly := refreshWindow(theaters.UpdateMonthly)
	require.Equal(t, timezone.Today(), monthly.Start)
	days := len(monthly.Days())
	require.GreaterOrEqual(t, days, 28)
	require.LessOrEqual(t, days, 31)
}
