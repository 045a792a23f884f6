package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(err)
	}
}

// force timezone to be Madrid because screening timestamps are venue-local
// strings, a scrape run hosted in another zone would otherwise resolve
// "Hoy" and day arithmetic against the wrong calendar date
func Now() time.Time {
	return time.Now().In(Location)
}

// Today returns midnight of the current Madrid calendar date.
func Today() time.Time {
	now := Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, Location)
}

// Date builds a venue-local time from its calendar components.
func Date(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, Location)
}
