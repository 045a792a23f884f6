package theaters

import (
	"regexp"
	"strings"
	"time"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/timezone"
)

// spanishMonths maps lowercase month names and the three-letter
// abbreviations listing pages use.
var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"octubre": time.October, "noviembre": time.November, "diciembre": time.December,

	"ene": time.January, "feb": time.February, "mar": time.March,
	"abr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "ago": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dic": time.December,
}

// spanishMonth resolves a Spanish month name or abbreviation, tolerating a
// trailing period ("Feb.").
func spanishMonth(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ".")
	m, ok := spanishMonths[name]
	return m, ok
}

// dayMonthDate builds a venue-local date only when the components form a
// real calendar day. time.Date would silently normalize "32/01".
func dayMonthDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := timezone.Date(year, time.Month(month), day, 0, 0)
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// resolveDayMonth assigns a year to a day/month pair scraped off a page
// that never prints one: the window's start year, rolling into the next
// year when the month sits behind the window start (December listings
// announcing January sessions).
func (r DateRange) resolveDayMonth(day, month int) (time.Time, bool) {
	year := r.Start.Year()
	if month >= 1 && month <= 12 && time.Month(month) < r.Start.Month() {
		year++
	}
	return dayMonthDate(year, month, day)
}

var timeToken = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// normalizeTime validates an HH:MM token and zero-pads the hour. Sites
// print "9:30" for morning sessions, which would break the lexicographic
// sort that timestamps rely on.
func normalizeTime(s string) (string, bool) {
	m := timeToken.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + m[2], true
}

// stamp renders a screening timestamp from a resolved day and a normalized
// HH:MM token.
func stamp(day time.Time, clock string) string {
	return day.Format(records.DateLayout) + " " + clock
}
