package util

import "time"

// ISODateLayout is the calendar-date layout used on the wire (YYYY-MM-DD).
const ISODateLayout = "2006-01-02"

// ISODate formats t as a UTC calendar date.
func ISODate(t time.Time) string {
	return t.UTC().Format(ISODateLayout)
}

// DaysAgo returns the UTC midnight n calendar days before t.
func DaysAgo(t time.Time, n int) time.Time {
	d := t.UTC()
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -n)
}

// NextTradingDay returns the first weekday strictly after t (UTC midnight).
// Exchange holidays are not modelled.
func NextTradingDay(t time.Time) time.Time {
	d := DaysAgo(t, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
