// Package market answers calendar questions about the Shanghai/Shenzhen
// exchanges. Holidays are not modelled; only weekdays and session hours.
package market

import "time"

var shanghai = loadLocation("Asia/Shanghai")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Location is the exchange timezone.
func Location() *time.Location { return shanghai }

type window struct{ from, to int } // minutes since midnight, inclusive

func (w window) contains(m int) bool { return m >= w.from && m <= w.to }

var (
	sessions = []window{{9*60 + 30, 11*60 + 30}, {13 * 60, 15 * 60}}
	// The monitor starts a few minutes before the afternoon open.
	watchWindows = []window{{9*60 + 30, 11*60 + 30}, {12*60 + 57, 15 * 60}}
)

// IsOpen reports whether t falls inside a continuous trading session.
func IsOpen(t time.Time) bool {
	return inWindows(t, sessions)
}

// InTradingWindow is the slightly wider window the change monitor polls in.
func InTradingWindow(t time.Time) bool {
	return inWindows(t, watchWindows)
}

func IsTradingDay(t time.Time) bool {
	switch t.In(shanghai).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// TradingDate returns the date of the latest trading day at or before t.
func TradingDate(t time.Time) time.Time {
	local := t.In(shanghai)
	d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, shanghai)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// PreviousTradingDate returns the trading day before TradingDate(t).
func PreviousTradingDate(t time.Time) time.Time {
	d := TradingDate(t).AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func inWindows(t time.Time, ws []window) bool {
	if !IsTradingDay(t) {
		return false
	}
	local := t.In(shanghai)
	m := local.Hour()*60 + local.Minute()
	for _, w := range ws {
		if w.contains(m) {
			return true
		}
	}
	return false
}
