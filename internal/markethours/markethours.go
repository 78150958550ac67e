// Package markethours gates recomputation to an exchange trading session.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// NSE cash-market hours in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// Session describes a daily trading window in a fixed location. Open and
// Close are minutes after midnight; the window is [Open, Close).
type Session struct {
	Location *time.Location
	Open     int
	Close    int
	Holidays map[string]bool // "2006-01-02" in Location
}

// NSE returns the NSE equity session with the bundled holiday calendar.
func NSE() Session {
	return Session{
		Location: IST,
		Open:     OpenHour*60 + OpenMinute,
		Close:    CloseHour*60 + CloseMinute,
		Holidays: nseHolidaySet(),
	}
}

// AlwaysOpen reports whether the session has no window configured.
func (s Session) AlwaysOpen() bool {
	return s.Location == nil || s.Close <= s.Open
}

// IsHoliday returns true if t's calendar date in the session location is
// a listed holiday.
func (s Session) IsHoliday(t time.Time) bool {
	if s.Location == nil {
		return false
	}
	return s.Holidays[t.In(s.Location).Format("2006-01-02")]
}

// IsTradingDay returns true if t is Mon–Fri and not a holiday.
func (s Session) IsTradingDay(t time.Time) bool {
	if s.Location == nil {
		return true
	}
	wd := t.In(s.Location).Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !s.IsHoliday(t)
}

// IsOpen returns true if t falls inside the trading window on a trading day.
func (s Session) IsOpen(t time.Time) bool {
	if s.AlwaysOpen() {
		return true
	}
	if !s.IsTradingDay(t) {
		return false
	}
	local := t.In(s.Location)
	hm := local.Hour()*60 + local.Minute()
	return hm >= s.Open && hm < s.Close
}

// NextOpen returns the next session open strictly after t, or today's open if
// t is before it on a trading day.
func (s Session) NextOpen(t time.Time) time.Time {
	if s.AlwaysOpen() {
		return t
	}
	local := t.In(s.Location)

	todayOpen := s.openOn(local)
	if local.Before(todayOpen) && s.IsTradingDay(local) {
		return todayOpen
	}

	d := local.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ { // weekends plus clustered holidays
		if s.IsTradingDay(d) {
			return s.openOn(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return s.openOn(local.AddDate(0, 0, 1))
}

// TodayClose returns the close of the session on t's calendar date.
func (s Session) TodayClose(t time.Time) time.Time {
	local := t.In(s.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), s.Close/60, s.Close%60, 0, 0, s.Location)
}

// Status returns a human-readable session state.
func (s Session) Status(t time.Time) string {
	if s.AlwaysOpen() {
		return "Market Open"
	}
	if s.IsOpen(t) {
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(s.TodayClose(t).Sub(t)))
	}
	next := s.NextOpen(t)
	local := next.In(s.Location)
	return fmt.Sprintf("Market Closed, opens %s %s (%s)",
		local.Weekday().String()[:3], local.Format("15:04"), fmtDur(next.Sub(t)))
}

func (s Session) openOn(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), s.Open/60, s.Open%60, 0, 0, s.Location)
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
