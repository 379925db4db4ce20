package services

import "time"

// DefaultNotifyDaysBefore is how many days before month end upcoming
// payout notices fire when a restaurant has no policy of its own.
const DefaultNotifyDaysBefore = 3

// UpcomingNoticeDue reports whether today is exactly daysBefore days
// ahead of the current month's end, and the month the notice covers.
// The decision is pure so it can be tested without a clock.
func UpcomingNoticeDue(today time.Time, daysBefore int) (string, bool) {
	if daysBefore <= 0 {
		daysBefore = DefaultNotifyDaysBefore
	}
	today = today.UTC()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)
	due := monthEnd.AddDate(0, 0, -daysBefore)

	sameDay := today.Year() == due.Year() && today.YearDay() == due.YearDay()
	return monthStart.Format("2006-01"), sameDay
}
