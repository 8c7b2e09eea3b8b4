package schedule

import (
	"time"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
)

// DefaultTimes are the bookable half hours of a clinic day.
var DefaultTimes = []string{
	"08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

// Weekdays returns the YYYY-MM-DD dates of the Monday to Friday days in
// (today, today+days], using today's calendar date in its own location.
func Weekdays(today time.Time, days int) []string {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var out []string
	for i := 1; i <= days; i++ {
		day := start.AddDate(0, 0, i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, day.Format("2006-01-02"))
	}
	return out
}

// Cells expands providers, dates and times into slot keys, ordered by
// provider, then date, then time.
func Cells(providerIDs []int64, dates, times []string) []appointment.SlotKey {
	out := make([]appointment.SlotKey, 0, len(providerIDs)*len(dates)*len(times))
	for _, id := range providerIDs {
		for _, date := range dates {
			for _, tm := range times {
				out = append(out, appointment.SlotKey{ProviderID: id, Date: date, Time: tm})
			}
		}
	}
	return out
}
