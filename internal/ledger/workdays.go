package ledger

import (
	"time"

	"github.com/frahmantamala/leave-management/internal"
)

// WorkingDays counts Monday to Friday days in [start, end], both inclusive.
func WorkingDays(start, end time.Time) int {
	start, end = internal.DateOf(start), internal.DateOf(end)
	if end.Before(start) {
		return 0
	}

	days := int(end.Sub(start).Hours()/24) + 1
	weeks, rest := days/7, days%7
	count := weeks * 5

	wd := start.Weekday()
	for i := 0; i < rest; i++ {
		if wd != time.Saturday && wd != time.Sunday {
			count++
		}
		wd = (wd + 1) % 7
	}
	return count
}
