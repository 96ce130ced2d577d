package conform

import (
	"time"

	"musicdw/internal/schema"
)

// DeriveTimeBucket computes the calendar dimension row for an event timestamp
// in epoch milliseconds. The breakdown is a pure function of the timestamp
// under UTC; week is the ISO-8601 week number.
func DeriveTimeBucket(tsMillis int64) schema.TimeBucket {
	start := tsMillis / 1000
	t := time.Unix(start, 0).UTC()
	_, week := t.ISOWeek()
	return schema.TimeBucket{
		StartTime: start,
		Hour:      int64(t.Hour()),
		Day:       int64(t.Day()),
		Week:      int64(week),
		Month:     int64(t.Month()),
		Year:      int64(t.Year()),
		Weekday:   t.Format("Mon"),
	}
}
