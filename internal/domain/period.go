package domain

import "time"

// ComputePublicationPeriod derives a concrete date interval from whatever
// date granularity a catalog supplied:
//
//   - year, month and day give that exact day
//   - year and month give the whole month, as does a day the month lacks
//   - year alone gives January 1 to December 31
//   - no year falls back to the cover date
//
// Both bounds are nil when neither a year nor a cover date is known.
func ComputePublicationPeriod(year, month, day int, coverDate *time.Time) (start, end *time.Time) {
	if year <= 0 {
		if coverDate == nil {
			return nil, nil
		}
		d := truncateDate(*coverDate)
		return &d, &d
	}

	var from, to time.Time
	switch {
	case month >= 1 && month <= 12 && day >= 1 && day <= daysIn(year, time.Month(month)):
		from = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		to = from
	case month >= 1 && month <= 12:
		from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, -1)
	default:
		from = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to = time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return &from, &to
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PeriodOverlaps reports whether [start, end] intersects [from, to].
func PeriodOverlaps(start, end *time.Time, from, to time.Time) bool {
	if start == nil || end == nil {
		return false
	}
	return !start.After(to) && !end.Before(from)
}
