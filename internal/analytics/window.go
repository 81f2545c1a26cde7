package analytics

import (
	"time"

	"servicecrm/internal/models"
)

const (
	monthBuckets = 31
	yearBuckets  = 12

	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "2006-01"
)

// Window is the reporting range of a period: [Start, End) in the location of
// the reference time, split into dense buckets.
type Window struct {
	Period string
	Start  time.Time
	End    time.Time
	Keys   []string
}

// NormalizePeriod maps anything but "year" to "month".
func NormalizePeriod(period string) string {
	if period == models.PeriodYear {
		return models.PeriodYear
	}
	return models.PeriodMonth
}

// WindowFor returns the window ending with the day (month) containing now.
// month: 31 days, today-30 through today. year: 12 months, the current one
// and the 11 before it.
func WindowFor(period string, now time.Time) Window {
	loc := now.Location()
	w := Window{Period: NormalizePeriod(period)}

	if w.Period == models.PeriodYear {
		current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		w.Start = current.AddDate(0, -(yearBuckets - 1), 0)
		w.End = current.AddDate(0, 1, 0)
		w.Keys = make([]string, 0, yearBuckets)
		for m := w.Start; m.Before(w.End); m = m.AddDate(0, 1, 0) {
			w.Keys = append(w.Keys, m.Format(monthKeyLayout))
		}
		return w
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	w.Start = today.AddDate(0, 0, -(monthBuckets - 1))
	w.End = today.AddDate(0, 0, 1)
	w.Keys = make([]string, 0, monthBuckets)
	for d := w.Start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
		w.Keys = append(w.Keys, d.Format(dayKeyLayout))
	}
	return w
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// BucketKey returns the bucket t belongs to, evaluated in the window's location.
func (w Window) BucketKey(t time.Time) string {
	t = t.In(w.Start.Location())
	if w.Period == models.PeriodYear {
		return t.Format(monthKeyLayout)
	}
	return t.Format(dayKeyLayout)
}
