package availability

import (
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/schedule"
)

// AvailableSlots returns the start times, stepping from each window's start,
// at which a booking of length duration fits inside one window without
// overlapping any busy interval. Starts before now are skipped.
func AvailableSlots(windows []schedule.Interval, duration, step time.Duration, busy []schedule.Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}

	var slots []time.Time
	for _, w := range windows {
		for t := w.Start; !t.Add(duration).After(w.End); t = t.Add(step) {
			if t.Before(now) {
				continue
			}
			if !overlapsAny(t, t.Add(duration), busy) {
				slots = append(slots, t)
			}
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []schedule.Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
