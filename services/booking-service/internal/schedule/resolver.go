package schedule

import (
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

// Resolve returns the ordered, non-overlapping open windows of s on date,
// anchored in the schedule's time zone.
//
// A special date wins over the weekday hours: closed means no windows at all,
// explicit hours replace the weekday window, and an override without hours
// falls back to the weekday. Time slots clipped to the day are then applied:
// available slots extend the windows, unavailable slots are carved out.
func Resolve(s domain.ProviderSchedule, date domain.Date) ([]Interval, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	day := Interval{Start: date.Midnight(loc), End: date.AddDays(1).Midnight(loc)}

	var base []Interval
	sd, hasOverride := s.SpecialDateFor(date)
	switch {
	case hasOverride && sd.IsClosed:
		return nil, nil
	case hasOverride && sd.HasExplicitHours():
		base = append(base, Interval{Start: date.At(*sd.StartMinute, loc), End: date.At(*sd.EndMinute, loc)})
	default:
		if wh, ok := s.HoursFor(date.Weekday()); ok && wh.IsOpen {
			base = append(base, Interval{Start: date.At(wh.StartMinute, loc), End: date.At(wh.EndMinute, loc)})
		}
	}

	var opens, blocks []Interval
	for _, ts := range s.TimeSlots {
		iv := Interval{Start: ts.Start.In(loc), End: ts.End.In(loc)}.Clip(day)
		if iv.Empty() {
			continue
		}
		if ts.IsAvailable {
			opens = append(opens, iv)
		} else {
			blocks = append(blocks, iv)
		}
	}

	return Subtract(Union(base, opens), blocks), nil
}

// WindowContaining returns the single window that fully holds [start, end).
func WindowContaining(windows []Interval, candidate Interval) (Interval, bool) {
	for _, w := range windows {
		if w.Contains(candidate.Start, candidate.End) {
			return w, true
		}
	}
	return Interval{}, false
}
