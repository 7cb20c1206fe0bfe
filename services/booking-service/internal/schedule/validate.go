package schedule

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

const validateOp = "update schedule"

func ValidateWorkingHours(wh domain.WorkingHours) error {
	if wh.Weekday < time.Sunday || wh.Weekday > time.Saturday {
		return domain.Validation(validateOp, fmt.Sprintf("invalid weekday %d", wh.Weekday))
	}
	if !wh.IsOpen {
		return nil
	}
	return validateWindow(wh.Weekday.String(), wh.StartMinute, wh.EndMinute)
}

func ValidateSpecialDate(sd domain.SpecialDate) error {
	if sd.Date.IsZero() {
		return domain.Validation(validateOp, "special date requires a date")
	}
	if (sd.StartMinute == nil) != (sd.EndMinute == nil) {
		return domain.Validation(validateOp, fmt.Sprintf("special date %s needs both start and end or neither", sd.Date))
	}
	if sd.IsClosed || !sd.HasExplicitHours() {
		return nil
	}
	return validateWindow(sd.Date.String(), *sd.StartMinute, *sd.EndMinute)
}

func ValidateTimeSlot(ts domain.TimeSlot) error {
	if ts.Start.IsZero() || ts.End.IsZero() {
		return domain.Validation(validateOp, "time slot requires start and end")
	}
	if !ts.End.After(ts.Start) {
		return domain.Validation(validateOp, fmt.Sprintf("time slot end %s must be after start %s", ts.End.Format(time.RFC3339), ts.Start.Format(time.RFC3339)))
	}
	return nil
}

// Validate checks every entry plus the one-per-weekday and one-per-date rules.
// Overnight windows are rejected rather than wrapped.
func Validate(s domain.ProviderSchedule) error {
	if _, err := s.Location(); err != nil {
		return domain.Validation(validateOp, err.Error())
	}
	seenDays := map[time.Weekday]bool{}
	for _, wh := range s.WorkingHours {
		if err := ValidateWorkingHours(wh); err != nil {
			return err
		}
		if seenDays[wh.Weekday] {
			return domain.Validation(validateOp, fmt.Sprintf("duplicate working hours for %s", wh.Weekday))
		}
		seenDays[wh.Weekday] = true
	}
	seenDates := map[domain.Date]bool{}
	for _, sd := range s.SpecialDates {
		if err := ValidateSpecialDate(sd); err != nil {
			return err
		}
		if seenDates[sd.Date] {
			return domain.Validation(validateOp, fmt.Sprintf("duplicate special date %s", sd.Date))
		}
		seenDates[sd.Date] = true
	}
	for _, ts := range s.TimeSlots {
		if err := ValidateTimeSlot(ts); err != nil {
			return err
		}
	}
	return nil
}

func validateWindow(label string, start, end int) error {
	if start < 0 || start > domain.MinutesPerDay || end < 0 || end > domain.MinutesPerDay {
		return domain.Validation(validateOp, fmt.Sprintf("%s: minutes must be within 0..%d", label, domain.MinutesPerDay))
	}
	if end <= start {
		return domain.Validation(validateOp, fmt.Sprintf("%s: end %s must be after start %s", label, FormatMinute(end), FormatMinute(start)))
	}
	return nil
}

// FormatMinute renders a minute-of-day as HH:MM.
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseClock parses HH:MM into a minute-of-day; "24:00" is allowed.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, domain.Validation(validateOp, fmt.Sprintf("invalid clock time %q", s))
	}
	total := h*60 + m
	if h < 0 || m < 0 || m > 59 || total > domain.MinutesPerDay {
		return 0, domain.Validation(validateOp, fmt.Sprintf("invalid clock time %q", s))
	}
	return total, nil
}
