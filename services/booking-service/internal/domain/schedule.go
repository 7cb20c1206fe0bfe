package domain

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// MinutesPerDay bounds WorkingHours and SpecialDate clock times; an end of
// 1440 means midnight at the end of the day.
const MinutesPerDay = 24 * 60

// WorkingHours is the recurring window for one weekday, in minutes since midnight.
type WorkingHours struct {
	Weekday     time.Weekday `json:"weekday"`
	IsOpen      bool         `json:"is_open"`
	StartMinute int          `json:"start_minute"`
	EndMinute   int          `json:"end_minute"`
}

// SpecialDate overrides the recurring hours for one calendar date. When both
// StartMinute and EndMinute are nil the weekday hours apply.
type SpecialDate struct {
	Date        Date   `json:"date"`
	IsClosed    bool   `json:"is_closed"`
	StartMinute *int   `json:"start_minute,omitempty"`
	EndMinute   *int   `json:"end_minute,omitempty"`
	Note        string `json:"note,omitempty"`
}

// HasExplicitHours reports whether the override carries its own window.
func (s SpecialDate) HasExplicitHours() bool {
	return s.StartMinute != nil && s.EndMinute != nil
}

// TimeSlot is an ad-hoc opening (IsAvailable) or block on absolute timestamps.
type TimeSlot struct {
	ID          string    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsAvailable bool      `json:"is_available"`
	Note        string    `json:"note,omitempty"`
}

// ProviderSchedule is everything needed to resolve a provider's open windows.
type ProviderSchedule struct {
	ProviderID   string         `json:"provider_id"`
	TimeZone     string         `json:"time_zone"`
	WorkingHours []WorkingHours `json:"working_hours"`
	SpecialDates []SpecialDate  `json:"special_dates"`
	TimeSlots    []TimeSlot     `json:"time_slots"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Location resolves TimeZone; empty means UTC.
func (s ProviderSchedule) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", s.TimeZone, err)
	}
	return loc, nil
}

func (s ProviderSchedule) HoursFor(day time.Weekday) (WorkingHours, bool) {
	for _, wh := range s.WorkingHours {
		if wh.Weekday == day {
			return wh, true
		}
	}
	return WorkingHours{}, false
}

func (s ProviderSchedule) SpecialDateFor(d Date) (SpecialDate, bool) {
	for _, sd := range s.SpecialDates {
		if sd.Date == d {
			return sd, true
		}
	}
	return SpecialDate{}, false
}
