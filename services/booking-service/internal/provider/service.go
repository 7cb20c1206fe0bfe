// Package provider manages providers, their service catalog and their
// schedules, and answers availability queries about them.
package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

// DefaultSlotStep spaces free slot start times when the caller gives none.
const DefaultSlotStep = 15 * time.Minute

type Service struct {
	store   storage.Store
	checker *availability.Checker
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(store storage.Store, checker *availability.Checker, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, checker: checker, now: now, logger: logger}
}

type RegisterRequest struct {
	Name     string
	TimeZone string
	// OwnerUserID is honoured for admins only; everyone else owns what they register.
	OwnerUserID string
}

func (s *Service) Register(ctx context.Context, actor domain.Actor, req RegisterRequest) (domain.Provider, error) {
	const op = "register provider"
	if actor.Role != domain.RoleProvider && !actor.IsAdmin() {
		return domain.Provider{}, domain.Unauthorized(op, "provider role required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Provider{}, domain.Validation(op, "name is required")
	}
	tz := strings.TrimSpace(req.TimeZone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return domain.Provider{}, domain.Validation(op, "unknown time zone "+tz)
	}
	owner := actor.UserID
	if actor.IsAdmin() && strings.TrimSpace(req.OwnerUserID) != "" {
		owner = strings.TrimSpace(req.OwnerUserID)
	}

	now := s.now()
	p := domain.Provider{
		ID:          uuid.NewString(),
		OwnerUserID: owner,
		Name:        name,
		TimeZone:    tz,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Providers().Create(ctx, &p)
	})
	if err != nil {
		return domain.Provider{}, err
	}
	s.logger.Info("provider registered", "provider_id", p.ID, "owner", owner)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Provider, error) {
	var p domain.Provider
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		p, err = tx.Providers().Get(ctx, id)
		return err
	})
	return p, err
}

type ServiceRequest struct {
	Name            string
	PriceAmount     int64
	Currency        string
	DurationMinutes int
}

func (s *Service) AddService(ctx context.Context, actor domain.Actor, providerID string, req ServiceRequest) (domain.ServiceOffering, error) {
	const op = "add service"
	name := strings.TrimSpace(req.Name)
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	switch {
	case name == "":
		return domain.ServiceOffering{}, domain.Validation(op, "name is required")
	case req.PriceAmount < 0:
		return domain.ServiceOffering{}, domain.Validation(op, "price must not be negative")
	case len(currency) != 3:
		return domain.ServiceOffering{}, domain.Validation(op, "currency must be a 3 letter code")
	case req.DurationMinutes <= 0 || req.DurationMinutes > domain.MinutesPerDay:
		return domain.ServiceOffering{}, domain.Validation(op, "duration must be between 1 and 1440 minutes")
	}

	var svc domain.ServiceOffering
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := s.owned(ctx, tx, actor, op, providerID); err != nil {
			return err
		}
		svc = domain.ServiceOffering{
			ID:              uuid.NewString(),
			ProviderID:      providerID,
			Name:            name,
			PriceAmount:     req.PriceAmount,
			Currency:        currency,
			DurationMinutes: req.DurationMinutes,
			Active:          true,
			CreatedAt:       s.now(),
		}
		return tx.Catalog().Create(ctx, &svc)
	})
	if err != nil {
		return domain.ServiceOffering{}, err
	}
	return svc, nil
}

func (s *Service) ListServices(ctx context.Context, providerID string) ([]domain.ServiceOffering, error) {
	var out []domain.ServiceOffering
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.Providers().Get(ctx, providerID); err != nil {
			return err
		}
		var err error
		out, err = tx.Catalog().ListByProvider(ctx, providerID)
		return err
	})
	return out, err
}

// owned locks the provider and checks actor may manage it.
func (s *Service) owned(ctx context.Context, tx storage.Tx, actor domain.Actor, op, providerID string) (domain.Provider, error) {
	p, err := tx.Providers().GetForUpdate(ctx, providerID)
	if err != nil {
		return domain.Provider{}, err
	}
	if !actor.Owns(p.OwnerUserID) {
		return domain.Provider{}, domain.Unauthorized(op, "only the provider or an admin can do this")
	}
	return p, nil
}

// GetSchedule returns the provider's schedule, or an empty one in the
// provider's time zone when none was saved yet.
func (s *Service) GetSchedule(ctx context.Context, providerID string) (domain.ProviderSchedule, error) {
	var sched domain.ProviderSchedule
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Providers().Get(ctx, providerID)
		if err != nil {
			return err
		}
		sched, err = loadSchedule(ctx, tx, p)
		return err
	})
	return sched, err
}

func loadSchedule(ctx context.Context, tx storage.Tx, p domain.Provider) (domain.ProviderSchedule, error) {
	sched, err := tx.Schedules().Get(ctx, p.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ProviderSchedule{ProviderID: p.ID, TimeZone: p.TimeZone}, nil
	}
	return sched, err
}

// updateSchedule creates the schedule on first use, applies fn and validates
// the result before saving.
func (s *Service) updateSchedule(ctx context.Context, actor domain.Actor, providerID, op string, fn func(*domain.ProviderSchedule) error) (domain.ProviderSchedule, error) {
	var sched domain.ProviderSchedule
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := s.owned(ctx, tx, actor, op, providerID)
		if err != nil {
			return err
		}
		sched, err = loadSchedule(ctx, tx, p)
		if err != nil {
			return err
		}
		if err := fn(&sched); err != nil {
			return err
		}
		if err := schedule.Validate(sched); err != nil {
			return err
		}
		sched.UpdatedAt = s.now()
		if err := tx.Schedules().Save(ctx, sched); err != nil {
			return err
		}
		// The provider record mirrors the schedule's zone.
		if sched.TimeZone != p.TimeZone {
			return tx.Providers().UpdateTimeZone(ctx, p.ID, sched.TimeZone, sched.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return domain.ProviderSchedule{}, err
	}
	return sched, nil
}

// SetWorkingHours replaces the recurring weekly hours.
func (s *Service) SetWorkingHours(ctx context.Context, actor domain.Actor, providerID string, hours []domain.WorkingHours) (domain.ProviderSchedule, error) {
	return s.updateSchedule(ctx, actor, providerID, "set working hours", func(sched *domain.ProviderSchedule) error {
		sched.WorkingHours = append([]domain.WorkingHours(nil), hours...)
		return nil
	})
}

// SetTimeZone changes the zone clock times are interpreted in.
func (s *Service) SetTimeZone(ctx context.Context, actor domain.Actor, providerID, tz string) (domain.ProviderSchedule, error) {
	return s.updateSchedule(ctx, actor, providerID, "set time zone", func(sched *domain.ProviderSchedule) error {
		sched.TimeZone = strings.TrimSpace(tz)
		return nil
	})
}

// PutSpecialDate adds or replaces the override for sd.Date.
func (s *Service) PutSpecialDate(ctx context.Context, actor domain.Actor, providerID string, sd domain.SpecialDate) (domain.ProviderSchedule, error) {
	return s.updateSchedule(ctx, actor, providerID, "put special date", func(sched *domain.ProviderSchedule) error {
		for i := range sched.SpecialDates {
			if sched.SpecialDates[i].Date == sd.Date {
				sched.SpecialDates[i] = sd
				return nil
			}
		}
		sched.SpecialDates = append(sched.SpecialDates, sd)
		return nil
	})
}

func (s *Service) DeleteSpecialDate(ctx context.Context, actor domain.Actor, providerID string, date domain.Date) (domain.ProviderSchedule, error) {
	const op = "delete special date"
	return s.updateSchedule(ctx, actor, providerID, op, func(sched *domain.ProviderSchedule) error {
		for i := range sched.SpecialDates {
			if sched.SpecialDates[i].Date == date {
				sched.SpecialDates = append(sched.SpecialDates[:i], sched.SpecialDates[i+1:]...)
				return nil
			}
		}
		return domain.NotFound(op, "special date", date.String())
	})
}

func (s *Service) AddTimeSlot(ctx context.Context, actor domain.Actor, providerID string, ts domain.TimeSlot) (domain.TimeSlot, error) {
	ts.ID = uuid.NewString()
	ts.Start = ts.Start.UTC()
	ts.End = ts.End.UTC()
	_, err := s.updateSchedule(ctx, actor, providerID, "add time slot", func(sched *domain.ProviderSchedule) error {
		sched.TimeSlots = append(sched.TimeSlots, ts)
		return nil
	})
	if err != nil {
		return domain.TimeSlot{}, err
	}
	return ts, nil
}

func (s *Service) DeleteTimeSlot(ctx context.Context, actor domain.Actor, providerID, slotID string) (domain.ProviderSchedule, error) {
	const op = "delete time slot"
	return s.updateSchedule(ctx, actor, providerID, op, func(sched *domain.ProviderSchedule) error {
		for i := range sched.TimeSlots {
			if sched.TimeSlots[i].ID == slotID {
				sched.TimeSlots = append(sched.TimeSlots[:i], sched.TimeSlots[i+1:]...)
				return nil
			}
		}
		return domain.NotFound(op, "time slot", slotID)
	})
}

// OpenWindows resolves the provider's open intervals on date.
func (s *Service) OpenWindows(ctx context.Context, providerID string, date domain.Date) ([]schedule.Interval, error) {
	var out []schedule.Interval
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.Providers().Get(ctx, providerID); err != nil {
			return err
		}
		var err error
		out, err = s.checker.OpenWindows(ctx, tx, providerID, date)
		return err
	})
	return out, err
}

// FreeSlots lists future start times on date where serviceID fits. A zero
// step uses DefaultSlotStep.
func (s *Service) FreeSlots(ctx context.Context, providerID, serviceID string, date domain.Date, step time.Duration) ([]time.Time, error) {
	const op = "free slots"
	if step <= 0 {
		step = DefaultSlotStep
	}
	var out []time.Time
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		offering, err := tx.Catalog().Get(ctx, serviceID)
		if err != nil {
			return err
		}
		if offering.ProviderID != providerID {
			return domain.Validation(op, "service does not belong to provider")
		}
		duration := time.Duration(offering.DurationMinutes) * time.Minute
		out, err = s.checker.FreeSlots(ctx, tx, providerID, date, duration, step, s.now())
		return err
	})
	return out, err
}
