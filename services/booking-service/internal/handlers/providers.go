package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/provider"
)

type ProviderHandler struct {
	svc    *provider.Service
	logger *slog.Logger
}

func NewProviderHandler(svc *provider.Service, logger *slog.Logger) *ProviderHandler {
	return &ProviderHandler{svc: svc, logger: logger}
}

type registerProviderRequest struct {
	Name        string `json:"name"`
	TimeZone    string `json:"time_zone"`
	OwnerUserID string `json:"owner_user_id"`
}

func (h *ProviderHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req registerProviderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := h.svc.Register(r.Context(), actor, provider.RegisterRequest{
		Name:        req.Name,
		TimeZone:    req.TimeZone,
		OwnerUserID: req.OwnerUserID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *ProviderHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

type addServiceRequest struct {
	Name            string `json:"name"`
	PriceAmount     int64  `json:"price_amount"`
	Currency        string `json:"currency"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *ProviderHandler) AddService(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req addServiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	svc, err := h.svc.AddService(r.Context(), actor, r.PathValue("id"), provider.ServiceRequest(req))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, svc)
}

func (h *ProviderHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListServices(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []domain.ServiceOffering{}
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *ProviderHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	h.schedule(w, r)(h.svc.GetSchedule(r.Context(), r.PathValue("id")))
}

func (h *ProviderHandler) SetWorkingHours(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var hours []domain.WorkingHours
	if err := httpx.DecodeJSON(r, &hours); err != nil {
		badRequest(w, err.Error())
		return
	}
	h.schedule(w, r)(h.svc.SetWorkingHours(r.Context(), actor, r.PathValue("id"), hours))
}

type timeZoneRequest struct {
	TimeZone string `json:"time_zone"`
}

func (h *ProviderHandler) SetTimeZone(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req timeZoneRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	h.schedule(w, r)(h.svc.SetTimeZone(r.Context(), actor, r.PathValue("id"), req.TimeZone))
}

// PutSpecialDate takes the date from the path; a body date is ignored.
func (h *ProviderHandler) PutSpecialDate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	date, err := domain.ParseDate(r.PathValue("date"))
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	var sd domain.SpecialDate
	if err := httpx.DecodeJSON(r, &sd); err != nil {
		badRequest(w, err.Error())
		return
	}
	sd.Date = date
	h.schedule(w, r)(h.svc.PutSpecialDate(r.Context(), actor, r.PathValue("id"), sd))
}

func (h *ProviderHandler) DeleteSpecialDate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	date, err := domain.ParseDate(r.PathValue("date"))
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	h.schedule(w, r)(h.svc.DeleteSpecialDate(r.Context(), actor, r.PathValue("id"), date))
}

type timeSlotRequest struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	IsAvailable bool   `json:"is_available"`
	Note        string `json:"note"`
}

func (h *ProviderHandler) AddTimeSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req timeSlotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	start, err := parseTime(req.Start)
	if err != nil {
		badRequest(w, "start must be an RFC3339 timestamp")
		return
	}
	end, err := parseTime(req.End)
	if err != nil {
		badRequest(w, "end must be an RFC3339 timestamp")
		return
	}
	ts, err := h.svc.AddTimeSlot(r.Context(), actor, r.PathValue("id"), domain.TimeSlot{
		Start:       start,
		End:         end,
		IsAvailable: req.IsAvailable,
		Note:        req.Note,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, ts)
}

func (h *ProviderHandler) DeleteTimeSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.schedule(w, r)(h.svc.DeleteTimeSlot(r.Context(), actor, r.PathValue("id"), r.PathValue("slotID")))
}

// Availability returns the open windows for ?date=YYYY-MM-DD in the provider's zone.
func (h *ProviderHandler) Availability(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(w, r)
	if !ok {
		return
	}
	windows, err := h.svc.OpenWindows(r.Context(), r.PathValue("id"), date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"date": date, "windows": windows})
}

// Slots lists bookable starts for ?service_id on ?date, stepping ?step_minutes.
func (h *ProviderHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(w, r)
	if !ok {
		return
	}
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		badRequest(w, "service_id is required")
		return
	}
	if !validID(serviceID) {
		writeError(w, r, h.logger, domain.NotFound("free slots", "service", serviceID))
		return
	}
	step, err := queryInt(r, "step_minutes", int(provider.DefaultSlotStep/time.Minute))
	if err != nil || step == 0 {
		badRequest(w, "step_minutes must be a positive integer")
		return
	}
	slots, err := h.svc.FreeSlots(r.Context(), r.PathValue("id"), serviceID, date, time.Duration(step)*time.Minute)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"date": date, "service_id": serviceID, "slots": slots})
}

func (h *ProviderHandler) schedule(w http.ResponseWriter, r *http.Request) func(domain.ProviderSchedule, error) {
	return func(s domain.ProviderSchedule, err error) {
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, s)
	}
}

func queryDate(w http.ResponseWriter, r *http.Request) (domain.Date, bool) {
	date, err := domain.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return domain.Date{}, false
	}
	return date, true
}
