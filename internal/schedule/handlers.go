package schedule

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marshymcfloat/service-flow/internal/common"
	"github.com/marshymcfloat/service-flow/internal/events"
	"github.com/marshymcfloat/service-flow/internal/tenant"
)

// Handler exposes admin endpoints for editing opening hours and staffing.
type Handler struct {
	Repo *PGRepo
	Bus  *events.Bus
}

type dayHoursPayload struct {
	OpenMin  int  `json:"openMin"`
	CloseMin int  `json:"closeMin"`
	Closed   bool `json:"closed"`
}

type staffingPayload struct {
	Employees int `json:"employees"`
}

type weekResponse struct {
	Weekday  int    `json:"weekday"`
	OpenMin  int    `json:"openMin"`
	CloseMin int    `json:"closeMin"`
	Closed   bool   `json:"closed"`
	Label    string `json:"label"`
}

// GetWeek returns the full weekly opening hours.
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	week, err := h.Repo.LoadWeekHours(r.Context(), businessID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load hours", nil)
		return
	}
	out := make([]weekResponse, 0, len(week))
	for weekday, day := range week {
		out = append(out, weekResponse{
			Weekday:  weekday,
			OpenMin:  int(day.Open),
			CloseMin: int(day.Close),
			Closed:   day.Closed,
			Label:    day.Open.String() + "-" + day.Close.String(),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// PutDayHours stores the opening window for one weekday. Changing hours can
// invalidate existing bookings; the emitted event lets the sweep pick that up
// before the next scheduled run.
func (h *Handler) PutDayHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	weekday, ok := parseWeekday(chi.URLParam(r, "weekday"))
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "weekday must be 0-6", nil)
		return
	}
	var payload dayHoursPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !payload.Closed {
		if payload.OpenMin < 0 || payload.CloseMin > 24*60 || payload.OpenMin >= payload.CloseMin {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "opening window must satisfy 0 <= open < close <= 1440", nil)
			return
		}
	}
	day := DayHours{Open: Minutes(payload.OpenMin), Close: Minutes(payload.CloseMin), Closed: payload.Closed}
	if err := h.Repo.UpsertDayHours(r.Context(), businessID, weekday, day); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to store hours", nil)
		return
	}
	h.emitChanged(r, businessID, map[string]any{"weekday": weekday, "closed": payload.Closed})
	common.JSON(w, http.StatusOK, map[string]any{"weekday": weekday})
}

// PutStaffing stores the rostered employee count for one weekday.
func (h *Handler) PutStaffing(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	weekday, ok := parseWeekday(chi.URLParam(r, "weekday"))
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "weekday must be 0-6", nil)
		return
	}
	var payload staffingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Employees < 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "employees cannot be negative", nil)
		return
	}
	if err := h.Repo.UpsertStaffing(r.Context(), businessID, weekday, payload.Employees); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to store staffing", nil)
		return
	}
	h.emitChanged(r, businessID, map[string]any{"weekday": weekday, "employees": payload.Employees})
	common.JSON(w, http.StatusOK, map[string]any{"weekday": weekday})
}

func (h *Handler) emitChanged(r *http.Request, businessID string, payload map[string]any) {
	if h.Bus == nil {
		return
	}
	aggregate := uuid.NewSHA1(uuid.NameSpaceOID, []byte("schedule:"+businessID))
	_, _ = h.Bus.Emit(r.Context(), events.TopicScheduleChanged, businessID, aggregate, payload)
}

func parseWeekday(raw string) (int, bool) {
	weekday, err := strconv.Atoi(raw)
	if err != nil || weekday < 0 || weekday > 6 {
		return 0, false
	}
	return weekday, true
}
