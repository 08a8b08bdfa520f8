package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marshymcfloat/service-flow/internal/common"
	"github.com/marshymcfloat/service-flow/internal/pricing"
	"github.com/marshymcfloat/service-flow/internal/schedule"
	"github.com/marshymcfloat/service-flow/internal/tenant"
)

// Handler exposes the quote, submission, and availability endpoints.
type Handler struct {
	Svc      *Service
	SlotStep time.Duration
}

type quotePayload struct {
	ServiceID       string  `json:"serviceId"`
	PackageID       *string `json:"packageId"`
	VoucherDiscount float64 `json:"voucherDiscount"`
	PaymentMethod   string  `json:"paymentMethod"`
	PaymentType     string  `json:"paymentType"`
}

type submitPayload struct {
	quotePayload
	CustomerName string    `json:"customerName"`
	StartsAt     time.Time `json:"startsAt"`
}

// Quote prices a prospective booking.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	var payload quotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	in, err := payload.toInput()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	quote, err := h.Svc.QuoteBooking(r.Context(), businessID, in)
	if err != nil {
		writeBookingError(w, err, "failed to price booking")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

// Submit validates and persists a booking.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	in, err := payload.quotePayload.toInput()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	name := strings.TrimSpace(payload.CustomerName)
	if name == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "customer name is required", nil)
		return
	}
	if payload.StartsAt.IsZero() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "start time is required", nil)
		return
	}
	created, err := h.Svc.SubmitBooking(r.Context(), businessID, SubmitInput{
		QuoteInput:   in,
		CustomerName: name,
		StartsAt:     payload.StartsAt,
	})
	if err != nil {
		writeBookingError(w, err, "failed to create booking")
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Get returns one booking.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid booking id", nil)
		return
	}
	b, err := h.Svc.Repo.GetBooking(r.Context(), businessID, id)
	if err != nil {
		writeBookingError(w, err, "failed to load booking")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// Availability lists open start times for a service on a date.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	serviceID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("serviceId")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid service id", nil)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), schedule.Location())
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "date must be YYYY-MM-DD", nil)
		return
	}
	slots, err := h.Svc.AvailableSlots(r.Context(), businessID, serviceID, date, h.SlotStep)
	if err != nil {
		writeBookingError(w, err, "failed to compute availability")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": slots})
}

func (p quotePayload) toInput() (QuoteInput, error) {
	serviceID, err := uuid.Parse(strings.TrimSpace(p.ServiceID))
	if err != nil {
		return QuoteInput{}, errors.New("invalid service id")
	}
	var packageID *uuid.UUID
	if p.PackageID != nil {
		parsed, err := uuid.Parse(strings.TrimSpace(*p.PackageID))
		if err != nil {
			return QuoteInput{}, errors.New("invalid package id")
		}
		packageID = &parsed
	}
	method, err := pricing.ParsePaymentMethod(p.PaymentMethod)
	if err != nil {
		return QuoteInput{}, err
	}
	paymentType, err := pricing.ParsePaymentType(p.PaymentType)
	if err != nil {
		return QuoteInput{}, err
	}
	if p.VoucherDiscount < 0 {
		return QuoteInput{}, errors.New("voucher discount cannot be negative")
	}
	return QuoteInput{
		ServiceID:       serviceID,
		PackageID:       packageID,
		VoucherDiscount: p.VoucherDiscount,
		PaymentMethod:   method,
		PaymentType:     paymentType,
	}, nil
}

func writeBookingError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrOutsideHorizon):
		common.JSONError(w, http.StatusUnprocessableEntity, "OUTSIDE_HORIZON", err.Error(), nil)
	case errors.Is(err, ErrNotBookable):
		common.JSONError(w, http.StatusConflict, "NOT_BOOKABLE", err.Error(), nil)
	case errors.Is(err, pgx.ErrNoRows):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", fallback, nil)
	}
}
