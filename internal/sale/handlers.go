package sale

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/marshymcfloat/service-flow/internal/common"
	"github.com/marshymcfloat/service-flow/internal/tenant"
)

// Handler exposes sale event management and preview endpoints.
type Handler struct {
	Svc *Service
}

type eventPayload struct {
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Value     float64   `json:"value"`
	ScopeType string    `json:"scopeType"`
	TargetIDs []string  `json:"targetIds"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
}

type previewRequest struct {
	ServiceID string  `json:"serviceId"`
	PackageID *string `json:"packageId"`
	Price     float64 `json:"price"`
}

// Create inserts a new sale event for the current business.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	stored, err := payload.toStored(businessID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	created, err := h.Svc.CreateEvent(r.Context(), stored)
	if err != nil {
		writeSaleError(w, err, "failed to create sale event")
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update mutates an existing sale event.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	stored, err := payload.toStored(businessID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	stored.ID = id
	updated, err := h.Svc.UpdateEvent(r.Context(), stored)
	if err != nil {
		writeSaleError(w, err, "failed to update sale event")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// List returns every sale event for the current business.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	stored, err := h.Svc.Q.ListEvents(r.Context(), businessID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list sale events", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stored})
}

// Delete removes a sale event.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	if err := h.Svc.DeleteEvent(r.Context(), businessID, id); err != nil {
		writeSaleError(w, err, "failed to delete sale event")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"deleted": id.String()})
}

// Preview returns the best discount for a line item without persisting state.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	serviceID, err := uuid.Parse(strings.TrimSpace(req.ServiceID))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid service id", nil)
		return
	}
	if req.Price < 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "price cannot be negative", nil)
		return
	}
	var packageID *uuid.UUID
	if req.PackageID != nil {
		parsed, err := uuid.Parse(strings.TrimSpace(*req.PackageID))
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid package id", nil)
			return
		}
		packageID = &parsed
	}
	discount, err := h.Svc.BestDiscount(r.Context(), businessID, serviceID, packageID, req.Price)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to compute discount", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": discount})
}

func (p eventPayload) toStored(businessID string) (StoredEvent, error) {
	ids := make([]uuid.UUID, 0, len(p.TargetIDs))
	for _, raw := range p.TargetIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return StoredEvent{}, errors.New("invalid target id " + raw)
		}
		ids = append(ids, id)
	}
	return StoredEvent{
		BusinessID: businessID,
		Title:      strings.TrimSpace(p.Title),
		Kind:       Kind(strings.ToUpper(strings.TrimSpace(p.Kind))),
		Value:      p.Value,
		ScopeType:  ScopeType(strings.ToUpper(strings.TrimSpace(p.ScopeType))),
		TargetIDs:  ids,
		StartsAt:   p.StartsAt,
		EndsAt:     p.EndsAt,
	}, nil
}

func writeSaleError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, ErrInvalidEvent) {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "sale event not found", nil)
		return
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		common.JSONError(w, http.StatusConflict, "CONFLICT", "sale event already exists", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", fallback, nil)
}
