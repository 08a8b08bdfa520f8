package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marshymcfloat/service-flow/internal/common"
	"github.com/marshymcfloat/service-flow/internal/events"
	"github.com/marshymcfloat/service-flow/internal/tenant"
)

// AdminHandler exposes endpoint management routes for business admins.
type AdminHandler struct {
	Store    Store
	Validate *validator.Validate
}

type createEndpointRequest struct {
	URL    string   `json:"url" validate:"required,url"`
	Secret string   `json:"secret" validate:"required,min=16"`
	Topics []string `json:"topics" validate:"required,min=1,dive,required"`
	Active *bool    `json:"active"`
}

type endpointResponse struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Topics []string `json:"topics"`
	Active bool     `json:"active"`
}

// CreateEndpoint registers a webhook endpoint for the current business.
func (h AdminHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	var req createEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid endpoint", map[string]any{"error": err.Error()})
		return
	}
	if err := validateURL(req.URL); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
		return
	}
	known := make(map[string]bool, len(events.DefaultTopics()))
	for _, topic := range events.DefaultTopics() {
		known[topic] = true
	}
	for _, topic := range req.Topics {
		if !known[strings.TrimSpace(topic)] {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "unknown topic "+topic, nil)
			return
		}
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	ep, err := h.Store.CreateEndpoint(r.Context(), Endpoint{
		BusinessID: businessID,
		URL:        strings.TrimSpace(req.URL),
		Secret:     req.Secret,
		Topics:     req.Topics,
		Active:     active,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to store endpoint", nil)
		return
	}
	common.JSON(w, http.StatusCreated, toEndpointResponse(ep))
}

// ListEndpoints returns the business's registered endpoints.
func (h AdminHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	endpoints, err := h.Store.ListEndpoints(r.Context(), businessID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list endpoints", nil)
		return
	}
	out := make([]endpointResponse, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, toEndpointResponse(ep))
	}
	common.JSON(w, http.StatusOK, map[string]any{"endpoints": out})
}

// DeleteEndpoint removes an endpoint owned by the current business.
func (h AdminHandler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid endpoint id", nil)
		return
	}
	ep, err := h.Store.GetEndpoint(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load endpoint", nil)
		return
	}
	if ep.BusinessID != businessID {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found", nil)
		return
	}
	if err := h.Store.DeleteEndpoint(r.Context(), id); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete endpoint", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"deleted": id.String()})
}

func (h AdminHandler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func toEndpointResponse(ep Endpoint) endpointResponse {
	return endpointResponse{
		ID:     ep.ID.String(),
		URL:    ep.URL,
		Topics: ep.Topics,
		Active: ep.Active,
	}
}
