package conflict

import (
	"net/http"

	"github.com/marshymcfloat/service-flow/internal/common"
	"github.com/marshymcfloat/service-flow/internal/tenant"
)

// Handler exposes admin endpoints for running and inspecting conflict scans.
type Handler struct {
	Svc *Service
}

// Scan runs an immediate scan for the current business and returns what it
// found. The periodic sweep covers every business; this endpoint exists so an
// admin can re-check right after editing hours or staffing.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	conflicts, err := h.Svc.ScanBusiness(r.Context(), businessID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "conflict scan failed", nil)
		return
	}
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": conflicts})
}

// Reports lists the open conflicts recorded by the last sweep.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	businessID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business could not be resolved", nil)
		return
	}
	reports, err := h.Svc.Reports(r.Context(), businessID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list conflicts", nil)
		return
	}
	if reports == nil {
		reports = []Conflict{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": reports})
}
