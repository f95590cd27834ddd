package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wordarena/arena-backend/repositories"
	"github.com/wordarena/arena-backend/services"
)

type AdminHandler struct {
	reconciler   services.ReconcilerService
	finalization services.FinalizationService
	audit        services.AuditService
	dashboard    services.DashboardService
	automation   repositories.AutomationLogRepository
}

func NewAdminHandler(
	reconciler services.ReconcilerService,
	finalization services.FinalizationService,
	audit services.AuditService,
	dashboard services.DashboardService,
	automation repositories.AutomationLogRepository,
) *AdminHandler {
	return &AdminHandler{
		reconciler:   reconciler,
		finalization: finalization,
		audit:        audit,
		dashboard:    dashboard,
		automation:   automation,
	}
}

// ReconcileHandler handles POST /admin/reconcile, triggering one sweep on
// demand outside the scheduler.
func (h *AdminHandler) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.ReconcileStatuses(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type finalizeInput struct {
	Confirmation string `json:"confirmation"`
}

// FinalizeHandler handles POST /admin/competitions/{competitionID}/finalize.
// The body must repeat "FINALIZE <id>" so the irreversible snapshot cannot be
// fired by a stray click.
func (h *AdminHandler) FinalizeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input finalizeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	expected := fmt.Sprintf("FINALIZE %d", id)
	if input.Confirmation != expected {
		badRequestResponse(w, r, fmt.Errorf("confirmation phrase must be %q", expected))
		return
	}

	result, err := h.finalization.FinalizeCompetition(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AuditHandler handles GET /admin/audit
func (h *AdminHandler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.audit.RunAudit(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DashboardHandler handles GET /admin/dashboard
func (h *AdminHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.GetStats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AutomationLogHandler handles GET /admin/automation-log
func (h *AdminHandler) AutomationLogHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := 50, 0
	query := r.URL.Query()
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		} else {
			badRequestResponse(w, r, errors.New("invalid limit query parameter"))
			return
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		} else {
			badRequestResponse(w, r, errors.New("invalid offset query parameter"))
			return
		}
	}

	entries, err := h.automation.List(r.Context(), limit, offset)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"entries": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
