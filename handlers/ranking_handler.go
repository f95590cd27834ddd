package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wordarena/arena-backend/services"
)

type RankingHandler struct {
	rankingService services.RankingService
}

func NewRankingHandler(rs services.RankingService) *RankingHandler {
	return &RankingHandler{rankingService: rs}
}

// GetHandler handles GET /rankings/{periodKey}
func (h *RankingHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	periodKey := chi.URLParam(r, "periodKey")

	entries, err := h.rankingService.GetRanking(r.Context(), periodKey)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{
		"period_key": periodKey,
		"ranking":    entries,
	}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AggregateHandler handles POST /admin/rankings/{periodKey}/aggregate
func (h *RankingHandler) AggregateHandler(w http.ResponseWriter, r *http.Request) {
	periodKey := chi.URLParam(r, "periodKey")

	result, err := h.rankingService.AggregateRanking(r.Context(), periodKey)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
