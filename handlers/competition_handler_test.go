package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/services"
)

type stubCompetitionService struct {
	competition *models.Competition
	view        *services.CompetitionStatusView
	err         error
}

func (s *stubCompetitionService) CreateCompetition(_ context.Context, _ services.CreateCompetitionInput) (*models.Competition, error) {
	return s.competition, s.err
}

func (s *stubCompetitionService) GetCompetitionByID(_ context.Context, _ int) (*models.Competition, error) {
	return s.competition, s.err
}

func (s *stubCompetitionService) GetCompetitionStatus(_ context.Context, _ int) (*services.CompetitionStatusView, error) {
	return s.view, s.err
}

func (s *stubCompetitionService) ListCompetitions(_ context.Context, _ services.ListCompetitionsFilter) ([]models.Competition, error) {
	if s.competition == nil {
		return nil, s.err
	}
	return []models.Competition{*s.competition}, s.err
}

func (s *stubCompetitionService) UpdateCompetition(_ context.Context, _ int, _ services.CreateCompetitionInput) (*models.Competition, error) {
	return s.competition, s.err
}

func (s *stubCompetitionService) DeleteCompetition(_ context.Context, _ int) error {
	return s.err
}

func newCompetitionRouter(svc services.CompetitionService) *chi.Mux {
	h := NewCompetitionHandler(svc)
	router := chi.NewRouter()
	router.Get("/competitions/{competitionID}", h.GetByIDHandler)
	router.Get("/competitions/{competitionID}/status", h.StatusHandler)
	router.Post("/competitions", h.CreateHandler)
	return router
}

func TestCompetitionStatusEndpoint(t *testing.T) {
	start := time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC)
	competition := &models.Competition{
		ID:      7,
		Title:   "Weekly 35",
		Kind:    models.KindWeekly,
		Status:  models.StatusScheduled,
		StartAt: start,
		EndAt:   start.AddDate(0, 0, 7),
	}
	svc := &stubCompetitionService{
		competition: competition,
		view: &services.CompetitionStatusView{
			Competition:      competition,
			StoredStatus:     models.StatusScheduled,
			CalculatedStatus: models.StatusActive,
			CheckedAt:        start.Add(time.Hour),
		},
	}
	router := newCompetitionRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/competitions/7/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status struct {
			StoredStatus     string `json:"stored_status"`
			CalculatedStatus string `json:"calculated_status"`
		} `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status.StoredStatus != "scheduled" || body.Status.CalculatedStatus != "active" {
		t.Errorf("body = %+v, want stored scheduled calculated active", body.Status)
	}
}

func TestCompetitionStatusEndpointRejectsBadID(t *testing.T) {
	router := newCompetitionRouter(&stubCompetitionService{})

	for _, path := range []string{"/competitions/abc/status", "/competitions/0/status", "/competitions/-3/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, rec.Code)
		}
	}
}

func TestCompetitionNotFoundMapsTo404(t *testing.T) {
	router := newCompetitionRouter(&stubCompetitionService{err: services.ErrCompetitionNotFound})

	req := httptest.NewRequest(http.MethodGet, "/competitions/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateCompetitionErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"title conflict", services.ErrCompetitionTitleConflict, http.StatusConflict},
		{"weekly already active", services.ErrWeeklyAlreadyActive, http.StatusConflict},
		{"already over", services.ErrCompetitionAlreadyOver, http.StatusBadRequest},
		{"daily prize pool", services.ErrDailyPrizePoolForbidden, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newCompetitionRouter(&stubCompetitionService{err: tc.err})

			payload := `{"title":"Weekly","kind":"weekly","start_at":"2026-08-24T03:00:00Z","end_at":"2026-08-31T02:59:59Z"}`
			req := httptest.NewRequest(http.MethodPost, "/competitions", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestCreateCompetitionRejectsMalformedBody(t *testing.T) {
	router := newCompetitionRouter(&stubCompetitionService{})

	req := httptest.NewRequest(http.MethodPost, "/competitions", strings.NewReader(`{"title": `))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
