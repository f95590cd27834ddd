package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wordarena/arena-backend/handlers"
	"github.com/wordarena/arena-backend/middleware"
)

// SetupRoutes wires the HTTP surface: public reads, authenticated player
// actions, and the JWT-gated admin group.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	competitionHandler *handlers.CompetitionHandler,
	participationHandler *handlers.ParticipationHandler,
	rankingHandler *handlers.RankingHandler,
	inviteHandler *handlers.InviteHandler,
	adminHandler *handlers.AdminHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	adminOnly := middleware.Authorize(middleware.RoleAdmin)

	router.Route("/competitions", func(r chi.Router) {
		r.Get("/", competitionHandler.ListHandler)
		r.Get("/{competitionID}", competitionHandler.GetByIDHandler)
		r.Get("/{competitionID}/status", competitionHandler.StatusHandler)
		r.Get("/{competitionID}/leaderboard", participationHandler.LeaderboardHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/{competitionID}/join", participationHandler.JoinHandler)
		})
	})

	router.Get("/rankings/{periodKey}", rankingHandler.GetHandler)

	router.Route("/sessions", func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/", participationHandler.StartSessionHandler)
		r.Post("/{sessionID}/complete", participationHandler.CompleteSessionHandler)
	})

	router.Route("/invites", func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/", inviteHandler.CreateHandler)
		r.Post("/redeem", inviteHandler.RedeemHandler)
		r.Get("/stats", inviteHandler.StatsHandler)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(adminOnly)

		r.Post("/competitions", competitionHandler.CreateHandler)
		r.Put("/competitions/{competitionID}", competitionHandler.UpdateHandler)
		r.Delete("/competitions/{competitionID}", competitionHandler.DeleteHandler)
		r.Post("/competitions/{competitionID}/finalize", adminHandler.FinalizeHandler)

		r.Post("/reconcile", adminHandler.ReconcileHandler)
		r.Post("/rankings/{periodKey}/aggregate", rankingHandler.AggregateHandler)
		r.Get("/audit", adminHandler.AuditHandler)
		r.Get("/dashboard", adminHandler.DashboardHandler)
		r.Get("/automation-log", adminHandler.AutomationLogHandler)
	})

	router.Get("/ws/competitions/{competitionID}", webSocketHandler.ServeCompetition)
	router.Get("/ws/admin", webSocketHandler.ServeAdmin)
}
