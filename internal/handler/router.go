package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/kuriftu/rewards-system/internal/middleware"
	"github.com/kuriftu/rewards-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса Kuriftu Rewards.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/test-db", h.TestDB)

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Get("/catalog", h.GetCatalog)
		r.Get("/catalog/{category}", h.GetCatalog)
		r.Get("/announcements", h.ListAnnouncements)
		r.Post("/feedback", h.CreateFeedback)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/rewards", h.GetRewards)
			r.Post("/rewards/{id}/redeem", h.RedeemReward)
			r.Post("/redemptions/{token}/confirm", h.ConfirmRedemption)
			r.Post("/redemptions/{token}/cancel", h.CancelRedemption)

			r.Post("/bookings", h.CreateBooking)
			r.Get("/bookings", h.GetBookings)
			r.Post("/bookings/quote", h.QuoteBooking)

			r.Get("/balance", h.GetBalance)
			r.Get("/points/history", h.GetPointsHistory)

			r.Post("/reservations/dining", h.CreateDiningReservation)
			r.Post("/chat", h.Chat)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(custommiddleware.RequireRole(model.RoleStaff, model.RoleAdmin))

			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks", h.CreateTask)
			r.Patch("/tasks/{id}", h.UpdateTaskStatus)

			r.Get("/feedback", h.ListFeedback)
			r.Patch("/feedback/{id}", h.UpdateFeedbackStatus)

			r.Get("/rooms", h.ListRooms)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(custommiddleware.RequireRole(model.RoleAdmin))

			r.Get("/announcements", h.ListAnnouncements)
			r.Post("/announcements", h.CreateAnnouncement)
			r.Delete("/announcements/{id}", h.DeleteAnnouncement)

			r.Get("/bookings", h.ListAllBookings)
			r.Patch("/bookings/{id}/status", h.UpdateBookingStatus)

			r.Patch("/users/{id}/tier", h.UpdateUserTier)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
