package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identitiesHandler := handlers.NewIdentitiesHandler(s.services)
	attendanceHandler := handlers.NewAttendanceHandler(s.services)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities", identitiesHandler.Create)
		r.Post("/identities/{code}/face", identitiesHandler.RegisterFace)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/summary", attendanceHandler.Summary)
		r.Post("/attendance/absentees", attendanceHandler.FinalizeAbsentees)
	})
}
