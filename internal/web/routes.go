package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/smart-classroom/presence/internal/web/handlers"
)

func (s *Server) setupRoutes(engine Engine, stores Stores) {
	// Create handlers
	verifyHandler := handlers.NewVerifyHandler(engine.Verifier, engine.Ledger)
	emotionsHandler := handlers.NewEmotionsHandler(engine.Analyzer, stores.Emotions, engine.Aggregator, engine.Validate)
	studentsHandler := handlers.NewStudentsHandler(stores.Students, engine.Embedder, engine.Validate)
	classesHandler := handlers.NewClassesHandler(stores.Sessions)
	statsHandler := handlers.NewStatsHandler(stores.Students, stores.Records, stores.Emotions, stores.Sessions, engine.Aggregator)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Attendance
		r.Post("/attendance/verify", verifyHandler.Verify)
		r.Post("/attendance/batch-verify", verifyHandler.BatchVerify)
		r.Get("/attendance/report/{classID}", verifyHandler.Report)

		// Emotions
		r.Post("/emotions/analyze", emotionsHandler.Analyze)
		r.Post("/emotions/batch-analyze", emotionsHandler.BatchAnalyze)
		r.Get("/emotions/class-summary/{classID}", emotionsHandler.ClassSummary)
		r.Get("/emotions/class/{classID}", emotionsHandler.ClassLogs)
		r.Get("/emotions/student-timeline/{studentID}", emotionsHandler.StudentTimeline)

		// Students
		r.Post("/students/enroll", studentsHandler.Enroll)
		r.Get("/students", studentsHandler.List)
		r.Get("/students/search", studentsHandler.Search)
		r.Get("/students/{studentID}", studentsHandler.Get)
		r.Delete("/students/{studentID}", studentsHandler.Delete)

		// Classes
		r.Post("/classes", classesHandler.Create)
		r.Get("/classes", classesHandler.List)
		r.Get("/classes/{classID}", classesHandler.Get)
		r.Put("/classes/{classID}", classesHandler.Update)
		r.Delete("/classes/{classID}", classesHandler.Delete)
		r.Get("/classes/{classID}/stats", statsHandler.ClassStats)

		// Stats
		r.Get("/stats/dashboard", statsHandler.Get)
	})
}
