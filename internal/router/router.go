package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aspireabroad/visa-portal-api/internal/handler"
	"github.com/aspireabroad/visa-portal-api/internal/middleware"
	"github.com/aspireabroad/visa-portal-api/internal/observability"
	"github.com/aspireabroad/visa-portal-api/internal/session"
)

// Handlers groups the route handlers wired by Setup.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Student  *handler.StudentHandler
	Document *handler.DocumentHandler
	Admin    *handler.AdminStudentHandler
}

// Setup registers every route on the app. The forced-change gate sits on all
// authenticated routes except force-change-password and logout, so a session
// holding a consumed temporary credential can complete the change and nothing
// else.
func Setup(app *fiber.App, h Handlers, jwtSecret string, sessions *session.Store) {
	app.Get("/api/v1/health", h.Health.Check)
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register/send-otp", middleware.RateLimit("send-otp", 5, time.Minute), h.Auth.SendOTP)
	auth.Post("/register/verify-otp", middleware.RateLimit("verify-otp", 10, time.Minute), h.Auth.VerifyOTP)
	auth.Post("/register", middleware.RateLimit("register", 5, time.Minute), h.Auth.Register)
	auth.Post("/login", middleware.RateLimit("login", 10, time.Minute), h.Auth.Login)
	auth.Post("/forgot-password", middleware.RateLimit("forgot-password", 15, time.Minute), h.Auth.ForgotPassword)

	authenticated := api.Group("", middleware.Authenticated(jwtSecret, sessions))
	authenticated.Post("/auth/logout", h.Auth.Logout)
	authenticated.Post("/auth/force-change-password", h.Auth.ForceChangePassword)

	gated := authenticated.Group("", middleware.ForcedChangeGate())
	gated.Put("/settings/password", h.Auth.ChangePassword)

	student := gated.Group("/student", middleware.RequireStudent())
	student.Get("/dashboard", h.Student.Dashboard)
	student.Put("/profile", h.Student.UpdateProfile)
	student.Post("/notifications/clear", h.Student.ClearNotifications)

	documents := gated.Group("/documents")
	documents.Post("", h.Document.Upload)
	documents.Get("/:id/view", middleware.RequireAdmin(), h.Document.View)
	documents.Get("/:id/download", h.Document.Download)
	documents.Delete("/:id", h.Document.Delete)

	admin := gated.Group("/admin", middleware.RequireAdmin())
	admin.Get("/students", h.Admin.List)
	admin.Get("/students/:id", h.Admin.Detail)
	admin.Patch("/students/:id/status", h.Admin.UpdateStatus)
	admin.Post("/students/:id/documents", h.Document.AdminUpload)
	admin.Post("/students/:id/edit", h.Admin.StageEdit)
	admin.Post("/students/:id/edit/confirm", h.Admin.ConfirmEdit)
	admin.Post("/students/:id/edit/cancel", h.Admin.CancelEdit)
	admin.Post("/students/:id/delete", h.Admin.StageDelete)
	admin.Post("/students/:id/delete/confirm", h.Admin.ConfirmDelete)
	admin.Post("/students/:id/delete/cancel", h.Admin.CancelDelete)
}
