package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hd-notes/notes-api/internal/application/auth"
	"github.com/hd-notes/notes-api/internal/application/note"
	"github.com/hd-notes/notes-api/internal/application/session"
	"github.com/hd-notes/notes-api/internal/config"
	"github.com/hd-notes/notes-api/internal/transport/http/handler"
	appmiddleware "github.com/hd-notes/notes-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:     deps.UserRepo,
		JWTProvider:  deps.JWTProvider,
		GoogleClient: deps.GoogleClient,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:            deps.UserRepo,
		Mailer:              deps.Mailer,
		TokenIssuer:         sessionSvc,
		ResetBaseURL:        cfg.CORSOrigin,
		MaskMissingAccounts: cfg.MaskMissingAccounts,
	})
	noteSvc := note.NewService(deps.NoteRepo)

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(authSvc, sessionSvc, cfg)
	noteH := handler.NewNoteHandler(noteSvc)

	authMw := appmiddleware.Auth(deps.JWTProvider, deps.UserRepo)

	// 5 requests/second, burst of 10 — applied to the sensitive public
	// auth endpoints. Also the server-side OTP resend cooldown.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	r.Get("/healthz", healthH.Ping)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			// ── Public routes (no auth) ──────────────────────────
			r.With(sensitiveRL.Limit).Post("/send-otp", userH.SendRegistrationOTP)
			r.With(sensitiveRL.Limit).Post("/register", userH.Register)
			r.With(sensitiveRL.Limit).Post("/login-otp", userH.SendLoginOTP)
			r.With(sensitiveRL.Limit).Post("/verify-login", userH.VerifyLogin)
			r.With(sensitiveRL.Limit).Post("/resend-otp", userH.ResendOTP)
			r.With(sensitiveRL.Limit).Post("/forgot-password", userH.ForgotPassword)
			r.With(sensitiveRL.Limit).Post("/reset-password/{token}", userH.ResetPassword)
			r.Post("/refresh-token", userH.RefreshToken)

			r.Get("/google", userH.GoogleStart)
			r.Get("/google/callback", userH.GoogleCallback)
			r.Get("/google/failure", userH.GoogleFailure)

			// ── Authenticated routes ─────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(authMw)
				r.Get("/me", userH.Me)
				r.Post("/logout", userH.Logout)
			})
		})

		r.Route("/notes", func(r chi.Router) {
			r.Use(authMw)
			r.Post("/", noteH.Create)
			r.Get("/", noteH.List)
			r.Patch("/{noteId}", noteH.Update)
			r.Delete("/{noteId}", noteH.Delete)
		})
	})

	return r
}
