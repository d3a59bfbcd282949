package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hdfs-drive/internal/config"
	"hdfs-drive/internal/handler"
	"hdfs-drive/internal/middleware"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	driveHandler *handler.DriveHandler,
	shareHandler *handler.ShareHandler,
	adminHandler *handler.AdminHandler,
	healthCheck func() error,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	// Downloads and uploads outlive the JSON request budget; they get an
	// idle-based deadline instead of a flat one.
	streaming := middleware.StreamingTimeout(time.Hour, 2*time.Minute)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if healthCheck != nil {
			if err := healthCheck(); err != nil {
				http.Error(w, "degraded", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Public token downloads live outside /api/v1 so share links stay short.
	r.With(streaming).Get("/s/{token}", shareHandler.PublicDownload)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Use(middleware.Timeout(cfg.RequestTimeout))
			auth.Post("/login", authHandler.Login)
			auth.Post("/refresh", authHandler.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", authHandler.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
			auth.With(authMiddleware.RequireAuth, authMiddleware.RequireAdmin).Post("/register", authHandler.Register)
		})

		api.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)

			authed.Group(func(stream chi.Router) {
				stream.Use(streaming)
				stream.Get("/files/download", driveHandler.Download)
				stream.Get("/files/thumbnail", driveHandler.Thumbnail)
				stream.Post("/files/upload", driveHandler.Upload)
			})

			authed.Group(func(jsonAPI chi.Router) {
				jsonAPI.Use(middleware.Timeout(cfg.RequestTimeout))

				jsonAPI.Get("/files", driveHandler.List)
				jsonAPI.Post("/files/directory", driveHandler.CreateDirectory)
				jsonAPI.Post("/files/save", driveHandler.Save)
				jsonAPI.Put("/files/move", driveHandler.Move)
				jsonAPI.Post("/files/copy", driveHandler.Copy)
				jsonAPI.Delete("/files", driveHandler.Delete)
				jsonAPI.Get("/search", driveHandler.Search)

				jsonAPI.Get("/trash", driveHandler.ListTrash)
				jsonAPI.Post("/trash/restore", driveHandler.Restore)
				jsonAPI.Post("/trash/restore-batch", driveHandler.RestoreBatch)
				jsonAPI.With(authMiddleware.RequireAdmin).Post("/trash/purge", driveHandler.PurgeTrash)

				jsonAPI.Get("/types", driveHandler.TypeClasses)
				jsonAPI.Get("/types/{class}", driveHandler.ListByType)

				jsonAPI.Post("/shares", shareHandler.Create)
				jsonAPI.Get("/shares", shareHandler.List)
				jsonAPI.Delete("/shares/{id}", shareHandler.Revoke)

				jsonAPI.With(authMiddleware.RequireAdmin).Get("/admin/users", adminHandler.ListUsers)
				jsonAPI.With(authMiddleware.RequireAdmin).Get("/admin/logs", adminHandler.QueryLogs)
			})
		})
	})

	return r
}
