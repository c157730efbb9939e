package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/config"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", authHandler.Register)
			auth.Post("/login", authHandler.Login)
			auth.Post("/refresh", authHandler.Refresh)
			auth.Post("/logout", authHandler.Logout)
			auth.Get("/google", authHandler.GoogleAuth)
			auth.Get("/google/callback", authHandler.GoogleCallback)
			auth.Get("/yandex", authHandler.YandexAuth)
			auth.Get("/yandex/callback", authHandler.YandexCallback)
		})

		api.Route("/user", func(user chi.Router) {
			user.Use(authMiddleware.RequireAuth)
			user.Get("/me", userHandler.Me)
			user.Get("/{idOrEmail}", userHandler.Get)
			user.Put("/", userHandler.Update)
			user.Delete("/{id}", userHandler.Delete)
		})
	})

	return r
}
