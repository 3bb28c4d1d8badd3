package api

import (
	"net/http"
	"time"

	"quizclash/internal/api/handler"
	"quizclash/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authHandler *handler.AuthHandler,
	challengeHandler *handler.ChallengeHandler,
	realtimeHandler *handler.RealtimeHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	// SSE streams outlive any sensible request timeout, so the timeout only
	// wraps the request/response routes below.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Group(func(timed chi.Router) {
			timed.Use(chiMiddleware.Timeout(60 * time.Second))
			timed.Route("/auth", authHandler.RegisterRoutes)
			timed.Route("/challenges", challengeHandler.RegisterRoutes)
		})
		v1.Route("/realtime", realtimeHandler.RegisterRoutes)
	})

	return r
}
