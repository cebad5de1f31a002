package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"geo-challenge/internal/handler"
)

// Dependencies holds everything the router mounts.
type Dependencies struct {
	Challenges     *handler.ChallengeHandler
	Guesses        *handler.GuessHandler
	Users          *handler.UserHandler
	Health         http.HandlerFunc
	Limiter        *RateLimiter
	AllowedOrigins []string
	// PhotoDir, when set, is served read-only under PhotoPrefix.
	PhotoDir    string
	PhotoPrefix string
}

// NewRouter builds the HTTP router.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(Recoverer)
	r.Use(CORS(deps.AllowedOrigins))
	r.Use(Identity)

	if deps.Health != nil {
		r.Get("/healthz", deps.Health)
	}

	r.Route("/challenges", func(r chi.Router) {
		r.Get("/", deps.Challenges.List)
		r.Post("/", deps.Challenges.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", deps.Challenges.Get)
			r.Get("/leaderboard", deps.Challenges.Leaderboard)
			r.Get("/attempts", deps.Guesses.Attempts)

			r.Group(func(r chi.Router) {
				if deps.Limiter != nil {
					r.Use(deps.Limiter.Middleware)
				}
				r.Post("/guess", deps.Guesses.Submit)
			})
		})
	})

	if deps.Users != nil {
		r.Get("/users/{id}/stats", deps.Users.Stats)
	}

	if deps.PhotoDir != "" && deps.PhotoPrefix != "" {
		prefix := deps.PhotoPrefix
		fs := http.StripPrefix(prefix, http.FileServer(http.Dir(deps.PhotoDir)))
		r.Get(prefix+"/*", fs.ServeHTTP)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handler.WriteError(w, http.StatusNotFound, handler.CodeNotFound, "no such route")
	})
	return r
}
