package apid

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vaultbox/emts/internal/logging"
)

// NewRouter builds the API collaborator's chi router over store, guarding
// every route with a single static HS256 bearer secret.
func NewRouter(store Store, bearerSecret []byte, corsOrigins []string) http.Handler {
	h := &handlers{store: store}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(bearerSecret))
		r.Get("/messages", h.listMessages)
		r.Get("/messages/{id}", h.getMessage)
		r.Patch("/messages/{id}/read", h.markRead)
		r.Delete("/messages/{id}", h.deleteMessage)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.DebugLog("apid: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
