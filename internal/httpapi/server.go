// Package httpapi implements the Submission API (spec.md §6): the HTTP
// surface that accepts analyze requests and lets clients poll progress and
// fetch results. The router/middleware shape (chi + cors, a validator
// instance held on the server, JSON in/out) follows kubernaut's HTTP
// server package, the one pack repo that actually wires go-chi/chi and
// go-chi/cors together.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"prreview/internal/metrics"
	"prreview/internal/queue"
	"prreview/internal/store"
)

// Server holds the Submission API's collaborators: the Repository Store
// (reads for status/results, the initial Task write) and the Task Queue
// (handing the new task id to a worker).
type Server struct {
	store    *store.Store
	queue    *queue.Queue
	logger   *zap.Logger
	validate *validator.Validate
	maxRetries int
}

// New builds a Server. maxRetries seeds every submitted Task's max_retries
// field, spec.md §3.
func New(st *store.Store, q *queue.Queue, logger *zap.Logger, maxRetries int) *Server {
	return &Server{store: st, queue: q, logger: logger, validate: validator.New(), maxRetries: maxRetries}
}

// Router builds the chi.Mux exposing the three operations from spec.md §6.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		MaxAge:           300,
	}))

	r.With(observeRoute("submit")).Post("/analyses", s.submitAnalysis)
	r.With(observeRoute("status")).Get("/analyses/{taskID}/status", s.getStatus)
	r.With(observeRoute("results")).Get("/analyses/{taskID}/results", s.getResults)

	return r
}

// observeRoute wraps a handler to record metrics.HTTPRequests by route and
// status code, using chi's middleware.WrapResponseWriter to observe the
// status the inner handler actually wrote.
func observeRoute(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			metrics.HTTPRequests.WithLabelValues(route, http.StatusText(ww.Status())).Inc()
		})
	}
}
