package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/internal/community"
	"warden/internal/directory"
	"warden/internal/evidence"
	"warden/internal/ledger"
	"warden/internal/logging"
	"warden/internal/queue"
	"warden/internal/review"
	"warden/internal/services"
	"warden/internal/verification"
)

// StatusProvider reports daemon facts for GET /api/status.
type StatusProvider interface {
	Status(ctx context.Context) Status
}

// DirectoryLookup is the read side of the identity directory.
type DirectoryLookup interface {
	directory.Directory
	Stats() (directory.Stats, error)
}

// Dependencies are the services the HTTP surface exposes. Status and
// Gatherer are optional.
type Dependencies struct {
	Coordinator *verification.Coordinator
	Queue       *queue.Queue
	Ledger      *ledger.Service
	Communities *community.Store
	Reviews     *review.Store
	Directory   DirectoryLookup
	Status      StatusProvider
	Gatherer    prometheus.Gatherer
}

// Options tune the router.
type Options struct {
	Token       string
	CORSOrigins []string
	Logger      *slog.Logger
	// MinIDDigits and MaxIDDigits bound directory lookups; zero disables
	// the length check.
	MinIDDigits int
	MaxIDDigits int
}

type handler struct {
	deps   Dependencies
	logger *slog.Logger
	minID  int
	maxID  int
}

// NewHandler builds the chi router. /healthz and /metrics are public;
// everything under /api requires the bearer token when one is configured.
func NewHandler(deps Dependencies, opts Options) (http.Handler, error) {
	var missing []string
	if deps.Coordinator == nil {
		missing = append(missing, "coordinator")
	}
	if deps.Queue == nil {
		missing = append(missing, "queue")
	}
	if deps.Ledger == nil {
		missing = append(missing, "ledger")
	}
	if deps.Communities == nil {
		missing = append(missing, "communities")
	}
	if deps.Reviews == nil {
		missing = append(missing, "reviews")
	}
	if deps.Directory == nil {
		missing = append(missing, "directory")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("api: missing dependencies: %s", strings.Join(missing, ", "))
	}

	h := &handler{
		deps:   deps,
		logger: logging.NewComponentLogger(opts.Logger, "api"),
		minID:  opts.MinIDDigits,
		maxID:  opts.MaxIDDigits,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestContext)
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))
	}

	r.Get("/healthz", h.handleHealth)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(requireToken(opts.Token))
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/status", h.handleStatus)
		r.Get("/queue", h.handleQueue)
		r.Post("/submissions", h.handleSubmit)

		r.Get("/ledger/{community}/locked", h.handleLocked)
		r.Get("/ledger/{community}/{user}", h.handleLedger)
		r.Post("/ledger/{community}/{user}/unlock", h.handleUnlock)

		r.Post("/members/{community}/{user}/join", h.handleJoin)
		r.Post("/members/{community}/{user}/leave", h.handleLeave)

		r.Get("/communities", h.handleCommunities)
		r.Get("/communities/{community}", h.handleCommunity)
		r.Put("/communities/{community}", h.handleUpdateCommunity)

		r.Get("/reviews", h.handleReviews)
		r.Post("/reviews/{id}/resolve", h.handleResolve)

		r.Get("/directory/{id}", h.handleDirectoryLookup)
	})
	return r, nil
}

// requestContext copies the chi request id into the service context and
// logs each request at debug level.
func (h *handler) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, h.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

func memberParam(r *http.Request) evidence.Member {
	return evidence.Member{
		CommunityID: strings.TrimSpace(chi.URLParam(r, "community")),
		UserID:      strings.TrimSpace(chi.URLParam(r, "user")),
	}
}

// decodeJSON reads an optional body; an empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps error markers onto status codes.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	kind := string(services.Classify(err))
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrLocked):
		status, kind = http.StatusLocked, "locked"
	case errors.Is(err, review.ErrAlreadyResolved):
		status, kind = http.StatusConflict, "already_resolved"
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusPreconditionFailed
	case errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrTimeout):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), h.logger), "api request failed", "api_error",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func notFound(what string) error {
	return services.Wrap(services.ErrNotFound, "api", "", what+" not found", nil)
}
