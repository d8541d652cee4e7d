// Package admin exposes the logger's optional HTTP control surface:
// liveness/readiness probes, a Prometheus scrape endpoint, and an
// on-demand extract operation, gated by a bearer token when one is
// configured. Grounded on internal/api/handlers.go's Handler/
// RegisterRoutes(*mux.Router) split and its per-route metrics recording,
// with internal/api/auth.go's AWS-specific Signature V4 validation
// dropped in favor of the single shared-secret bearer check
// config.AdminConfig actually describes (see DESIGN.md).
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/pinenut/internal/config"
	"github.com/kenneth/pinenut/internal/extract"
	"github.com/kenneth/pinenut/internal/logger"
	"github.com/kenneth/pinenut/internal/middleware"
	"github.com/kenneth/pinenut/internal/telemetry"
)

// Handler serves the admin HTTP surface for a single domain.
type Handler struct {
	cfg     config.AdminConfig
	domain  logger.Domain
	log     *logrus.Logger
	metrics *telemetry.Metrics
	tracker *telemetry.Tracker
}

// NewHandler constructs a Handler. log and metrics may be nil, in which
// case a standard logrus logger is used and metrics are skipped.
func NewHandler(cfg config.AdminConfig, domain logger.Domain, log *logrus.Logger, metrics *telemetry.Metrics, tracker *telemetry.Tracker) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{cfg: cfg, domain: domain, log: log, metrics: metrics, tracker: tracker}
}

// RegisterRoutes wires every admin route onto r, under the teacher's
// recovery/logging middleware pair so a panic in a handler (or the
// extract call it drives) never takes the whole admin listener down.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(middleware.RecoveryMiddleware(h.log))
	r.Use(middleware.LoggingMiddleware(h.log))

	r.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.handleReadyz).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}

	extractRouter := r.PathPrefix("/extract").Subrouter()
	extractRouter.Use(h.requireBearerToken)
	extractRouter.HandleFunc("", h.handleExtract).Methods(http.MethodPost)
}

// requireBearerToken rejects requests missing "Authorization: Bearer
// <token>" when cfg.BearerToken is set; an empty BearerToken disables
// the check (the admin surface is then assumed to sit behind another
// access control layer, e.g. a private network).
func (h *Handler) requireBearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.BearerToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.cfg.BearerToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	if h.tracker != nil && len(h.tracker.Events()) > 0 {
		// Recent write-path errors don't fail readiness on their own
		// (the logger reports them to its Tracker and keeps accepting
		// records), but are surfaced so a dashboard doesn't have to
		// scrape logs separately.
		status = "degraded"
	}
	writeJSON(w, code, map[string]string{"status": status})
}

// extractRequest is the POST /extract body: an RFC3339 time range and a
// destination path the caller (trusted, since this endpoint is
// bearer-gated) wants the overlapping chunks copied to.
type extractRequest struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Destination string    `json:"destination"`
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Destination == "" {
		http.Error(w, "destination is required", http.StatusBadRequest)
		return
	}

	err := extract.Extract(r.Context(), h.domain, extract.Range{Start: req.Start, End: req.End}, req.Destination)
	if h.metrics != nil {
		h.metrics.ObserveExtract(h.domain.Identifier, time.Since(start))
	}
	if err != nil {
		h.log.WithError(err).WithField("domain", h.domain.Identifier).Error("admin: extract failed")
		status := http.StatusInternalServerError
		if err == extract.ErrNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"destination": req.Destination})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve starts an HTTP server bound to cfg.ListenAddr with every route
// registered, blocking until ctx is cancelled, then shutting down
// gracefully.
func Serve(ctx context.Context, cfg config.AdminConfig, domain logger.Domain, log *logrus.Logger, metrics *telemetry.Metrics, tracker *telemetry.Tracker) error {
	h := NewHandler(cfg, domain, log, metrics, tracker)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
