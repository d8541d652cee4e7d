package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/kenneth/pinenut/internal/config"
	"github.com/kenneth/pinenut/internal/logger"
	"github.com/kenneth/pinenut/internal/telemetry"
)

func newTestRouter(t *testing.T, cfg config.AdminConfig, tracker *telemetry.Tracker) *mux.Router {
	t.Helper()
	log, _ := test.NewNullLogger()
	domain := logger.Domain{Identifier: "checkout", Directory: t.TempDir()}
	h := NewHandler(cfg, domain, log, nil, tracker)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHandleHealthz(t *testing.T) {
	r := newTestRouter(t, config.AdminConfig{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "alive", body["status"])
}

func TestHandleReadyzDegradedAfterTrackedError(t *testing.T) {
	log, _ := test.NewNullLogger()
	tracker := telemetry.NewTracker("checkout", log, nil, 10)
	r := newTestRouter(t, config.AdminConfig{}, tracker)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ready", body["status"])

	tracker.Track(errBoom, "io_worker.go", 1)

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "degraded", body["status"])
}

func TestExtractRequiresBearerToken(t *testing.T) {
	r := newTestRouter(t, config.AdminConfig{BearerToken: "s3cr3t"}, nil)

	body, _ := json.Marshal(extractRequest{Start: time.Now(), End: time.Now(), Destination: "/tmp/out.pine"})
	req := httptest.NewRequest(http.MethodPost, "/extract", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/extract", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer s3cr3t")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	// No logfiles exist in the temp domain directory, so the request
	// authenticates but the extract itself finds nothing to copy.
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtractWithoutBearerTokenConfiguredAllowsAnyRequest(t *testing.T) {
	r := newTestRouter(t, config.AdminConfig{}, nil)

	body, _ := json.Marshal(extractRequest{Destination: ""})
	req := httptest.NewRequest(http.MethodPost, "/extract", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpointServedWhenConfigured(t *testing.T) {
	log, _ := test.NewNullLogger()
	m := telemetry.New(prometheus.NewRegistry())
	domain := logger.Domain{Identifier: "checkout", Directory: t.TempDir()}
	h := NewHandler(config.AdminConfig{}, domain, log, m, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

var errBoom = boomErr{}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }
