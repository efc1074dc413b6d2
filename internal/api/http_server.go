package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"receptionist/internal/config"
	"receptionist/internal/domain"
	"receptionist/internal/export"
	"receptionist/internal/metrics"
	"receptionist/internal/models"
	"receptionist/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader   = "X-Request-ID"
	maxWebhookBody    = 1 << 20
	webhookRateWindow = time.Minute
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Dependencies is everything the HTTP surface reads from or hands requests to.
type Dependencies struct {
	Receptionist *service.Receptionist
	Profiles     domain.BusinessProvider
	Repo         domain.Repository
	// Cache backs the per-business webhook rate limit; nil disables it.
	Cache            domain.ProfileCache
	WebhookRateLimit int
	// ExportDir keeps a copy of every generated workbook when set.
	ExportDir string
	// Failed lists dead notifications; nil leaves the route unregistered.
	Failed domain.FailedNotificationLister
}

// HTTPServer serves the voice webhook and the admin endpoints.
type HTTPServer struct {
	cfg    *config.APIConfig
	deps   Dependencies
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
	now    func() time.Time
}

func NewHTTPServer(cfg *config.APIConfig, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:  cfg,
		deps: deps,
		auth: NewHTTPAuth(*cfg),
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler is the full middleware chain; exposed for httptest.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /webhook/vapi", "webhook", s.handleWebhook)
	s.route(mux, "POST /webhook/vapi/test", "webhook_test", s.handleWebhookTest)
	s.route(mux, "GET /health", "health", s.handleHealth)
	s.route(mux, "GET /business/{id}/config", "business_config", s.handleBusinessConfig)
	s.route(mux, "GET /business/{id}/appointments", "appointments", s.handleAppointments)
	s.route(mux, "GET /business/{id}/appointments/export", "appointments_export", s.handleAppointmentsExport)
	s.route(mux, "GET /business/{id}/orders", "orders", s.handleOrders)
	s.route(mux, "GET /business/{id}/messages", "messages", s.handleMessages)
	if s.deps.Failed != nil {
		s.route(mux, "GET /business/{id}/notifications/failed", "failed_notifications", s.handleFailedNotifications)
	}

	return s.loggingMiddleware(s.auth.Wrap(mux))
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(endpoint)
		h(w, r)
	})
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var env service.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&env); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	businessID := env.ResolveBusinessID()
	if businessID != "" && !s.allowWebhook(r.Context(), businessID) {
		writeFailure(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := s.deps.Receptionist.Handle(r.Context(), &env)
	switch {
	case err == nil:
		logger.Info().
			Str("business_id", businessID).
			Str("intent", env.Intent).
			Bool("success", result.Success).
			Bool("after_hours", result.AfterHours).
			Msg("webhook handled")
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, service.ErrMissingBusinessID):
		writeFailure(w, http.StatusBadRequest, "No business_id provided")
	case errors.Is(err, service.ErrBusinessNotFound):
		writeFailure(w, http.StatusNotFound, "Config not found for "+businessID)
	default:
		logger.Error().Err(err).Str("business_id", businessID).Str("intent", env.Intent).Msg("webhook failed")
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}

// allowWebhook fails open when the counter store is unavailable.
func (s *HTTPServer) allowWebhook(ctx context.Context, businessID string) bool {
	if s.deps.Cache == nil || s.deps.WebhookRateLimit <= 0 {
		return true
	}
	ok, err := s.deps.Cache.CheckRateLimit(ctx, "webhook:"+businessID, s.deps.WebhookRateLimit, webhookRateWindow)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("business_id", businessID).Msg("webhook rate limit check failed")
		return true
	}
	return ok
}

func (s *HTTPServer) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&payload); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("test webhook body is not JSON")
	} else {
		zerolog.Ctx(r.Context()).Info().Interface("payload", payload).Msg("test webhook received")
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Received"})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]string{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
		"database":  "connected",
	}
	if err := s.deps.Repo.PingContext(ctx); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check: database unreachable")
		body["status"] = "unhealthy"
		body["database"] = "disconnected"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *HTTPServer) handleBusinessConfig(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.loadProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := s.deps.Repo.ListAppointments(r.Context(), r.PathValue("id"), models.DefaultListLimit)
	if err != nil {
		s.storeError(w, r, err, "list appointments")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(appts))
}

func (s *HTTPServer) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.Repo.ListOrders(r.Context(), r.PathValue("id"), models.DefaultListLimit)
	if err != nil {
		s.storeError(w, r, err, "list orders")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(orders))
}

func (s *HTTPServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.deps.Repo.ListMessages(r.Context(), r.PathValue("id"), models.DefaultListLimit)
	if err != nil {
		s.storeError(w, r, err, "list messages")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(msgs))
}

func (s *HTTPServer) handleFailedNotifications(w http.ResponseWriter, r *http.Request) {
	failed, err := s.deps.Failed.GetFailedNotifications(r.Context(), r.PathValue("id"), models.DefaultListLimit)
	if err != nil {
		s.storeError(w, r, err, "list failed notifications")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(failed))
}

func (s *HTTPServer) handleAppointmentsExport(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.loadProfile(w, r)
	if !ok {
		return
	}

	appts, err := s.deps.Repo.ListAppointments(r.Context(), profile.ID, models.DefaultListLimit)
	if err != nil {
		s.storeError(w, r, err, "export appointments")
		return
	}

	now := s.now()
	if s.deps.ExportDir != "" {
		path, err := export.SaveAppointments(s.deps.ExportDir, profile.ID, appts, now)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("save export copy")
		} else {
			zerolog.Ctx(r.Context()).Info().Str("path", path).Msg("export saved")
		}
	}

	var buf bytes.Buffer
	if err := export.WriteAppointments(&buf, profile.DisplayName()+" appointments", appts); err != nil {
		s.storeError(w, r, err, "build export")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(profile.ID, now)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) loadProfile(w http.ResponseWriter, r *http.Request) (*models.BusinessProfile, bool) {
	id := r.PathValue("id")
	profile, err := s.deps.Profiles.GetProfile(r.Context(), id)
	if err == nil && profile != nil {
		return profile, true
	}
	if err == nil || errors.Is(err, config.ErrProfileNotFound) || errors.Is(err, config.ErrInvalidProfileID) {
		writeError(w, http.StatusNotFound, "Config not found for "+id)
		return nil, false
	}
	s.storeError(w, r, err, "load profile")
	return nil, false
}

func (s *HTTPServer) storeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("business_id", r.PathValue("id")).Msg(op)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		reqLog := s.log.With().Str("request_id", requestID).Logger()
		r = r.WithContext(reqLog.WithContext(r.Context()))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		reqLog.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeFailure(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{"success": false, "error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
