package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/crm"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxWebhookBody = 1 << 20

// ReplyForwarder relays staff notes from the CRM to parents.
type ReplyForwarder interface {
	ForwardStaffReply(ctx context.Context, crmLeadID int64, text string) (bool, error)
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the CRM webhook, health and Prometheus endpoints.
type HTTPServer struct {
	cfg     config.APIConfig
	replies ReplyForwarder
	health  HealthChecker
	auth    *WebhookAuth
	limiter *rateLimiter
	server  *http.Server
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, replies ReplyForwarder, health HealthChecker, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	srv := &HTTPServer{
		cfg:     cfg,
		replies: replies,
		health:  health,
		auth:    NewWebhookAuth(cfg.WebhookToken),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/webhooks/crm", srv.instrument("crm_webhook", http.HandlerFunc(srv.handleCRMWebhook)))
	mux.Handle("/healthz", srv.instrument("healthz", http.HandlerFunc(srv.handleHealth)))
	mux.Handle("/metrics", srv.instrument("metrics", promhttp.Handler()))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the routed handler, used by tests and embedding servers.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
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

// handleCRMWebhook receives note events from the CRM and forwards the ones
// marked as replies to the parent's chat. Failures are reported in the
// response body and never trigger a redelivery.
func (s *HTTPServer) handleCRMWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.limiter.Allow(r) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := s.auth.Verify(r, body); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, errWebhookDisabled) {
			status = http.StatusForbidden
		}
		writeError(w, status, err.Error())
		return
	}

	notes, err := crm.ParseNoteWebhook(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	logger := zerolog.Ctx(r.Context())
	forwarded, failed := 0, 0
	for _, note := range notes {
		ok, err := s.replies.ForwardStaffReply(r.Context(), note.LeadID, note.Text)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			logger.Warn().Int64("crm_lead_id", note.LeadID).Msg("Staff reply for unknown lead")
			failed++
		case err != nil:
			logger.Error().Err(err).Int64("crm_lead_id", note.LeadID).Msg("Failed to forward staff reply")
			failed++
		case ok:
			forwarded++
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"received":  len(notes),
		"forwarded": forwarded,
		"failed":    failed,
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(endpoint)
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.logger.With().Str("request_id", uuid.New().String()).Logger()
		r = r.WithContext(l.WithContext(r.Context()))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if rec := recover(); rec != nil {
				l.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Recovered from panic in HTTP handler")
				writeError(recorder, http.StatusInternalServerError, "internal error")
			}
			l.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("dur", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(recorder, r)
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

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
