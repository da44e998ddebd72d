package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"priceloupe/internal/config"
	"priceloupe/internal/observability"
	"priceloupe/internal/storage"
	"priceloupe/internal/types"
)

// PriceEstimator is the estimation engine the API delegates to.
type PriceEstimator interface {
	Estimate(ctx context.Context, name string) *types.EstimationResult
}

// Server exposes the estimation engine over HTTP.
type Server struct {
	mux     *http.ServeMux
	cfg     *config.Config
	logger  *slog.Logger
	httpSrv *http.Server

	estimator PriceEstimator
	metrics   *observability.Metrics
	history   storage.Storage
}

// NewServer creates an API server around an estimator.
func NewServer(cfg *config.Config, estimator PriceEstimator, metrics *observability.Metrics, history storage.Storage, logger *slog.Logger) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		cfg:       cfg,
		logger:    logger.With("component", "api_server"),
		estimator: estimator,
		metrics:   metrics,
		history:   history,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/estimate", s.handleEstimate)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	if s.cfg.Metrics.Enabled && s.metrics != nil {
		s.mux.Handle("GET "+s.cfg.Metrics.Path, s.metrics)
	}
}

// Handler returns the full middleware chain around the route mux.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return s.logRequests(c.Handler(s.mux))
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("API server shutting down")
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		ProductName string `json:"product_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	// product_name is accepted as a legacy alias; name wins when both are set.
	name := body.Name
	if strings.TrimSpace(name) == "" {
		name = body.ProductName
	}
	if strings.TrimSpace(name) == "" {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "missing 'name'"})
		return
	}

	result := s.estimator.Estimate(r.Context(), name)

	if s.history != nil {
		rec := &storage.Record{Name: name, Result: result, CreatedAt: time.Now().UTC()}
		if err := s.history.Store(rec); err != nil {
			s.metrics.StoreErrors.Add(1)
			s.logger.Warn("history store failed", "backend", s.history.Name(), "error", err)
		} else {
			s.metrics.ResultsStored.Add(1)
		}
	}

	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":                    "ok",
		"version":                   config.Version,
		"engine":                    "multi-source price estimation",
		"max_requests":              s.cfg.Engine.MaxTotalRequests,
		"follow_details_per_source": s.cfg.Engine.MaxDetailPages,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"sources": map[string]any{
			"ebay_hosts":         s.cfg.Sources.EbayHosts,
			"serpapi_configured": s.cfg.Sources.SerpAPIKey != "",
		},
	}
	if s.metrics != nil {
		payload["counters"] = s.metrics.Snapshot()
	}
	s.jsonResponse(w, http.StatusOK, payload)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
		s.logger.Info("request handled",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
