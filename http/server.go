package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"agriquant/db"
	"agriquant/market"
	"agriquant/ml"
	"agriquant/monitoring"
)

const serviceVersion = "2.0.0"

// Config carries transport settings and the feature flags that shape
// the API surface.
type Config struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string

	AuthRequired    bool
	InsightsEnabled bool
	HistoryEnabled  bool
	TokenSecret     string
	TokenTTL        time.Duration
}

// DefaultConfig returns the full-featured service configuration.
func DefaultConfig() Config {
	return Config{
		Port:            8000,
		Timeout:         30 * time.Second,
		AllowedOrigins:  []string{"*"},
		AuthRequired:    false,
		InsightsEnabled: true,
		HistoryEnabled:  true,
		TokenSecret:     "change-me",
		TokenTTL:        30 * time.Minute,
	}
}

// Server holds every dependency the handlers need.
type Server struct {
	cfg      Config
	store    *db.Store
	tokens   *TokenIssuer
	insights *market.Engine
	alerts   *monitoring.AlertEvaluator
	hub      *monitoring.Hub
	log      *zap.Logger

	mu        sync.RWMutex
	estimator ml.PriceEstimator
	report    *ml.TrainingReport

	server *http.Server
}

// NewServer wires the handlers. estimator may be nil when no trained
// model is available yet, predictions then answer 503.
func NewServer(cfg Config, store *db.Store, estimator ml.PriceEstimator, insights *market.Engine, hub *monitoring.Hub, log *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		tokens:    NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL),
		insights:  insights,
		hub:       hub,
		log:       log,
		estimator: estimator,
	}
	if store != nil {
		s.alerts = monitoring.NewAlertEvaluator(store, hub, log)
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /{$}", s.handleRoot)
	api.HandleFunc("GET /health", s.handleHealth)
	api.HandleFunc("GET /crops/available", s.handleAvailableCrops)
	api.HandleFunc("POST /register", s.handleRegister)
	api.HandleFunc("POST /token", s.handleToken)
	api.HandleFunc("POST /predict", s.authenticate(s.handlePredict))
	api.HandleFunc("POST /predict/batch", s.authenticate(s.handlePredictBatch))

	if cfg.InsightsEnabled {
		api.HandleFunc("GET /insights/market", s.handleMarketInsights)
	}
	if cfg.HistoryEnabled {
		api.HandleFunc("GET /predictions/history", s.requireAuth(s.handlePredictionHistory))
	}
	api.HandleFunc("POST /alerts", s.requireAuth(s.handleCreateAlert))
	api.HandleFunc("GET /alerts", s.requireAuth(s.handleListAlerts))
	api.HandleFunc("GET /analytics/dashboard", s.requireAuth(s.handleDashboard))

	chain := Chain(
		RecoveryMiddleware(log),
		LoggerMiddleware(log),
		SecurityHeadersMiddleware,
		CORSMiddleware(cfg.AllowedOrigins),
		TimeoutMiddleware(cfg.Timeout),
	)

	// Websocket upgrades bypass the timeout chain.
	root := http.NewServeMux()
	if hub != nil {
		root.HandleFunc("GET /ws/alerts", hub.HandleWebSocket)
	}
	root.Handle("/", chain(api))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the routing tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains connections and shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.log.Info("shutting down http server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// SwapEstimator replaces the serving model. Safe to call while
// requests are in flight.
func (s *Server) SwapEstimator(est ml.PriceEstimator) {
	s.mu.Lock()
	s.estimator = est
	s.mu.Unlock()
	s.log.Info("serving model swapped", zap.String("model_type", est.Type()))
}

// SetTrainingReport attaches the training report served on /health.
func (s *Server) SetTrainingReport(report *ml.TrainingReport) {
	s.mu.Lock()
	s.report = report
	s.mu.Unlock()
}

func (s *Server) currentEstimator() ml.PriceEstimator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimator
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func contextWithUser(ctx context.Context, user *db.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func userFrom(ctx context.Context) *db.User {
	user, _ := ctx.Value(UserKey).(*db.User)
	return user
}
