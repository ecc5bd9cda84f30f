// Package api exposes the published pool list, audit records, session
// selection and notification state over HTTP and websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stormdex/internal/enrich"
	"stormdex/internal/listing"
	"stormdex/internal/model"
	"stormdex/internal/notify"
	"stormdex/internal/session"
)

const (
	SessionCookie = "stormdex_session"
	maxBodyBytes  = 1 << 16
)

type PoolSource interface {
	Snapshot() (listing.Snapshot, bool)
}

type AuditSource interface {
	Audits() map[string]model.AuditRecord
	Status() enrich.Status
}

type Curiosity interface {
	Activate(ctx context.Context, sessionID string, pools []model.PoolRecord) (session.Selection, bool, error)
	Clear(ctx context.Context, sessionID string) error
}

type Notifications interface {
	State() notify.State
	SubmitDeposit(ctx context.Context, amount string) (notify.State, error)
}

type MarketData interface {
	OHLCV(ctx context.Context, poolAddress, timeframe string) ([]model.Candle, error)
	SearchPools(ctx context.Context, query string) ([]model.TokenMetadata, error)
}

// Deps are the collaborators the server reads from.
type Deps struct {
	Pools     PoolSource
	Audits    AuditSource
	Curiosity Curiosity
	Notifier  Notifications
	Market    MarketData
	Hub       *Hub
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

// Server represents the HTTP server with all routes configured.
type Server struct {
	deps   Deps
	logger *zap.Logger
	mux    *http.ServeMux
	server *http.Server
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(nil, deps.Logger)
	}
	mux := http.NewServeMux()
	s := &Server{
		deps:   deps,
		logger: deps.Logger,
		mux:    mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/pools", s.handlePools)
	s.mux.HandleFunc("GET /api/pools/{address}/ohlcv", s.handleOHLCV)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/audits", s.handleAudits)
	s.mux.HandleFunc("GET /api/enrichment", s.handleEnrichment)
	s.mux.HandleFunc("GET /api/notification", s.handleNotification)
	s.mux.HandleFunc("POST /api/deposit", s.handleDeposit)
	s.mux.HandleFunc("GET /api/curiosity", s.handleCuriosity)
	s.mux.HandleFunc("DELETE /api/curiosity", s.handleCuriosityClear)
	s.mux.HandleFunc("GET /ws", s.deps.Hub.Handler(s.initialEvents))
	if s.deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Hub.Close()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) snapshot() listing.Snapshot {
	if s.deps.Pools != nil {
		if snap, ok := s.deps.Pools.Snapshot(); ok {
			return snap
		}
	}
	return listing.Snapshot{Pools: []model.PoolRecord{}}
}

func (s *Server) audits() map[string]model.AuditRecord {
	if s.deps.Audits == nil {
		return map[string]model.AuditRecord{}
	}
	return s.deps.Audits.Audits()
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.audits())
}

func (s *Server) handleEnrichment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audits == nil {
		s.writeError(w, http.StatusServiceUnavailable, "enrichment not running")
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Audits.Status())
}

func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifier == nil {
		s.writeJSON(w, http.StatusOK, notify.State{Kind: notify.KindIdle})
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Notifier.State())
}

type depositRequest struct {
	Amount string `json:"amount"`
}

// handleDeposit accepts the deposit and settles it in the background; progress
// is visible through /api/notification and the websocket feed.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifier == nil {
		s.writeError(w, http.StatusServiceUnavailable, "deposits disabled")
		return
	}
	var req depositRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := s.deps.Notifier.SubmitDeposit(ctx, req.Amount); err != nil {
			s.logger.Debug("deposit settled with error", zap.Error(err))
		}
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

type candlesResponse struct {
	Candles []model.Candle `json:"candles"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	if s.deps.Market == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, candlesResponse{Candles: []model.Candle{}, Error: "market data disabled"})
		return
	}
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "minute"
	}
	candles, err := s.deps.Market.OHLCV(r.Context(), r.PathValue("address"), timeframe)
	if err != nil {
		s.logger.Warn("ohlcv fetch failed", zap.String("pool", r.PathValue("address")), zap.Error(err))
		s.writeJSON(w, http.StatusBadGateway, candlesResponse{Candles: []model.Candle{}, Error: "failed to load chart data"})
		return
	}
	if candles == nil {
		candles = []model.Candle{}
	}
	s.writeJSON(w, http.StatusOK, candlesResponse{Candles: candles})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Market == nil {
		s.writeError(w, http.StatusServiceUnavailable, "search disabled")
		return
	}
	tokens, err := s.deps.Market.SearchPools(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.logger.Warn("search failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	if tokens == nil {
		tokens = []model.TokenMetadata{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

type curiosityResponse struct {
	Found     bool               `json:"found"`
	Selection *session.Selection `json:"selection,omitempty"`
}

func (s *Server) handleCuriosity(w http.ResponseWriter, r *http.Request) {
	if s.deps.Curiosity == nil {
		s.writeError(w, http.StatusServiceUnavailable, "curiosity disabled")
		return
	}
	id := s.sessionID(w, r)
	sel, ok, err := s.deps.Curiosity.Activate(r.Context(), id, s.snapshot().Pools)
	if err != nil {
		s.logger.Warn("curiosity activation failed", zap.String("session", id), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to load trades")
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusOK, curiosityResponse{})
		return
	}
	s.writeJSON(w, http.StatusOK, curiosityResponse{Found: true, Selection: &sel})
}

func (s *Server) handleCuriosityClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Curiosity == nil {
		s.writeError(w, http.StatusServiceUnavailable, "curiosity disabled")
		return
	}
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.deps.Curiosity.Clear(r.Context(), cookie.Value); err != nil {
		s.logger.Warn("curiosity clear failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionID reads the session cookie, issuing a new one when absent or malformed.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) initialEvents() []Event {
	events := []Event{
		{Type: "pools", Data: s.snapshot()},
		{Type: "audits", Data: s.audits()},
	}
	if s.deps.Notifier != nil {
		events = append(events, Event{Type: "notification", Data: s.deps.Notifier.State()})
	}
	return events
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
