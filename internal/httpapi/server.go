// Package httpapi exposes the simulator over a JSON HTTP API: strategy
// definition management, backtests, and live run control.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/marketdata"
	"tradesim/internal/sim"
	"tradesim/internal/strategy"
)

// Defaults fills request fields the caller omitted.
type Defaults struct {
	Timeframe domain.Timeframe
	Balance   float64
}

// Server serves the simulator HTTP API.
type Server struct {
	backtester *sim.Backtester
	manager    *sim.Manager
	catalog    *strategy.Catalog
	defs       *strategy.DefinitionStore
	defaults   Defaults
	log        *slog.Logger
}

// NewServer creates a Server over the given components.
func NewServer(backtester *sim.Backtester, manager *sim.Manager, catalog *strategy.Catalog, defs *strategy.DefinitionStore, defaults Defaults, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		backtester: backtester,
		manager:    manager,
		catalog:    catalog,
		defs:       defs,
		defaults:   defaults,
		log:        log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/strategies", s.handleListStrategies)
	mux.HandleFunc("GET /api/strategies/{name}", s.handleGetStrategy)
	mux.HandleFunc("POST /api/strategies", s.handleAddStrategy)
	mux.HandleFunc("PUT /api/strategies/{name}", s.handleEditStrategy)
	mux.HandleFunc("DELETE /api/strategies/{name}", s.handleDeleteStrategy)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("POST /api/live/enable", s.handleEnable)
	mux.HandleFunc("POST /api/live/disable/{name}", s.handleDisable)
	mux.HandleFunc("GET /api/live/results", s.handleLiveResults)
	mux.HandleFunc("POST /api/live/stop", s.handleStopAll)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeDomainError maps known simulator errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *strategy.ValidationError
	switch {
	case errors.Is(err, marketdata.ErrNoData),
		errors.Is(err, strategy.ErrDefinitionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sim.ErrMultipleStrategies):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, domain.ErrInvalidTimeframe),
		errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseRunTime accepts a plain date or a full RFC 3339 timestamp.
func parseRunTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ---------------------------------------------------------------------------
// Strategy definitions
// ---------------------------------------------------------------------------

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	defs, err := s.defs.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if defs == nil {
		defs = []strategy.Definition{}
	}
	writeJSON(w, StrategiesResponse{
		Strategies:  s.catalog.List(),
		Definitions: defs,
	})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	def, err := s.defs.Get(r.PathValue("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, def)
}

func (s *Server) handleAddStrategy(w http.ResponseWriter, r *http.Request) {
	var req DefinitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	def, err := s.defs.Add(r.Context(), strategy.Definition{Name: req.Name, Kind: req.Kind, Params: req.Params})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, def)
}

func (s *Server) handleEditStrategy(w http.ResponseWriter, r *http.Request) {
	var req DefinitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	def, err := s.defs.Edit(r.Context(), strategy.Definition{Name: r.PathValue("name"), Kind: req.Kind, Params: req.Params})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, def)
}

func (s *Server) handleDeleteStrategy(w http.ResponseWriter, r *http.Request) {
	if err := s.defs.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Backtests
// ---------------------------------------------------------------------------

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Strategy == "" || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "strategy and symbol are required")
		return
	}

	tf := s.defaults.Timeframe
	if req.Timeframe != "" {
		var err error
		tf, err = domain.ParseTimeframe(req.Timeframe)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	start, err := parseRunTime(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+req.Start)
		return
	}
	end, err := parseRunTime(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end: "+req.End)
		return
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	balance := req.Balance
	if balance == 0 {
		balance = s.defaults.Balance
	}
	if balance <= 0 {
		writeError(w, http.StatusBadRequest, "balance must be positive")
		return
	}

	result, err := s.backtester.Run(r.Context(), req.Strategy, req.Symbol, tf, start, end, balance)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, result)
}

// ---------------------------------------------------------------------------
// Live control
// ---------------------------------------------------------------------------

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	var req EnableRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Strategy == "" || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "strategy and symbol are required")
		return
	}
	if req.Balance < 0 {
		writeError(w, http.StatusBadRequest, "balance must be positive")
		return
	}
	var tf domain.Timeframe
	if req.Timeframe != "" {
		var err error
		tf, err = domain.ParseTimeframe(req.Timeframe)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if err := s.manager.Enable(req.Strategy, req.Symbol, req.Balance, tf); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Disable(r.PathValue("name")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLiveResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, LiveResultsResponse{Results: s.manager.Results()})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.manager.StopAll()
	w.WriteHeader(http.StatusNoContent)
}
