// Package api serves the read-only HTTP surface: opportunity listings,
// health, Prometheus metrics, and the live WebSocket feed.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/store"
	"github.com/swapscan/backend/internal/stream"
)

// Server hosts the HTTP endpoints.
type Server struct {
	cfg   *config.Config
	store *store.Store
	hub   *stream.Hub
	http  *http.Server
}

// NewServer builds the router and the underlying http.Server.
func NewServer(cfg *config.Config, st *store.Store, hub *stream.Hub) *Server {
	s := &Server{cfg: cfg, store: st, hub: hub}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", hub.HandleWebSocket)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/opportunities", s.handleList).Methods(http.MethodGet)
	v1.HandleFunc("/opportunities/{txHash}", s.handleGet).Methods(http.MethodGet)
	v1.Use(newRateLimiter(240).middleware)

	r.Use(corsMiddleware)
	r.Use(loggingMiddleware)

	s.http = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error { return s.http.ListenAndServe() }

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = "error"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "swapscan-api",
		"database":  dbStatus,
		"wsClients": s.hub.ClientCount(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", store.StatusPending, store.StatusDetected, store.StatusExpired:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := s.store.ListOpportunities(r.Context(), s.cfg.ChainID, status, limit)
	if err != nil {
		slog.Error("list opportunities failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": rows,
		"count":         len(rows),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	txHash := mux.Vars(r)["txHash"]
	opp, err := s.store.GetOpportunity(r.Context(), s.cfg.ChainID, txHash)
	if err != nil {
		slog.Error("get opportunity failed", "txHash", txHash, "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if opp == nil {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	writeJSON(w, http.StatusOK, opp)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
