package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/logging"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the body of every failed HTTP request
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string        `json:"status"`
	Book   OrderBookInfo `json:"book"`
}

// HTTPServer serves the read-only query API and the notification websocket
type HTTPServer struct {
	dispatcher *Dispatcher
	manager    *OrderBookManager
	hub        *Hub
	limiter    *RateLimiter
	router     *mux.Router
	origins    []string
}

// NewHTTPServer creates the HTTP surface. hub and limiter may be nil; an
// empty origins list allows every origin.
func NewHTTPServer(dispatcher *Dispatcher, manager *OrderBookManager, hub *Hub, limiter *RateLimiter, origins []string) *HTTPServer {
	s := &HTTPServer{
		dispatcher: dispatcher,
		manager:    manager,
		hub:        hub,
		limiter:    limiter,
		router:     mux.NewRouter(),
		origins:    origins,
	}
	s.setupRoutes()
	return s
}

func (s *HTTPServer) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/orders", s.handleGetState).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS and rate limiting
func (s *HTTPServer) Handler() http.Handler {
	var handler http.Handler = s.router
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", logging.ActorHeader, logging.RequestIDHeader},
	})
	return c.Handler(handler)
}

func (s *HTTPServer) handleGetState(w http.ResponseWriter, r *http.Request) {
	caller, err := core.ParseActorID(actorFromRequest(r))
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	orders, err := s.dispatcher.State(r.Context(), caller)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read order book state")
		respondError(w, http.StatusInternalServerError, "failed to read order book")
		return
	}
	respondJSON(w, http.StatusOK, api.StateResponse{Orders: ordersToAPI(orders)})
}

func (s *HTTPServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := s.dispatcher.GetOrder(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrNonexistentOrder):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("order_id", id).Msg("Failed to read order")
		respondError(w, http.StatusInternalServerError, "failed to read order")
		return
	}
	respondJSON(w, http.StatusOK, orderToAPI(order))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.manager != nil {
		info, err := s.manager.Info(r.Context())
		if err != nil {
			resp.Status = "degraded"
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Book = info
	}
	respondJSON(w, http.StatusOK, resp)
}

// actorFromRequest reads the caller from the x-actor-id header or the actor
// query parameter
func actorFromRequest(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get(logging.ActorHeader)); actor != "" {
		return actor
	}
	return strings.TrimSpace(r.URL.Query().Get("actor"))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
