package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"northstar/internal/analytics"
	"northstar/internal/broadcast"
	"northstar/internal/config"
	"northstar/internal/events"
	"northstar/internal/kvstore"
	"northstar/internal/metrics"
	"northstar/internal/wshub"
)

const pingTimeout = 2 * time.Second

type Server struct {
	Store       kvstore.Store
	Hub         *wshub.Hub
	Queries     *analytics.Queries
	Broadcaster *broadcast.Broadcaster
	Bus         *events.Bus
	Config      config.Config

	metrics  http.Handler
	stopConn func()
}

// pinger is implemented by stores backed by a database connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// New wires the relay, admin queries and notice fan-out around store.
// Backend connectivity changes are published on bus.
func New(store kvstore.Store, bus *events.Bus, cfg config.Config) *Server {
	s := &Server{
		Store:       store,
		Hub:         wshub.NewHub(store),
		Queries:     analytics.NewQueries(store, cfg.SamplingBudget),
		Broadcaster: broadcast.NewBroadcaster(bus),
		Bus:         bus,
		Config:      cfg,
		metrics:     metrics.Handler(),
	}
	s.stopConn = store.SubscribeConnectionState(func(up bool) {
		msg := "backend connection lost"
		if up {
			msg = "backend connected"
		}
		bus.Publish(events.Notice{Kind: events.Connection, Message: msg})
	})
	return s
}

func (s *Server) Close() {
	if s.stopConn != nil {
		s.stopConn()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println(err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "db_error",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.Hub.Count(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgChan := s.Broadcaster.Subscribe()
	defer s.Broadcaster.Unsubscribe(msgChan)

	for _, n := range s.Broadcaster.Recent() {
		writeEvent(w, n)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case n := <-msgChan:
			writeEvent(w, n)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, n events.Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Println(err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", n.Kind)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
