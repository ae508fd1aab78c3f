package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"northstar/internal/config"
	"northstar/internal/events"
	"northstar/internal/kvstore"
	"northstar/internal/kvstore/pgkv"
)

const shutdownTimeout = 5 * time.Second

func Run() error {
	appCfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, appCfg)
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[DB] Close error: %v\n", err)
		}
	}()

	bus := events.NewBus()
	srv := New(store, bus, appCfg)
	defer srv.Close()

	g, ctx := errgroup.WithContext(ctx)
	httpSrv := &http.Server{
		Addr:        "0.0.0.0:" + appCfg.Port,
		Handler:     srv.Routes(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		log.Printf("Server listening on http://localhost:%s\n", appCfg.Port)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Println("Server shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type closableStore interface {
	kvstore.Store
	Close() error
}

// openStore picks the backend the relay serves: Postgres when DATABASE_URL
// is set and reachable, the in-process tree otherwise.
func openStore(ctx context.Context, cfg config.Config) closableStore {
	if cfg.DatabaseURL == "" {
		log.Println("[DB] DATABASE_URL not set, serving the in-process store")
		return kvstore.NewTree()
	}
	pg, err := pgkv.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("[DB] Failed to connect: %v (serving the in-process store)\n", err)
		return kvstore.NewTree()
	}
	log.Println("[DB] Database connected and migrations applied")
	return pg
}

// Routes builds the mux for every endpoint the server exposes.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Hub)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics)
	mux.HandleFunc("GET /admin/teams", s.handleListTeams)
	mux.HandleFunc("GET /admin/teams/{id}", s.handleGetTeam)
	mux.HandleFunc("POST /admin/teams/{id}/reset", s.handleResetTeam)
	mux.HandleFunc("DELETE /admin/teams/{id}", s.handleDeleteTeam)
	mux.HandleFunc("GET /admin/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /admin/badges", s.handleBadges)
	mux.HandleFunc("GET /admin/events", s.handleEvents)
	return mux
}
