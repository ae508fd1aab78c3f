package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"

	"northstar/internal/analytics"
	"northstar/internal/events"
	"northstar/internal/gamestate"
	"northstar/internal/kvstore"
)

const defaultLeaderboardLimit = 10

// statusFor maps store and lookup errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gamestate.ErrNotFound), errors.Is(err, analytics.ErrTeamNotFound):
		return http.StatusNotFound
	case errors.Is(err, kvstore.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, kvstore.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.Queries.ListTeams(r.Context())
	if err != nil {
		log.Printf("[Admin] list teams error: %v\n", err)
		writeError(w, statusFor(err), err)
		return
	}
	if summaries == nil {
		summaries = []analytics.TeamSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Queries.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	entries, err := s.Queries.GetLeaderboard(r.Context(), limit)
	if err != nil {
		log.Printf("[Admin] leaderboard error: %v\n", err)
		writeError(w, statusFor(err), err)
		return
	}
	if entries == nil {
		entries = []analytics.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	badges := make([]analytics.Badge, 0, len(analytics.AllBadges))
	for _, b := range analytics.AllBadges {
		badges = append(badges, b)
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].ID < badges[j].ID })
	writeJSON(w, http.StatusOK, badges)
}

func (s *Server) handleResetTeam(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := gamestate.ResetTeam(r.Context(), s.Store, id); err != nil {
		log.Printf("[Admin] reset %s error: %v\n", id, err)
		writeError(w, statusFor(err), err)
		return
	}
	log.Printf("[Admin] Team %s reset\n", id)
	s.Bus.Publish(events.Notice{Kind: events.TeamReset, TeamID: id, Message: "team reset by an administrator"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "teamId": id})
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := gamestate.DeleteTeam(r.Context(), s.Store, id); err != nil {
		log.Printf("[Admin] delete %s error: %v\n", id, err)
		writeError(w, statusFor(err), err)
		return
	}
	log.Printf("[Admin] Team %s deleted\n", id)
	s.Bus.Publish(events.Notice{Kind: events.TeamDeleted, TeamID: id, Message: "team deleted by an administrator"})
	w.WriteHeader(http.StatusNoContent)
}
