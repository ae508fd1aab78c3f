package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"northstar/internal/gamedata"
	"northstar/internal/kvstore"
	"northstar/internal/players"
	"northstar/internal/teams"
)

var ErrTeamNotFound = errors.New("team not found")

// Queries reads team records straight from a store. It never writes.
type Queries struct {
	Store  kvstore.PointStore
	Budget int
}

func NewQueries(store kvstore.PointStore, budget int) *Queries {
	return &Queries{Store: store, Budget: budget}
}

func (q *Queries) records(ctx context.Context) (map[string]teams.Record, error) {
	v, err := q.Store.Get(ctx, teams.Root)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	all, _ := v.(map[string]any)
	out := make(map[string]teams.Record, len(all))
	for id, raw := range all {
		rec, err := teams.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding team %s: %w", id, err)
		}
		out[id] = rec
	}
	return out, nil
}

func (q *Queries) summarize(id string, rec teams.Record) TeamSummary {
	s := TeamSummary{
		ID:            id,
		Name:          rec.Meta.TeamName,
		CreatedAt:     time.UnixMilli(rec.Meta.CreatedAt).UTC(),
		Players:       len(rec.Players),
		CurrentStage:  rec.Meta.CurrentStage,
		UnlockedStage: rec.Meta.UnlockedStage,
		Score:         rec.Meta.Score,
		Locked:        rec.Meta.Locked,
		Paused:        rec.Meta.Paused,
		Submitted:     rec.Stage4.Result != nil,
	}
	for _, r := range players.Roster(rec.Players).MissingRoles() {
		s.MissingRoles = append(s.MissingRoles, string(r))
	}
	s.Badges = append(EvaluateStageBadges(rec), EvaluateTeamBadges(rec, q.Budget)...)
	return s
}

// ListTeams summarizes every team, newest first.
func (q *Queries) ListTeams(ctx context.Context) ([]TeamSummary, error) {
	recs, err := q.records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TeamSummary, 0, len(recs))
	for id, rec := range recs {
		out = append(out, q.summarize(id, rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *Queries) GetTeam(ctx context.Context, id string) (*TeamSummary, error) {
	v, err := q.Store.Get(ctx, teams.Path(id))
	if err != nil {
		return nil, fmt.Errorf("getting team: %w", err)
	}
	if v == nil {
		return nil, ErrTeamNotFound
	}
	rec, err := teams.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("decoding team %s: %w", id, err)
	}
	s := q.summarize(id, rec)
	return &s, nil
}

// GetLeaderboard ranks teams by score, then by stages completed. Teams
// with equal score and progress share a rank.
func (q *Queries) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	recs, err := q.records(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(recs))
	for id, rec := range recs {
		done := 0
		for stage := 1; stage <= gamedata.NumStages; stage++ {
			if _, ok := rec.Badges[gamedata.StageKey(stage)]; ok {
				done++
			}
		}
		entries = append(entries, LeaderboardEntry{
			TeamID:     id,
			TeamName:   rec.Meta.TeamName,
			Score:      rec.Meta.Score,
			StagesDone: done,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.StagesDone != b.StagesDone {
			return a.StagesDone > b.StagesDone
		}
		return a.TeamID < b.TeamID
	})
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score && entries[i].StagesDone == entries[i-1].StagesDone {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
