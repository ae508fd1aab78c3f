// Package assessment runs stage 4: players judge each selected criterion
// against trial data regenerated from the team's shared seed, then submit
// once for grading.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"northstar/internal/consensus"
	"northstar/internal/gamedata"
	"northstar/internal/gamestate"
	"northstar/internal/grading"
	"northstar/internal/kvstore"
	"northstar/internal/teams"
	"northstar/internal/trialdata"
)

var (
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	ErrInvalidVerdict   = errors.New("invalid verdict")
	ErrNotSelected      = errors.New("criterion was not selected in stage 1")
	ErrNotRegistered    = errors.New("player is not on this team")
)

type Assessment struct {
	gs *gamestate.Store
}

func New(gs *gamestate.Store) *Assessment {
	return &Assessment{gs: gs}
}

func (a *Assessment) stage() string {
	return teams.StagePath(a.gs.TeamID(), 4)
}

// EnsureSeed returns the team's trial seed, storing it on first use. Every
// player derives the same value, so concurrent first writes agree.
func (a *Assessment) EnsureSeed(ctx context.Context) (uint32, error) {
	rec := a.gs.Record()
	if rec.Stage4.Seed != nil {
		return *rec.Stage4.Seed, nil
	}
	seed := trialdata.TrialSeed(rec.Meta.CreatedAt, a.gs.TeamID())
	if err := a.gs.Set(ctx, kvstore.Join(a.stage(), "seed"), seed); err != nil {
		return 0, err
	}
	return seed, nil
}

// Criteria lists what the team confirmed in stage 1.
func (a *Assessment) Criteria() []string {
	return consensus.SelectedCriteria(a.gs.Record())
}

// Dataset regenerates the team's trial data.
func (a *Assessment) Dataset(ctx context.Context) (trialdata.Dataset, error) {
	seed, err := a.EnsureSeed(ctx)
	if err != nil {
		return trialdata.Dataset{}, err
	}
	rec := a.gs.Record()
	return trialdata.Generate(trialdata.InputFromRecord(rec, consensus.SelectedCriteria(rec), seed)), nil
}

// Judge records the team's verdict on one criterion.
func (a *Assessment) Judge(ctx context.Context, criterion string, v gamedata.Verdict) error {
	if !v.Judgeable() {
		return fmt.Errorf("%w: %q", ErrInvalidVerdict, v)
	}
	rec := a.gs.Record()
	if rec.Stage4.Result != nil {
		return ErrAlreadySubmitted
	}
	if !contains(consensus.SelectedCriteria(rec), criterion) {
		return fmt.Errorf("%w: %s", ErrNotSelected, criterion)
	}
	return a.gs.Set(ctx, kvstore.Join(a.stage(), "judgments", criterion), v)
}

// Agree sets whether playerID stands behind the current judgments.
func (a *Assessment) Agree(ctx context.Context, playerID string, agree bool) error {
	rec := a.gs.Record()
	if _, ok := rec.Players[playerID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, playerID)
	}
	if rec.Stage4.Result != nil {
		return ErrAlreadySubmitted
	}
	return a.gs.Set(ctx, kvstore.Join(a.stage(), "agreements", playerID), agree)
}

// AllAgreed reports whether every registered player has agreed.
func AllAgreed(rec teams.Record) bool {
	if len(rec.Players) == 0 {
		return false
	}
	for pid := range rec.Players {
		if !rec.Stage4.Agreements[pid] {
			return false
		}
	}
	return true
}

// Submit grades the judgments and stores the result, the team score and
// the stage badge in one write.
func (a *Assessment) Submit(ctx context.Context) (teams.Result, error) {
	if a.gs.Record().Stage4.Result != nil {
		return teams.Result{}, ErrAlreadySubmitted
	}
	ds, err := a.Dataset(ctx)
	if err != nil {
		return teams.Result{}, err
	}
	rec := a.gs.Record()
	res := grading.Grade(consensus.SelectedCriteria(rec), rec.Stage4.Judgments, ds, a.gs.Config().MinSamples)
	now := a.gs.Now().UnixMilli()
	res.SubmittedBy = a.gs.Session().PlayerID
	res.SubmittedAt = now

	id := a.gs.TeamID()
	err = a.gs.Apply(ctx, "submit assessment", map[string]any{
		kvstore.Join(a.stage(), "result"):                        res,
		kvstore.Join(teams.MetaPath(id), "score"):                res.Score,
		kvstore.Join(teams.BadgesPath(id), gamedata.StageKey(4)): now,
	})
	if err != nil {
		return teams.Result{}, err
	}
	log.Printf("[GameState] Team %s submitted assessment: score %d\n", id, res.Score)
	return res, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
