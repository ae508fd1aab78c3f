// Package levels tracks which stage a player is viewing and which stages
// the team has unlocked, completed and is timing.
package levels

import (
	"context"
	"errors"
	"fmt"
	"time"

	"northstar/internal/checklist"
	"northstar/internal/consensus"
	"northstar/internal/events"
	"northstar/internal/gamedata"
	"northstar/internal/gamestate"
	"northstar/internal/kvstore"
	"northstar/internal/sampling"
	"northstar/internal/teams"
)

var (
	ErrInvalidStage    = errors.New("no such stage")
	ErrLocked          = errors.New("stage is not unlocked yet")
	ErrNotReady        = errors.New("stage is not finished")
	ErrInvalidDuration = errors.New("timer duration must be positive")
)

type Controller struct {
	gs *gamestate.Store
}

func New(gs *gamestate.Store) *Controller {
	return &Controller{gs: gs}
}

func validStage(n int) error {
	if n < 1 || n > gamedata.NumStages {
		return fmt.Errorf("%w: %d", ErrInvalidStage, n)
	}
	return nil
}

// CanView reports whether the player may open stage. Test mode opens
// every stage.
func (c *Controller) CanView(stage int) bool {
	if validStage(stage) != nil {
		return false
	}
	return c.gs.Session().TestMode || stage <= c.gs.Record().Meta.UnlockedStage
}

// View moves the player to stage and re-scopes their subscriptions.
func (c *Controller) View(ctx context.Context, stage int) error {
	if err := validStage(stage); err != nil {
		return err
	}
	if !c.CanView(stage) {
		return fmt.Errorf("%w: %d", ErrLocked, stage)
	}
	return c.gs.SubscribeScoped(ctx, stage)
}

// Ready reports whether the team has done what stage asks of it.
func Ready(rec teams.Record, stage int, budget int) bool {
	switch stage {
	case 1:
		return len(consensus.SelectedCriteria(rec)) > 0 && consensus.AllRolesConverged(rec)
	case 2:
		return checklist.AllDone(rec)
	case 3:
		return sampling.Total(rec.Stage3) > 0 && sampling.Total(rec.Stage3) <= budget
	case 4:
		return rec.Stage4.Result != nil
	}
	return false
}

func Completed(rec teams.Record, stage int) bool {
	_, ok := rec.Badges[gamedata.StageKey(stage)]
	return ok
}

// Complete awards the stage badge and unlocks the next stage in one
// write. Completing a stage twice is a no-op.
func (c *Controller) Complete(ctx context.Context, stage int) error {
	if err := validStage(stage); err != nil {
		return err
	}
	rec := c.gs.Record()
	if Completed(rec, stage) {
		return nil
	}
	if stage > rec.Meta.UnlockedStage && !c.gs.Session().TestMode {
		return fmt.Errorf("%w: %d", ErrLocked, stage)
	}
	if !Ready(rec, stage, c.gs.Config().SamplingBudget) {
		return fmt.Errorf("%w: %d", ErrNotReady, stage)
	}

	id := c.gs.TeamID()
	meta := teams.MetaPath(id)
	updates := map[string]any{
		kvstore.Join(teams.BadgesPath(id), gamedata.StageKey(stage)): c.gs.Now().UnixMilli(),
	}
	if next := stage + 1; next <= gamedata.NumStages {
		if next > rec.Meta.UnlockedStage {
			updates[kvstore.Join(meta, "unlockedStage")] = next
		}
		updates[kvstore.Join(meta, "currentStage")] = next
	}
	if t := rec.Meta.Timer; t != nil && t.TargetStage == stage {
		updates[kvstore.Join(meta, "timer")] = nil
	}
	if err := c.gs.Apply(ctx, fmt.Sprintf("complete stage %d", stage), updates); err != nil {
		return err
	}
	c.gs.Bus().Publish(events.Notice{
		Kind:    events.StageChanged,
		TeamID:  id,
		Message: fmt.Sprintf("Stage %d complete.", stage),
	})
	return nil
}

// StartTimer starts the team countdown for target. A non-positive minutes
// uses the configured duration for that stage.
func (c *Controller) StartTimer(ctx context.Context, minutes, target int) error {
	if err := validStage(target); err != nil {
		return err
	}
	if minutes <= 0 {
		minutes = c.gs.Config().StageMinutes[target]
	}
	if minutes <= 0 {
		return ErrInvalidDuration
	}
	return c.gs.UpdateMeta(ctx, kvstore.Object{
		"started":  true,
		"paused":   false,
		"pausedAt": nil,
		"timer": teams.Timer{
			StartedAt:       c.gs.Now().UnixMilli(),
			DurationMinutes: minutes,
			TargetStage:     target,
		},
	})
}

// Remaining is the time left on the team timer at now. A paused timer is
// frozen at the moment it was paused.
func Remaining(meta teams.Meta, now time.Time) (time.Duration, bool) {
	if meta.Timer == nil {
		return 0, false
	}
	if meta.Paused && meta.PausedAt > 0 {
		now = time.UnixMilli(meta.PausedAt)
	}
	left := meta.Timer.Deadline().Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}

// TimerExpired reports whether a running, unpaused timer has run out.
func TimerExpired(meta teams.Meta, now time.Time) bool {
	if meta.Timer == nil || meta.Paused {
		return false
	}
	return !now.Before(meta.Timer.Deadline())
}

func (c *Controller) TimerExpired() bool {
	return TimerExpired(c.gs.Record().Meta, c.gs.Now())
}

func (c *Controller) Pause(ctx context.Context) error {
	meta := c.gs.Record().Meta
	if meta.Paused {
		return nil
	}
	return c.gs.UpdateMeta(ctx, kvstore.Object{
		"paused":   true,
		"pausedAt": c.gs.Now().UnixMilli(),
	})
}

// Resume unpauses the team. A running timer is pushed back by the time
// spent paused.
func (c *Controller) Resume(ctx context.Context) error {
	meta := c.gs.Record().Meta
	if !meta.Paused {
		return nil
	}
	fields := kvstore.Object{"paused": false, "pausedAt": nil}
	if t := meta.Timer; t != nil && meta.PausedAt > 0 {
		shifted := *t
		shifted.StartedAt += c.gs.Now().UnixMilli() - meta.PausedAt
		fields["timer"] = shifted
	}
	return c.gs.UpdateMeta(ctx, fields)
}
