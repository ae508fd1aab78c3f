// Package checklist tracks the stage 2 task list. Every write lands on a
// leaf owned by one task or one player, and completion is only ever added.
package checklist

import (
	"context"
	"errors"
	"fmt"

	"northstar/internal/gamedata"
	"northstar/internal/gamestate"
	"northstar/internal/kvstore"
	"northstar/internal/teams"
)

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrNotRegistered = errors.New("player is not on this team")
	ErrNotAssigned   = errors.New("player is not assigned to this task")
	ErrCrewSize      = errors.New("wrong number of assignees for task")
	ErrBadReason     = errors.New("invalid penalty reason")
)

type Checklist struct {
	gs *gamestate.Store
}

func New(gs *gamestate.Store) *Checklist {
	return &Checklist{gs: gs}
}

func (c *Checklist) stage() string {
	return teams.StagePath(c.gs.TeamID(), 2)
}

// Assign sets the players responsible for task.
func (c *Checklist) Assign(ctx context.Context, taskID string, playerIDs []string) error {
	task, ok := gamedata.TaskByID(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if len(playerIDs) != task.Crew {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrCrewSize, taskID, task.Crew, len(playerIDs))
	}
	rec := c.gs.Record()
	assignees := make(map[string]any, len(playerIDs))
	for _, pid := range playerIDs {
		if _, ok := rec.Players[pid]; !ok {
			return fmt.Errorf("%w: %s", ErrNotRegistered, pid)
		}
		assignees[pid] = true
	}
	return c.gs.Set(ctx, kvstore.Join(c.stage(), "tasks", taskID, "assignees"), assignees)
}

// MarkDone records playerID's part of task. The task completes once every
// assignee is done; a single-player task nobody was assigned to completes
// for whoever marks it.
func (c *Checklist) MarkDone(ctx context.Context, taskID, playerID string) error {
	task, ok := gamedata.TaskByID(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	rec := c.gs.Record()
	if _, ok := rec.Players[playerID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, playerID)
	}
	if IsComplete(rec, taskID) {
		return nil
	}

	st := rec.Stage2.Tasks[taskID]
	if len(st.Assignees) == 0 && task.Crew > 1 {
		return fmt.Errorf("%w: %s has no assignees yet", ErrNotAssigned, taskID)
	}
	if len(st.Assignees) > 0 && !st.Assignees[playerID] {
		return fmt.Errorf("%w: %s", ErrNotAssigned, taskID)
	}

	base := kvstore.Join(c.stage(), "tasks", taskID)
	updates := map[string]any{kvstore.Join(base, "done", playerID): true}
	finished := true
	for pid := range st.Assignees {
		if pid != playerID && !st.Done[pid] {
			finished = false
		}
	}
	if finished {
		updates[kvstore.Join(c.stage(), "completed", taskID)] = c.gs.Now().UnixMilli()
		updates[kvstore.Join(c.stage(), "retryQueue", taskID)] = nil
	}
	return c.gs.Apply(ctx, "mark task done", updates)
}

// Penalize counts one more penalty for reason.
func (c *Checklist) Penalize(ctx context.Context, reason string) error {
	if err := kvstore.ValidKey(reason); err != nil {
		return fmt.Errorf("%w: %v", ErrBadReason, err)
	}
	n := c.gs.Record().Stage2.Penalties[reason]
	return c.gs.Set(ctx, kvstore.Join(c.stage(), "penalties", reason), n+1)
}

// QueueRetry puts an unfinished task back on the retry queue.
func (c *Checklist) QueueRetry(ctx context.Context, taskID string) error {
	if _, ok := gamedata.TaskByID(taskID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if IsComplete(c.gs.Record(), taskID) {
		return nil
	}
	return c.gs.Set(ctx, kvstore.Join(c.stage(), "retryQueue", taskID), true)
}

// IsComplete reports whether task has been recorded complete, or every one
// of its assignees has marked it done. The second case covers assignees
// finishing at the same moment, where neither saw the other's mark.
func IsComplete(rec teams.Record, taskID string) bool {
	if _, ok := rec.Stage2.Completed[taskID]; ok {
		return true
	}
	st := rec.Stage2.Tasks[taskID]
	if len(st.Assignees) == 0 {
		return false
	}
	for pid := range st.Assignees {
		if !st.Done[pid] {
			return false
		}
	}
	return true
}

// Progress counts completed tasks.
func Progress(rec teams.Record) (done, total int) {
	for _, t := range gamedata.Tasks {
		if IsComplete(rec, t.ID) {
			done++
		}
	}
	return done, len(gamedata.Tasks)
}

func AllDone(rec teams.Record) bool {
	done, total := Progress(rec)
	return done == total
}

// PenaltyTotal sums every penalty counter.
func PenaltyTotal(rec teams.Record) int {
	n := 0
	for _, v := range rec.Stage2.Penalties {
		n += v
	}
	return n
}
