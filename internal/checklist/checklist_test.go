package checklist

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"northstar/internal/gamedata"
	"northstar/internal/gamestate"
	"northstar/internal/kvstore"
	"northstar/internal/session"
)

// crew creates a team of n players sharing one backend and returns each
// player's store, all scoped to stage 2.
func crew(t *testing.T, n int) (*kvstore.Tree, []*gamestate.Store) {
	t.Helper()
	ctx := context.Background()
	remote := kvstore.NewTree()
	opts := gamestate.DefaultOptions()
	opts.EchoWindow = 0

	var stores []*gamestate.Store
	for i := 0; i < n; i++ {
		s := gamestate.New(session.Session{PlayerID: fmt.Sprintf("p%d", i+1)}, remote, kvstore.NewTree(), opts)
		t.Cleanup(s.Close)
		var err error
		if i == 0 {
			_, err = s.CreateTeam(ctx, "Line Two")
		} else {
			_, err = s.JoinTeam(ctx, "Line Two")
		}
		if err != nil {
			t.Fatal(err)
		}
		stores = append(stores, s)
	}
	for _, s := range stores {
		if err := s.SubscribeScoped(ctx, 2); err != nil {
			t.Fatal(err)
		}
		waitFor(t, func() bool { return len(s.Record().Players) == n })
	}
	return remote, stores
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func TestMarkDone_SinglePlayerTask(t *testing.T) {
	_, s := crew(t, 1)
	c := New(s[0])
	ctx := context.Background()

	if err := c.MarkDone(ctx, "t-recipe-sheet", "p1"); err != nil {
		t.Fatalf("MarkDone() error: %v", err)
	}
	rec := s[0].Record()
	if !IsComplete(rec, "t-recipe-sheet") {
		t.Error("single-player task should complete immediately")
	}
	if _, ok := rec.Stage2.Completed["t-recipe-sheet"]; !ok {
		t.Error("completion time should be recorded")
	}
	if done, total := Progress(rec); done != 1 || total != len(gamedata.Tasks) {
		t.Errorf("Progress() = %d/%d, want 1/%d", done, total, len(gamedata.Tasks))
	}
}

func TestMarkDone_MultiPlayerTask(t *testing.T) {
	_, s := crew(t, 2)
	ctx := context.Background()
	c1, c2 := New(s[0]), New(s[1])

	if err := c1.MarkDone(ctx, "t-allergen-check", "p1"); !errors.Is(err, ErrNotAssigned) {
		t.Errorf("MarkDone before Assign = %v, want ErrNotAssigned", err)
	}
	if err := c1.Assign(ctx, "t-allergen-check", []string{"p1"}); !errors.Is(err, ErrCrewSize) {
		t.Errorf("Assign one of two = %v, want ErrCrewSize", err)
	}
	if err := c1.Assign(ctx, "t-allergen-check", []string{"p1", "p9"}); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Assign stranger = %v, want ErrNotRegistered", err)
	}
	if err := c1.Assign(ctx, "t-allergen-check", []string{"p1", "p2"}); err != nil {
		t.Fatal(err)
	}

	if err := c1.MarkDone(ctx, "t-allergen-check", "p1"); err != nil {
		t.Fatal(err)
	}
	if IsComplete(s[0].Record(), "t-allergen-check") {
		t.Fatal("task should wait for p2")
	}

	waitFor(t, func() bool { return s[1].Record().Stage2.Tasks["t-allergen-check"].Done["p1"] })
	if err := c2.MarkDone(ctx, "t-allergen-check", "p2"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s[1].Record().Stage2.Completed["t-allergen-check"]; !ok {
		t.Error("the last assignee should record completion")
	}
	waitFor(t, func() bool { return IsComplete(s[0].Record(), "t-allergen-check") })
}

func TestIsComplete_SimultaneousAssignees(t *testing.T) {
	_, s := crew(t, 2)
	ctx := context.Background()
	c1, c2 := New(s[0]), New(s[1])

	if err := c1.Assign(ctx, "t-brief-operators", []string{"p1", "p2"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(s[1].Record().Stage2.Tasks["t-brief-operators"].Assignees) == 2 })

	// Both mark before seeing the other, so neither writes completion.
	if err := c1.MarkDone(ctx, "t-brief-operators", "p1"); err != nil {
		t.Fatal(err)
	}
	if err := c2.MarkDone(ctx, "t-brief-operators", "p2"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return IsComplete(s[0].Record(), "t-brief-operators") })
}

func TestMarkDone_NotAssigned(t *testing.T) {
	_, s := crew(t, 3)
	ctx := context.Background()
	c := New(s[0])
	if err := c.Assign(ctx, "t-allergen-check", []string{"p1", "p2"}); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkDone(ctx, "t-allergen-check", "p3"); !errors.Is(err, ErrNotAssigned) {
		t.Errorf("MarkDone by p3 = %v, want ErrNotAssigned", err)
	}
	if err := c.MarkDone(ctx, "t-nope", "p1"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("MarkDone unknown = %v, want ErrUnknownTask", err)
	}
}

func TestRetryQueue(t *testing.T) {
	_, s := crew(t, 1)
	ctx := context.Background()
	c := New(s[0])

	if err := c.QueueRetry(ctx, "t-check-weigher"); err != nil {
		t.Fatal(err)
	}
	if !s[0].Record().Stage2.RetryQueue["t-check-weigher"] {
		t.Fatal("task should be queued")
	}
	if err := c.MarkDone(ctx, "t-check-weigher", "p1"); err != nil {
		t.Fatal(err)
	}
	if s[0].Record().Stage2.RetryQueue["t-check-weigher"] {
		t.Error("completing a task should take it off the retry queue")
	}
	if err := c.QueueRetry(ctx, "t-check-weigher"); err != nil {
		t.Fatal(err)
	}
	if s[0].Record().Stage2.RetryQueue["t-check-weigher"] {
		t.Error("completed tasks are not re-queued")
	}
}

func TestPenalize(t *testing.T) {
	remote, s := crew(t, 1)
	ctx := context.Background()
	c := New(s[0])

	for i := 0; i < 3; i++ {
		if err := c.Penalize(ctx, gamedata.PenaltyWrongOrder); err != nil {
			t.Fatal(err)
		}
	}
	c.Penalize(ctx, gamedata.PenaltyTimeout)
	if err := c.Penalize(ctx, "bad.reason"); !errors.Is(err, ErrBadReason) {
		t.Errorf("Penalize invalid = %v, want ErrBadReason", err)
	}

	rec := s[0].Record()
	if got := rec.Stage2.Penalties[gamedata.PenaltyWrongOrder]; got != 3 {
		t.Errorf("wrong-order penalties = %d, want 3", got)
	}
	if got := PenaltyTotal(rec); got != 4 {
		t.Errorf("PenaltyTotal() = %d, want 4", got)
	}
	v, _ := remote.Get(ctx, "teams/line-two/stage2/penalties/timeout")
	if v != 1.0 {
		t.Errorf("backend timeout penalties = %v, want 1", v)
	}
}

func TestAllDone(t *testing.T) {
	_, s := crew(t, 3)
	ctx := context.Background()
	c := New(s[0])
	ids := []string{"p1", "p2", "p3"}

	for _, task := range gamedata.Tasks {
		if task.Crew > 1 {
			if err := c.Assign(ctx, task.ID, ids[:task.Crew]); err != nil {
				t.Fatal(err)
			}
		}
	}
	stores := map[string]*gamestate.Store{"p1": s[0], "p2": s[1], "p3": s[2]}
	for _, task := range gamedata.Tasks {
		if task.Crew == 1 {
			c.MarkDone(ctx, task.ID, "p1")
			continue
		}
		for _, pid := range ids[:task.Crew] {
			st := stores[pid]
			waitFor(t, func() bool { return len(st.Record().Stage2.Tasks[task.ID].Assignees) == task.Crew })
			if err := New(st).MarkDone(ctx, task.ID, pid); err != nil {
				t.Fatal(err)
			}
		}
	}
	waitFor(t, func() bool { return AllDone(s[0].Record()) })
}
