package levels

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"northstar/internal/events"
	"northstar/internal/gamedata"
	"northstar/internal/gamestate"
	"northstar/internal/kvstore"
	"northstar/internal/session"
	"northstar/internal/teams"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, sess session.Session) (*gamestate.Store, *clock, *events.Bus) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	bus := events.NewBus()
	opts := gamestate.DefaultOptions()
	opts.Clock = clk.Now
	opts.Bus = bus
	s := gamestate.New(sess, kvstore.NewTree(), kvstore.NewTree(), opts)
	t.Cleanup(s.Close)
	if _, err := s.CreateTeam(context.Background(), "Night Shift"); err != nil {
		t.Fatal(err)
	}
	return s, clk, bus
}

func confirmStage1(t *testing.T, s *gamestate.Store) {
	t.Helper()
	if err := s.AssignRole(context.Background(), gamedata.RoleB); err != nil {
		t.Fatal(err)
	}
	rp := teams.RolePath(s.TeamID(), gamedata.RoleB)
	if err := s.Apply(context.Background(), "confirm", map[string]any{
		rp + "/confirmedBy":         []string{s.Session().PlayerID},
		rp + "/confirmedSelections": []string{"c-texture"},
	}); err != nil {
		t.Fatal(err)
	}
}

func TestView_RespectsUnlock(t *testing.T) {
	s, _, _ := setup(t, session.Session{PlayerID: "p1"})
	c := New(s)
	ctx := context.Background()

	if err := c.View(ctx, 1); err != nil {
		t.Fatalf("View(1) error: %v", err)
	}
	if s.Viewing() != 1 {
		t.Errorf("Viewing() = %d, want 1", s.Viewing())
	}
	if err := c.View(ctx, 2); !errors.Is(err, ErrLocked) {
		t.Errorf("View(2) = %v, want ErrLocked", err)
	}
	if err := c.View(ctx, 5); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("View(5) = %v, want ErrInvalidStage", err)
	}
}

func TestView_TestModeOpensEverything(t *testing.T) {
	s, _, _ := setup(t, session.Session{PlayerID: "p1", TestMode: true})
	c := New(s)
	for stage := 1; stage <= gamedata.NumStages; stage++ {
		if err := c.View(context.Background(), stage); err != nil {
			t.Errorf("View(%d) in test mode = %v", stage, err)
		}
	}
	if s.Viewing() != 4 {
		t.Errorf("Viewing() = %d, want 4", s.Viewing())
	}
}

func TestComplete(t *testing.T) {
	s, _, bus := setup(t, session.Session{PlayerID: "p1"})
	c := New(s)
	ctx := context.Background()

	if err := c.Complete(ctx, 1); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Complete(1) before confirming = %v, want ErrNotReady", err)
	}
	confirmStage1(t, s)
	if err := c.Complete(ctx, 1); err != nil {
		t.Fatalf("Complete(1) error: %v", err)
	}

	rec := s.Record()
	if !Completed(rec, 1) {
		t.Error("stage 1 badge missing")
	}
	if rec.Meta.UnlockedStage != 2 || rec.Meta.CurrentStage != 2 {
		t.Errorf("unlocked/current = %d/%d, want 2/2", rec.Meta.UnlockedStage, rec.Meta.CurrentStage)
	}
	select {
	case n := <-bus.Notices:
		if n.Kind != events.StageChanged {
			t.Errorf("notice kind = %q, want stageChanged", n.Kind)
		}
	default:
		t.Error("no stage notice published")
	}

	// Idempotent: the badge keeps its first time.
	first := rec.Badges["stage1"]
	if err := c.Complete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if s.Record().Badges["stage1"] != first {
		t.Error("re-completing changed the badge")
	}

	if err := c.Complete(ctx, 3); !errors.Is(err, ErrLocked) {
		t.Errorf("Complete(3) = %v, want ErrLocked", err)
	}
	if err := c.View(ctx, 2); err != nil {
		t.Errorf("View(2) after unlock = %v", err)
	}
}

func TestTimer(t *testing.T) {
	s, clk, _ := setup(t, session.Session{PlayerID: "p1"})
	c := New(s)
	ctx := context.Background()

	if err := c.StartTimer(ctx, 0, 1); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("StartTimer for untimed stage = %v, want ErrInvalidDuration", err)
	}
	if err := c.StartTimer(ctx, 0, 2); err != nil {
		t.Fatal(err)
	}
	meta := s.Record().Meta
	if meta.Timer == nil || meta.Timer.DurationMinutes != 10 || !meta.Started {
		t.Fatalf("meta after StartTimer = %+v", meta)
	}

	clk.Advance(4 * time.Minute)
	if c.TimerExpired() {
		t.Fatal("timer expired early")
	}
	if err := c.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	clk.Advance(30 * time.Minute)
	if c.TimerExpired() {
		t.Error("a paused timer never expires")
	}
	if left, _ := Remaining(s.Record().Meta, clk.Now()); left != 6*time.Minute {
		t.Errorf("Remaining() while paused = %v, want 6m", left)
	}

	if err := c.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if left, _ := Remaining(s.Record().Meta, clk.Now()); left != 6*time.Minute {
		t.Errorf("Remaining() after resume = %v, want 6m", left)
	}
	clk.Advance(6 * time.Minute)
	if !c.TimerExpired() {
		t.Error("timer should have expired")
	}
}

func TestComplete_ClearsTimer(t *testing.T) {
	s, _, _ := setup(t, session.Session{PlayerID: "p1"})
	c := New(s)
	ctx := context.Background()

	if err := c.StartTimer(ctx, 5, 1); err != nil {
		t.Fatal(err)
	}
	confirmStage1(t, s)
	if err := c.Complete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if s.Record().Meta.Timer != nil {
		t.Error("completing the timed stage should clear its timer")
	}
}

func TestReady(t *testing.T) {
	rec := teams.Record{Stage3: teams.Stage3{Plan: teams.Plan{"mixing": {"moisture": {"start": 10}}}}}
	if !Ready(rec, 3, 300) {
		t.Error("a plan within budget is ready")
	}
	if Ready(rec, 3, 5) {
		t.Error("a plan over budget is not ready")
	}
	if Ready(teams.Record{}, 3, 300) {
		t.Error("an empty plan is not ready")
	}
	if Ready(teams.Record{}, 4, 300) {
		t.Error("stage 4 needs a result")
	}
}
