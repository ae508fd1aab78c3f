// Package sampling edits the stage 3 plan: how many samples to take at
// each step, test and timepoint, and which operator questions to ask. The
// combined cost never exceeds the sampling budget.
package sampling

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
	ErrOverBudget       = errors.New("not enough sampling budget left")
	ErrUnknownTest      = errors.New("unknown step or test")
	ErrUnknownTimepoint = errors.New("unknown timepoint")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrNegative         = errors.New("quantity must not be negative")
)

type Planner struct {
	gs *gamestate.Store
}

func New(gs *gamestate.Store) *Planner {
	return &Planner{gs: gs}
}

func (p *Planner) budget() int {
	return p.gs.Config().SamplingBudget
}

func (p *Planner) stage() string {
	return teams.StagePath(p.gs.TeamID(), 3)
}

// Allocate sets the quantity for one plan cell and returns what was
// stored. A quantity that would overrun the budget is cut down to the
// headroom left once every other cell and question is paid for.
func (p *Planner) Allocate(ctx context.Context, step, test, timepoint string, qty int) (int, error) {
	if _, ok := gamedata.TestFor(step, test); !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownTest, step, test)
	}
	if !gamedata.ValidTimepoint(timepoint) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTimepoint, timepoint)
	}
	if qty < 0 {
		return 0, ErrNegative
	}

	st := p.gs.Record().Stage3
	current := st.Plan[step][test][timepoint]
	headroom := p.budget() - (Total(st) - current)
	if headroom < 0 {
		headroom = 0
	}
	if qty > headroom {
		qty = headroom
	}

	var v any
	if qty > 0 {
		v = qty
	}
	path := kvstore.Join(p.stage(), "plan", step, test, timepoint)
	if err := p.gs.Set(ctx, path, v); err != nil {
		return 0, err
	}
	return qty, nil
}

// AskQuestion adds an operator question to the plan, paying its cost.
// Asking again is a no-op.
func (p *Planner) AskQuestion(ctx context.Context, id string) error {
	q, ok := gamedata.QuestionByID(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	st := p.gs.Record().Stage3
	if st.Conversation[id].Asked {
		return nil
	}
	if left := p.budget() - Total(st); q.Cost > left {
		return fmt.Errorf("%w: %s costs %d, %d left", ErrOverBudget, id, q.Cost, left)
	}
	return p.gs.Set(ctx, kvstore.Join(p.stage(), gamedata.ConversationStep, id),
		teams.AskedQuestion{Asked: true, Cost: q.Cost})
}

func (p *Planner) Unask(ctx context.Context, id string) error {
	if _, ok := gamedata.QuestionByID(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	return p.gs.Set(ctx, kvstore.Join(p.stage(), gamedata.ConversationStep, id), nil)
}

func (p *Planner) Remaining() int {
	return Remaining(p.gs.Record().Stage3, p.budget())
}

// Total is everything the plan spends: sample quantities plus the cost of
// asked questions.
func Total(st teams.Stage3) int {
	n := 0
	for _, tests := range st.Plan {
		for _, tps := range tests {
			for _, q := range tps {
				n += q
			}
		}
	}
	for _, q := range st.Conversation {
		if q.Asked {
			n += q.Cost
		}
	}
	return n
}

func Remaining(st teams.Stage3, budget int) int {
	if left := budget - Total(st); left > 0 {
		return left
	}
	return 0
}

// Samples is the number of samples planned for one step/test pair.
func Samples(st teams.Stage3, step, test string) int {
	n := 0
	for _, q := range st.Plan[step][test] {
		n += q
	}
	return n
}
