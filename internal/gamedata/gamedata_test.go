package gamedata

import (
	"testing"

	"northstar/internal/kvstore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TeamCapacity != 12 {
		t.Errorf("TeamCapacity = %d, want 12", cfg.TeamCapacity)
	}
	if cfg.SamplingBudget != 300 {
		t.Errorf("SamplingBudget = %d, want 300", cfg.SamplingBudget)
	}
	if cfg.StageDuration(1) != 0 {
		t.Errorf("StageDuration(1) = %v, want 0", cfg.StageDuration(1))
	}
}

func TestCatalogIsConsistent(t *testing.T) {
	for _, c := range Criteria {
		if err := kvstore.ValidKey(c.ID); err != nil {
			t.Errorf("criterion id %q is not a valid key: %v", c.ID, err)
		}
		switch c.Kind {
		case KindMeasurement:
			if len(c.Measurements) == 0 {
				t.Errorf("%s has no measurements", c.ID)
			}
			for _, m := range c.Measurements {
				tt, ok := TestFor(m.Step, m.Test)
				if !ok {
					t.Errorf("%s references unknown test %s/%s", c.ID, m.Step, m.Test)
					continue
				}
				if tt.Tolerance <= 0 || tt.FailRange <= tt.Tolerance {
					t.Errorf("%s/%s tolerance %v must be positive and below fail range %v", m.Step, m.Test, tt.Tolerance, tt.FailRange)
				}
			}
		case KindConversation:
			for _, q := range c.Questions {
				question, ok := QuestionByID(q)
				if !ok {
					t.Errorf("%s references unknown question %s", c.ID, q)
					continue
				}
				if len(question.Positive) == 0 || len(question.Negative) == 0 {
					t.Errorf("question %s needs both quote pools", q)
				}
			}
		default:
			t.Errorf("%s has unknown kind %q", c.ID, c.Kind)
		}
	}
}

func TestResolve(t *testing.T) {
	got := Resolve([]string{"c-texture", "nope", "c-appearance", "c-texture"})
	if len(got) != 2 {
		t.Fatalf("Resolve() returned %d criteria, want 2", len(got))
	}
	if got[0].ID != "c-appearance" || got[1].ID != "c-texture" {
		t.Errorf("Resolve() order = %s, %s", got[0].ID, got[1].ID)
	}
}

func TestVerdictJudgeable(t *testing.T) {
	for _, v := range []Verdict{Met, NotMet, Insufficient} {
		if !v.Judgeable() {
			t.Errorf("%q should be judgeable", v)
		}
	}
	if MetUnsound.Judgeable() {
		t.Error("met-unsound is ground truth only")
	}
}

func TestNarrative(t *testing.T) {
	if Narrative(SeverityCritical) == NoErrorNarrative {
		t.Error("critical severity should have its own narrative")
	}
	if Narrative("") != NoErrorNarrative {
		t.Error("unknown severity should fall back to the no-error narrative")
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleC.Valid() || Role("E").Valid() || Role("").Valid() {
		t.Error("Role.Valid() mismatch")
	}
	if StageKey(3) != "stage3" {
		t.Errorf("StageKey(3) = %q", StageKey(3))
	}
}
