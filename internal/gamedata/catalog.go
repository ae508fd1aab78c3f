package gamedata

import "sort"

type CriterionKind string

const (
	KindMeasurement  CriterionKind = "measurement"
	KindConversation CriterionKind = "conversation"
)

// Measurement names one process step/test pair.
type Measurement struct {
	Step string
	Test string
}

type Criterion struct {
	ID           string
	Title        string
	Kind         CriterionKind
	Measurements []Measurement
	Questions    []string
}

type Test struct {
	ID      string
	Name    string
	Unit    string
	Nominal float64
	// Tolerance is the in-spec half-width around Nominal.
	Tolerance float64
	// FailRange is the deviation beyond which a reading is critical.
	FailRange float64
}

type Step struct {
	ID    string
	Name  string
	Tests []Test
}

type Question struct {
	ID       string
	Text     string
	Cost     int
	Positive []string
	Negative []string
}

// ConversationStep is the plan entry holding operator questions.
const ConversationStep = "operator-conversation"

var Timepoints = []string{"start", "mid", "end"}

var Steps = []Step{
	{ID: "mixing", Name: "Dough Mixing", Tests: []Test{
		{ID: "dough-temp", Name: "Dough temperature", Unit: "°C", Nominal: 24, Tolerance: 1.5, FailRange: 3},
		{ID: "moisture", Name: "Moisture content", Unit: "%", Nominal: 38, Tolerance: 1, FailRange: 2.5},
	}},
	{ID: "baking", Name: "Baking", Tests: []Test{
		{ID: "core-temp", Name: "Core temperature", Unit: "°C", Nominal: 94, Tolerance: 2, FailRange: 5},
		{ID: "bake-color", Name: "Crust colour", Unit: "L*", Nominal: 58, Tolerance: 3, FailRange: 6},
	}},
	{ID: "cooling", Name: "Cooling", Tests: []Test{
		{ID: "exit-temp", Name: "Exit temperature", Unit: "°C", Nominal: 28, Tolerance: 2, FailRange: 4},
	}},
	{ID: "packaging", Name: "Packaging", Tests: []Test{
		{ID: "fill-weight", Name: "Fill weight", Unit: "g", Nominal: 250, Tolerance: 3, FailRange: 6},
		{ID: "seal-strength", Name: "Seal strength", Unit: "N", Nominal: 18, Tolerance: 2, FailRange: 4},
		{ID: "oxygen", Name: "Residual oxygen", Unit: "%", Nominal: 1, Tolerance: 0.3, FailRange: 0.8},
	}},
}

var Questions = []Question{
	{
		ID: "q-changeover", Text: "How did the changeover from the old recipe go?", Cost: 10,
		Positive: []string{
			"Smooth. We had the new settings on the panel before the first batch.",
			"Took ten minutes longer than usual but nothing unexpected.",
		},
		Negative: []string{
			"We had to guess some of the mixer settings, the sheet was out of date.",
			"Honestly it was chaos, the first two batches went to waste.",
		},
	},
	{
		ID: "q-cleaning", Text: "Were there any issues with cleaning between runs?", Cost: 10,
		Positive: []string{
			"No, the new dough releases easily from the bowls.",
			"Cleaning was on schedule and signed off every time.",
		},
		Negative: []string{
			"It sticks to the depositor, we skipped a clean to keep up.",
			"We found residue on the conveyor after the second run.",
		},
	},
	{
		ID: "q-speed", Text: "Could the line keep up at target speed?", Cost: 15,
		Positive: []string{
			"Yes, we ran at full speed for the whole shift.",
			"Packaging kept pace once we adjusted the infeed.",
		},
		Negative: []string{
			"We had to slow the oven belt to get the colour right.",
			"The wrapper jammed whenever we went above eighty percent.",
		},
	},
	{
		ID: "q-training", Text: "Do you feel ready to run this product on your own?", Cost: 5,
		Positive: []string{
			"Yes. The work instructions are clear.",
			"We ran it twice with the developers, I'm comfortable.",
		},
		Negative: []string{
			"Not yet, half of the night shift hasn't seen it.",
			"I'd want someone from development here for the first week.",
		},
	},
}

var Criteria = []Criterion{
	{ID: "c-kill-step", Title: "Product reaches a safe core temperature", Kind: KindMeasurement,
		Measurements: []Measurement{{"baking", "core-temp"}, {"cooling", "exit-temp"}}},
	{ID: "c-fill-accuracy", Title: "Packs meet declared weight", Kind: KindMeasurement,
		Measurements: []Measurement{{"packaging", "fill-weight"}}},
	{ID: "c-seal-integrity", Title: "Packs are sealed for shelf life", Kind: KindMeasurement,
		Measurements: []Measurement{{"packaging", "seal-strength"}, {"packaging", "oxygen"}}},
	{ID: "c-texture", Title: "Texture matches the gold standard", Kind: KindMeasurement,
		Measurements: []Measurement{{"mixing", "moisture"}, {"baking", "bake-color"}}},
	{ID: "c-dough-consistency", Title: "Dough is consistent batch to batch", Kind: KindMeasurement,
		Measurements: []Measurement{{"mixing", "dough-temp"}, {"mixing", "moisture"}}},
	{ID: "c-appearance", Title: "Appearance meets the brand standard", Kind: KindMeasurement,
		Measurements: []Measurement{{"baking", "bake-color"}}},
	{ID: "c-cooling-profile", Title: "Product cools before packing", Kind: KindMeasurement,
		Measurements: []Measurement{{"cooling", "exit-temp"}}},
	{ID: "c-shelf-life", Title: "Shelf life reaches twelve weeks", Kind: KindMeasurement,
		Measurements: []Measurement{{"packaging", "oxygen"}, {"mixing", "moisture"}}},
	{ID: "c-operator-confidence", Title: "Operators can run the line unaided", Kind: KindConversation,
		Questions: []string{"q-changeover", "q-training"}},
	{ID: "c-line-readiness", Title: "The line runs at commercial speed", Kind: KindConversation,
		Questions: []string{"q-speed", "q-cleaning"}},
}

var (
	criteriaByID  = make(map[string]Criterion)
	questionsByID = make(map[string]Question)
	testsByKey    = make(map[Measurement]Test)
	stepsByID     = make(map[string]Step)
)

func init() {
	for _, c := range Criteria {
		criteriaByID[c.ID] = c
	}
	for _, q := range Questions {
		questionsByID[q.ID] = q
	}
	for _, s := range Steps {
		stepsByID[s.ID] = s
		for _, t := range s.Tests {
			testsByKey[Measurement{Step: s.ID, Test: t.ID}] = t
		}
	}
}

func CriterionByID(id string) (Criterion, bool) {
	c, ok := criteriaByID[id]
	return c, ok
}

func QuestionByID(id string) (Question, bool) {
	q, ok := questionsByID[id]
	return q, ok
}

func StepByID(id string) (Step, bool) {
	s, ok := stepsByID[id]
	return s, ok
}

func TestFor(step, test string) (Test, bool) {
	t, ok := testsByKey[Measurement{Step: step, Test: test}]
	return t, ok
}

func ValidTimepoint(tp string) bool {
	for _, t := range Timepoints {
		if t == tp {
			return true
		}
	}
	return false
}

// Resolve looks up ids in the catalog, dropping unknown and repeated ids,
// and returns the criteria sorted by id.
func Resolve(ids []string) []Criterion {
	seen := make(map[string]bool, len(ids))
	out := make([]Criterion, 0, len(ids))
	for _, id := range ids {
		c, ok := criteriaByID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
