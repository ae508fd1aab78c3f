package gamedata

// Task is one item on the stage 2 pre-trial checklist. Crew is how many
// players must sign it off.
type Task struct {
	ID    string
	Title string
	Crew  int
}

var Tasks = []Task{
	{ID: "t-recipe-sheet", Title: "Issue the trial recipe sheet to the line", Crew: 1},
	{ID: "t-allergen-check", Title: "Verify the allergen changeover", Crew: 2},
	{ID: "t-calibrate-probes", Title: "Calibrate temperature probes", Crew: 1},
	{ID: "t-check-weigher", Title: "Zero the check-weigher", Crew: 1},
	{ID: "t-brief-operators", Title: "Brief the shift operators", Crew: 2},
	{ID: "t-label-samples", Title: "Prepare sample labels and bags", Crew: 1},
	{ID: "t-release-sign-off", Title: "Sign off line release", Crew: 3},
}

// Penalty reasons recorded against a team in stage 2.
const (
	PenaltyWrongOrder = "wrong-order"
	PenaltyMissedTask = "missed-task"
	PenaltyTimeout    = "timeout"
)

var tasksByID = make(map[string]Task)

func init() {
	for _, t := range Tasks {
		tasksByID[t.ID] = t
	}
}

func TaskByID(id string) (Task, bool) {
	t, ok := tasksByID[id]
	return t, ok
}
