package analytics

import "time"

type TeamSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	Players       int       `json:"players"`
	MissingRoles  []string  `json:"missingRoles,omitempty"`
	CurrentStage  int       `json:"currentStage"`
	UnlockedStage int       `json:"unlockedStage"`
	Score         int       `json:"score"`
	Locked        bool      `json:"locked"`
	Paused        bool      `json:"paused"`
	Submitted     bool      `json:"submitted"`
	Badges        []Badge   `json:"badges"`
}

type LeaderboardEntry struct {
	TeamID     string `json:"teamId"`
	TeamName   string `json:"teamName"`
	Score      int    `json:"score"`
	StagesDone int    `json:"stagesDone"`
	Rank       int    `json:"rank"`
}
