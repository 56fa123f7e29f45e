package berghain

import "time"

// Status is the lifecycle state of a game as reported by the API.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Constraint is a minimum head count the venue must admit for one attribute.
type Constraint struct {
	Attribute string `json:"attribute"`
	MinCount  int    `json:"minCount"`
}

// AttributeStatistics describes the arrival distribution for a scenario:
// how often each attribute shows up and how attributes co-occur.
// Correlations are in [-1, 1], keyed both ways.
type AttributeStatistics struct {
	RelativeFrequencies map[string]float64            `json:"relativeFrequencies"`
	Correlations        map[string]map[string]float64 `json:"correlations"`
}

// NewGameResponse is the payload from /new-game.
type NewGameResponse struct {
	GameID              string              `json:"gameId"`
	Constraints         []Constraint        `json:"constraints"`
	AttributeStatistics AttributeStatistics `json:"attributeStatistics"`
}

// GameInfo is the persisted record of one created game, written into
// the scenario's game_info.json keyed by game id.
type GameInfo struct {
	PlayerID            string              `json:"playerId"`
	ScenarioID          int                 `json:"scenarioId"`
	GameID              string              `json:"gameId"`
	Constraints         []Constraint        `json:"constraints"`
	AttributeStatistics AttributeStatistics `json:"attributeStatistics"`
	CreatedAt           time.Time           `json:"createdAt,omitzero"`
}

// Person is one arrival at the door.
type Person struct {
	PersonIndex int             `json:"personIndex"`
	Attributes  map[string]bool `json:"attributes"`
}

// DecideState is the payload from /decide-and-next: the running tallies
// after the submitted decision, plus the next person while the game is
// still running. NextPerson is nil once the game has ended. Reason is
// only set on failed games.
type DecideState struct {
	Status        Status  `json:"status"`
	AdmittedCount int     `json:"admittedCount"`
	RejectedCount int     `json:"rejectedCount"`
	NextPerson    *Person `json:"nextPerson"`
	Reason        string  `json:"reason,omitempty"`
}
