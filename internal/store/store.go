// Package store persists finished door runs in a local SQLite database.
//
// Every run of the door is recorded as an attempt row plus one decision row
// per person seen. Attempts are numbered per game starting at 1, so repeated
// plays of the same game line up with the decision history files on disk.
package store

import (
	"time"

	"github.com/MJE43/berghain-runner-go/internal/berghain"
)

// Attempt is one finished (or aborted) run of the door for a game.
type Attempt struct {
	ID            int64                 `json:"id"`
	GameID        string                `json:"gameId"`
	AttemptNumber int                   `json:"attemptNumber"`
	ScenarioID    int                   `json:"scenarioId"`
	Status        berghain.Status       `json:"status"`
	Admitted      int                   `json:"admittedCount"`
	Rejected      int                   `json:"rejectedCount"`
	Counts        map[string]int        `json:"attributeCounts"`
	Constraints   []berghain.Constraint `json:"constraints,omitempty"`
	Reason        string                `json:"reason,omitempty"`
	StartedAt     time.Time             `json:"startedAt"`
	FinishedAt    time.Time             `json:"finishedAt"`
}

// Decision is one admit/reject call within an attempt.
type Decision struct {
	ID             int64           `json:"id"`
	AttemptID      int64           `json:"attemptId"`
	PersonIndex    int             `json:"personIndex"`
	Attributes     map[string]bool `json:"attributes"`
	Accepted       bool            `json:"accepted"`
	AdmittedBefore int             `json:"admittedCountBefore"`
	RejectedBefore int             `json:"rejectedCountBefore"`
	AdmittedAfter  int             `json:"admittedCountAfter"`
	RejectedAfter  int             `json:"rejectedCountAfter"`
}

// ConstraintStanding reports where one quota ended up at the end of an attempt.
type ConstraintStanding struct {
	Attribute   string `json:"attribute"`
	MinRequired int    `json:"minCount"`
	Count       int    `json:"count"`
	Met         bool   `json:"met"`
}

// Standings computes the per-constraint outcome from the stored counts.
func (a Attempt) Standings() []ConstraintStanding {
	out := make([]ConstraintStanding, 0, len(a.Constraints))
	for _, c := range a.Constraints {
		n := a.Counts[c.Attribute]
		out = append(out, ConstraintStanding{
			Attribute:   c.Attribute,
			MinRequired: c.MinCount,
			Count:       n,
			Met:         n >= c.MinCount,
		})
	}
	return out
}

// LeaderboardRow is the summary line shown for an attempt in rankings and
// recent-history views.
type LeaderboardRow struct {
	GameID        string          `json:"gameId"`
	ScenarioID    int             `json:"scenarioId"`
	AttemptNumber int             `json:"attemptNumber"`
	Status        berghain.Status `json:"status"`
	Admitted      int             `json:"admittedCount"`
	Rejected      int             `json:"rejectedCount"`
	FinishedAt    time.Time       `json:"finishedAt"`
}
