// Package doorman runs a single attempt of a game: it fetches each
// arrival, consults the strategy, submits the verdict, and records the
// full decision history. One attempt is strictly sequential; the API
// only reveals the next person once the current one is decided.
package doorman

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/MJE43/berghain-runner-go/internal/berghain"
	"github.com/MJE43/berghain-runner-go/internal/strategy"
)

// GameClient is the slice of the challenge API the doorman needs.
type GameClient interface {
	DecideAndNext(ctx context.Context, gameID string, personIndex int, accept *bool) (*berghain.DecideState, error)
}

// Options configure one attempt.
type Options struct {
	// Capacity and MaxRejections are local stop guards mirroring the
	// server-side limits. Defaults: 1000 and 20000.
	Capacity      int
	MaxRejections int

	// Logger receives one line per decision plus the attempt summary.
	Logger *log.Logger
}

// Decision is one line of the attempt's history.
type Decision struct {
	PersonIndex    int             `json:"personIndex"`
	Attributes     map[string]bool `json:"attributes"`
	Accepted       bool            `json:"accepted"`
	AdmittedBefore int             `json:"admittedCountBefore"`
	RejectedBefore int             `json:"rejectedCountBefore"`
	AdmittedAfter  int             `json:"admittedCountAfter"`
	RejectedAfter  int             `json:"rejectedCountAfter"`
}

// Attempt is the outcome of one run through a game.
type Attempt struct {
	GameID     string          `json:"gameId"`
	Status     berghain.Status `json:"status"`
	Admitted   int             `json:"admittedCount"`
	Rejected   int             `json:"rejectedCount"`
	Counts     map[string]int  `json:"attributeCounts"`
	Decisions  []Decision      `json:"decisionHistory"`
	Reason     string          `json:"reason,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// ConstraintsMet reports whether every constraint minimum was reached.
func (a *Attempt) ConstraintsMet(constraints []berghain.Constraint) bool {
	for _, c := range constraints {
		if a.Counts[c.Attribute] < c.MinCount {
			return false
		}
	}
	return true
}

// Doorman plays games one person at a time.
type Doorman struct {
	client  GameClient
	decider strategy.Decider
	opts    Options
	log     *log.Logger
}

// New creates a doorman for the given client and strategy.
func New(client GameClient, decider strategy.Decider, opts Options) *Doorman {
	if opts.Capacity == 0 {
		opts.Capacity = 1000
	}
	if opts.MaxRejections == 0 {
		opts.MaxRejections = 20000
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[door] ", log.LstdFlags)
	}
	return &Doorman{
		client:  client,
		decider: decider,
		opts:    opts,
		log:     logger,
	}
}

// Run plays one attempt of the game described by info until the server
// ends it or a local stop guard trips. The returned attempt holds
// whatever was recorded even when an error cut the run short.
func (d *Doorman) Run(ctx context.Context, info *berghain.GameInfo) (*Attempt, error) {
	state := strategy.NewState(info.Constraints, info.AttributeStatistics, d.opts.Capacity, d.opts.MaxRejections)
	attempt := &Attempt{
		GameID:    info.GameID,
		StartedAt: time.Now(),
	}

	d.log.Printf("starting game %s (%d constraints)", info.GameID, len(info.Constraints))

	resp, err := d.client.DecideAndNext(ctx, info.GameID, 0, nil)
	if err != nil {
		d.capture(attempt, resp, state)
		return attempt, fmt.Errorf("doorman: fetch first person: %w", err)
	}

	for resp.Status == berghain.StatusRunning && resp.NextPerson != nil {
		person := *resp.NextPerson

		// The server's tallies are authoritative; local attribute counts
		// ride along because the API does not report them.
		state.Admitted = resp.AdmittedCount
		state.Rejected = resp.RejectedCount

		accept, err := d.decider.Decide(person, state)
		if err != nil {
			d.capture(attempt, resp, state)
			return attempt, fmt.Errorf("doorman: decide person %d: %w", person.PersonIndex, err)
		}

		rec := Decision{
			PersonIndex:    person.PersonIndex,
			Attributes:     person.Attributes,
			Accepted:       accept,
			AdmittedBefore: resp.AdmittedCount,
			RejectedBefore: resp.RejectedCount,
		}

		if accept {
			for attr, has := range person.Attributes {
				if has {
					state.Counts[attr]++
				}
			}
		}

		next, err := d.client.DecideAndNext(ctx, info.GameID, person.PersonIndex, &accept)
		if err != nil {
			d.capture(attempt, resp, state)
			return attempt, fmt.Errorf("doorman: submit decision for person %d: %w", person.PersonIndex, err)
		}

		rec.AdmittedAfter = next.AdmittedCount
		rec.RejectedAfter = next.RejectedCount
		attempt.Decisions = append(attempt.Decisions, rec)

		verdict := "REJECT"
		if accept {
			verdict = "ACCEPT"
		}
		d.log.Printf("person %d: %s admitted=%d rejected=%d", person.PersonIndex, verdict, next.AdmittedCount, next.RejectedCount)

		resp = next

		if resp.Status != berghain.StatusRunning {
			break
		}
		if resp.AdmittedCount >= d.opts.Capacity {
			d.log.Printf("venue full at %d admitted", resp.AdmittedCount)
			break
		}
		if resp.RejectedCount >= d.opts.MaxRejections {
			d.log.Printf("rejection budget exhausted at %d", resp.RejectedCount)
			break
		}
	}

	d.capture(attempt, resp, state)
	d.log.Printf("game %s finished: status=%s admitted=%d rejected=%d decisions=%d",
		attempt.GameID, attempt.Status, attempt.Admitted, attempt.Rejected, len(attempt.Decisions))
	return attempt, nil
}

func (d *Doorman) capture(attempt *Attempt, resp *berghain.DecideState, state *strategy.State) {
	if resp != nil {
		attempt.Status = resp.Status
		attempt.Admitted = resp.AdmittedCount
		attempt.Rejected = resp.RejectedCount
		attempt.Reason = resp.Reason
	}
	attempt.Counts = state.Counts
	attempt.FinishedAt = time.Now()
}
