// Package strategy decides who gets past the door.
//
// The built-in Rules policy works from the scenario's constraints and
// attribute statistics: rare attributes are gated hard until their
// floors are met, people covering several unmet constraints are
// prioritized, and acceptance tightens as the venue fills. A custom
// policy can be supplied as a JavaScript file instead; see Script.
package strategy

import "github.com/MJE43/berghain-runner-go/internal/berghain"

// Decider decides whether to admit one person given the current door
// state.
type Decider interface {
	Decide(person berghain.Person, s *State) (bool, error)
}

// State is the door-side view of a running game, updated by the caller
// as decisions land. Counts tracks admitted head counts per attribute.
type State struct {
	Capacity      int
	MaxRejections int
	Admitted      int
	Rejected      int
	Counts        map[string]int
	Constraints   []berghain.Constraint
	Stats         berghain.AttributeStatistics
}

// NewState builds the initial state for one attempt.
func NewState(constraints []berghain.Constraint, stats berghain.AttributeStatistics, capacity, maxRejections int) *State {
	return &State{
		Capacity:      capacity,
		MaxRejections: maxRejections,
		Counts:        make(map[string]int),
		Constraints:   constraints,
		Stats:         stats,
	}
}

// FillRatio is how full the venue is, 0.0 to 1.0.
func (s *State) FillRatio() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Admitted) / float64(s.Capacity)
}

// Remaining is the number of free spots.
func (s *State) Remaining() int {
	return s.Capacity - s.Admitted
}

// MinCount returns the constraint minimum for attr, 0 if unconstrained.
func (s *State) MinCount(attr string) int {
	for _, c := range s.Constraints {
		if c.Attribute == attr {
			return c.MinCount
		}
	}
	return 0
}

// Deficit is how far attr still is from its constraint minimum.
// Negative once the minimum is exceeded.
func (s *State) Deficit(attr string) int {
	return s.MinCount(attr) - s.Counts[attr]
}

// Progress is the admitted count relative to the constraint minimum,
// 1.0 when the attribute is unconstrained.
func (s *State) Progress(attr string) float64 {
	min := s.MinCount(attr)
	if min <= 0 {
		return 1.0
	}
	return float64(s.Counts[attr]) / float64(min)
}

// Frequency is the relative arrival frequency of attr, 0 when unknown.
func (s *State) Frequency(attr string) float64 {
	return s.Stats.RelativeFrequencies[attr]
}

// Correlation is the pairwise correlation of two attributes, 0 when
// unknown.
func (s *State) Correlation(a, b string) float64 {
	return s.Stats.Correlations[a][b]
}

// Admit records an accepted person's attributes.
func (s *State) Admit(attrs map[string]bool) {
	s.Admitted++
	for attr, has := range attrs {
		if has {
			s.Counts[attr]++
		}
	}
}

// Reject records a turned-away person.
func (s *State) Reject() {
	s.Rejected++
}

// Rules is the built-in constraint-driven policy.
type Rules struct {
	T Tunables
}

// NewRules creates the built-in policy with the given tuning.
func NewRules(t Tunables) *Rules {
	return &Rules{T: t}
}

// Decide implements Decider.
func (r *Rules) Decide(person berghain.Person, s *State) (bool, error) {
	return r.decide(person.Attributes, s), nil
}

func (r *Rules) decide(attrs map[string]bool, s *State) bool {
	t := r.T

	if s.Admitted >= s.Capacity {
		return false
	}

	// Hard gate: while any rare constraint is far below its floor, only
	// people carrying that attribute get through at all.
	for _, c := range s.Constraints {
		if !r.isRare(s, c.Attribute) {
			continue
		}
		floor := int(float64(c.MinCount) * t.RareFloorFraction)
		if s.Counts[c.Attribute] < floor {
			return attrs[c.Attribute]
		}
	}

	// Rare attributes below their over-target ceiling are taken outright.
	for _, c := range s.Constraints {
		if r.isRare(s, c.Attribute) && attrs[c.Attribute] &&
			float64(s.Counts[c.Attribute]) < float64(c.MinCount)*t.OverTargetRare {
			return true
		}
	}

	needed, critical := r.tally(attrs, s)
	if needed >= t.MultiNeededAccept {
		return true
	}
	if critical >= t.MultiCriticalAccept {
		return true
	}

	fill := s.FillRatio()

	// Rare attributes keep a little slack over target while space remains.
	for _, c := range s.Constraints {
		if !r.isRare(s, c.Attribute) || !attrs[c.Attribute] {
			continue
		}
		if s.Counts[c.Attribute] < c.MinCount {
			return true
		}
		if s.Progress(c.Attribute) < t.OverTargetRare && fill < t.FillLate {
			return true
		}
	}

	// People holding both sides of a strongly negative pair are scarce;
	// take them while either side is short. Once both sides are covered
	// they stop being worth a spot.
	if pair, ok := r.negativePair(attrs, s); ok {
		a, b := pair[0], pair[1]
		if s.Counts[a] < s.MinCount(a) || s.Counts[b] < s.MinCount(b) {
			return true
		}
		if s.Progress(a) < t.OverTargetCommon && s.Progress(b) < t.OverTargetCommon && fill < t.FillLate {
			return true
		}
		return false
	}

	// Common constrained attributes, one at a time.
	for _, c := range s.Constraints {
		if r.isRare(s, c.Attribute) || !attrs[c.Attribute] {
			continue
		}
		if s.Counts[c.Attribute] < c.MinCount {
			if c.MinCount-s.Counts[c.Attribute] > t.DeficitLow {
				return true
			}
			if fill < t.FillMid {
				return true
			}
		} else if s.Progress(c.Attribute) < t.OverTargetCommon && fill < t.FillLate {
			return true
		}
	}

	// Early game: anyone moving a constraint forward gets in.
	if needed >= 1 {
		if fill < t.FillEarly {
			return true
		}
		if fill < t.FillMid && r.maxDeficit(s) > t.DeficitModerate {
			return true
		}
	}

	// Late game: only significant deficits justify a seat, and past the
	// critical fill mark the bar rises again.
	if fill >= t.FillLate {
		threshold := t.DeficitHigh
		if fill >= t.FillCritical {
			threshold = t.DeficitVeryHigh
		}
		if needed >= 1 && r.maxDeficit(s) > threshold {
			return true
		}
		for _, c := range s.Constraints {
			if r.isRare(s, c.Attribute) && attrs[c.Attribute] && s.Counts[c.Attribute] < c.MinCount {
				return true
			}
		}
	}

	return false
}

// tally counts how many unmet constraints the person helps with, and
// how many of those are critical. Rare attributes are always critical.
func (r *Rules) tally(attrs map[string]bool, s *State) (needed, critical int) {
	for _, c := range s.Constraints {
		if !attrs[c.Attribute] || s.Counts[c.Attribute] >= c.MinCount {
			continue
		}
		needed++
		if r.isRare(s, c.Attribute) || c.MinCount-s.Counts[c.Attribute] > r.T.DeficitModerate {
			critical++
		}
	}
	return needed, critical
}

// negativePair returns the first constrained attribute pair the person
// fully holds whose correlation is at or below the cutoff.
func (r *Rules) negativePair(attrs map[string]bool, s *State) ([2]string, bool) {
	for i, a := range s.Constraints {
		if !attrs[a.Attribute] {
			continue
		}
		for _, b := range s.Constraints[i+1:] {
			if !attrs[b.Attribute] {
				continue
			}
			if s.Correlation(a.Attribute, b.Attribute) <= r.T.NegativeCorrelationMax {
				return [2]string{a.Attribute, b.Attribute}, true
			}
		}
	}
	return [2]string{}, false
}

func (r *Rules) maxDeficit(s *State) int {
	most := 0
	for _, c := range s.Constraints {
		if d := c.MinCount - s.Counts[c.Attribute]; d > most {
			most = d
		}
	}
	return most
}

func (r *Rules) isRare(s *State, attr string) bool {
	f, ok := s.Stats.RelativeFrequencies[attr]
	return ok && f < r.T.RareFrequencyCutoff
}
