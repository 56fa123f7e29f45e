package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TunablesFile is the per-scenario policy tuning file, looked up in the
// scenario directory.
const TunablesFile = "strategy.yaml"

// Tunables are the thresholds driving the built-in Rules policy. The
// zero value is not usable; start from DefaultTunables.
type Tunables struct {
	// Venue fill ratio thresholds marking game phases.
	FillEarly    float64 `yaml:"fill_early"`
	FillMid      float64 `yaml:"fill_mid"`
	FillLate     float64 `yaml:"fill_late"`
	FillCritical float64 `yaml:"fill_critical"`

	// Deficit thresholds, in head counts below a constraint minimum.
	DeficitLow      int `yaml:"deficit_low"`
	DeficitModerate int `yaml:"deficit_moderate"`
	DeficitHigh     int `yaml:"deficit_high"`
	DeficitVeryHigh int `yaml:"deficit_very_high"`

	// How far past a constraint minimum an attribute may still earn a
	// spot, as a multiplier.
	OverTargetRare   float64 `yaml:"over_target_rare"`
	OverTargetCommon float64 `yaml:"over_target_common"`

	// An attribute is rare when its relative frequency is below this.
	RareFrequencyCutoff float64 `yaml:"rare_frequency_cutoff"`

	// While a rare attribute's count is below this fraction of its
	// minimum, only carriers are admitted at all.
	RareFloorFraction float64 `yaml:"rare_floor_fraction"`

	// Correlations at or below this mark a pair as mutually exclusive
	// in practice.
	NegativeCorrelationMax float64 `yaml:"negative_correlation_max"`

	// Accept anyone helping at least this many unmet constraints, or
	// this many critical ones.
	MultiNeededAccept   int `yaml:"multi_needed_accept"`
	MultiCriticalAccept int `yaml:"multi_critical_accept"`
}

// DefaultTunables returns the stock tuning.
func DefaultTunables() Tunables {
	return Tunables{
		FillEarly:              0.8,
		FillMid:                0.9,
		FillLate:               0.97,
		FillCritical:           0.99,
		DeficitLow:             20,
		DeficitModerate:        50,
		DeficitHigh:            100,
		DeficitVeryHigh:        200,
		OverTargetRare:         1.2,
		OverTargetCommon:       1.1,
		RareFrequencyCutoff:    0.10,
		RareFloorFraction:      0.5,
		NegativeCorrelationMax: -0.5,
		MultiNeededAccept:      3,
		MultiCriticalAccept:    2,
	}
}

// LoadTunables reads a tuning file, layering it over the defaults.
// A missing file just yields the defaults.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return Tunables{}, fmt.Errorf("strategy: read tunables: %w", err)
	}

	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tunables{}, fmt.Errorf("strategy: parse tunables: %w", err)
	}
	return t, nil
}
