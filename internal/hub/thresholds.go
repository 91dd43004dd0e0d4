package hub

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultThresholdDays applies to a stage missing from the table.
const DefaultThresholdDays = 7

// AtRiskRatio is the share of a threshold after which a migration is flagged At Risk.
const AtRiskRatio = 0.8

// Thresholds maps a stage to its SLA in whole days.
type Thresholds map[Stage]int

// DefaultThresholds is the static lookup table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StageKickoff:       3,
		StageWaitingOnData: 7,
		StageDataReceived:  3,
		StageMapping:       10,
		StageReview:        7,
		StageFinalImport:   5,
	}
}

// For returns the threshold for stage, falling back to DefaultThresholdDays.
func (t Thresholds) For(stage Stage) int {
	if days, ok := t[stage]; ok && days > 0 {
		return days
	}
	return DefaultThresholdDays
}

// Merge returns a copy of t with every positive override applied.
func (t Thresholds) Merge(overrides Thresholds) Thresholds {
	out := make(Thresholds, len(t)+len(overrides))
	for stage, days := range t {
		out[stage] = days
	}
	for stage, days := range overrides {
		if days > 0 {
			out[stage] = days
		}
	}
	return out
}

type thresholdFile struct {
	Stages map[string]int `yaml:"stages"`
}

// LoadThresholdsFile reads stage overrides from YAML:
//
//	stages:
//	  Customer Review: 5
//	  Mapping In Progress: 14
func LoadThresholdsFile(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading thresholds file: %w", err)
	}
	var file thresholdFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing thresholds YAML: %w", err)
	}
	out := Thresholds{}
	for raw, days := range file.Stages {
		stage, ok := NormalizeStage(raw)
		if !ok {
			return nil, fmt.Errorf("thresholds file: %w: %q", ErrUnknownStage, raw)
		}
		if days <= 0 {
			return nil, fmt.Errorf("thresholds file: %q must be a positive number of days", raw)
		}
		out[stage] = days
	}
	return out, nil
}
