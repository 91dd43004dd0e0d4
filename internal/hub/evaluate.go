package hub

import (
	"math"
	"time"
)

type Status string

const (
	StatusOnTrack  Status = "On Track"
	StatusAtRisk   Status = "At Risk"
	StatusBehind   Status = "Behind"
	StatusComplete Status = "Complete"
	StatusOnHold   Status = "On Hold"
	StatusUnknown  Status = "Unknown"
)

// Evaluation is the SLA verdict for one migration at a point in time.
type Evaluation struct {
	Status        Status `json:"status"`
	DaysInStage   int    `json:"daysInStage"`
	ThresholdDays int    `json:"thresholdDays,omitempty"`
	NextStage     Stage  `json:"nextStage,omitempty"`
}

// Evaluate applies the stage threshold to the days spent in the current stage.
func Evaluate(m Migration, thresholds Thresholds, now time.Time) Evaluation {
	eval := Evaluation{DaysInStage: m.DaysInStage(now)}
	if next, err := NextStage(m.Stage); err == nil {
		eval.NextStage = next
	}
	switch m.Stage {
	case StageComplete:
		eval.Status = StatusComplete
		return eval
	case StageOnHold, StageCancelled:
		eval.Status = StatusOnHold
		return eval
	case "":
		eval.Status = StatusUnknown
		return eval
	}
	eval.ThresholdDays = thresholds.For(m.Stage)
	switch {
	case eval.DaysInStage < 0:
		eval.Status = StatusUnknown
	case eval.DaysInStage > eval.ThresholdDays:
		eval.Status = StatusBehind
	case eval.DaysInStage >= AtRiskDays(eval.ThresholdDays):
		eval.Status = StatusAtRisk
	default:
		eval.Status = StatusOnTrack
	}
	return eval
}

// AtRiskDays is the first day in stage that counts as At Risk for a threshold.
func AtRiskDays(threshold int) int {
	return int(math.Ceil(float64(threshold) * AtRiskRatio))
}
