// Package hub holds the migration domain: pipeline stages, SLA thresholds and the
// conventions for turning sheet rows into typed records.
package hub

import (
	"errors"
	"strings"

	"migrationhub/api/internal/sheets"
)

type Stage string

const (
	StageKickoff       Stage = "Kickoff"
	StageWaitingOnData Stage = "Waiting on Data Upload"
	StageDataReceived  Stage = "Data Received"
	StageMapping       Stage = "Mapping In Progress"
	StageReview        Stage = "Customer Review"
	StageFinalImport   Stage = "Final Import"
	StageComplete      Stage = "Complete"
	StageOnHold        Stage = "On Hold"
	StageCancelled     Stage = "Cancelled"
)

var (
	ErrUnknownStage = errors.New("unknown stage")
	ErrNoNextStage  = errors.New("stage has no next stage")
)

// Pipeline is the ordered workflow. On Hold and Cancelled sit outside it.
var Pipeline = []Stage{
	StageKickoff,
	StageWaitingOnData,
	StageDataReceived,
	StageMapping,
	StageReview,
	StageFinalImport,
	StageComplete,
}

// SideStages are valid stages that are not steps of the pipeline.
var SideStages = []Stage{StageOnHold, StageCancelled}

var stageDateColumns = map[Stage]string{
	StageKickoff:       "KickoffDate",
	StageWaitingOnData: "DataRequestedDate",
	StageDataReceived:  "DataReceivedDate",
	StageMapping:       "MappingStartDate",
	StageReview:        "ReviewStartDate",
	StageFinalImport:   "FinalImportDate",
	StageComplete:      "CompletedDate",
	StageOnHold:        "OnHoldDate",
	StageCancelled:     "CancelledDate",
}

var stageAliases = map[string]Stage{
	"waitingondata":    StageWaitingOnData,
	"dataupload":       StageWaitingOnData,
	"awaitingdata":     StageWaitingOnData,
	"datarequested":    StageWaitingOnData,
	"mapping":          StageMapping,
	"inmapping":        StageMapping,
	"review":           StageReview,
	"uat":              StageReview,
	"import":           StageFinalImport,
	"done":             StageComplete,
	"completed":        StageComplete,
	"live":             StageComplete,
	"hold":             StageOnHold,
	"paused":           StageOnHold,
	"canceled":         StageCancelled,
	"new":              StageKickoff,
	"kickoffscheduled": StageKickoff,
}

// AllStages returns the pipeline followed by the side stages.
func AllStages() []Stage {
	out := make([]Stage, 0, len(Pipeline)+len(SideStages))
	out = append(out, Pipeline...)
	return append(out, SideStages...)
}

// NormalizeStage maps free text from the sheet to a known stage.
func NormalizeStage(raw string) (Stage, bool) {
	key := sheets.NormalizeHeader(raw)
	if key == "" {
		return "", false
	}
	for _, stage := range AllStages() {
		if sheets.NormalizeHeader(string(stage)) == key {
			return stage, true
		}
	}
	if stage, ok := stageAliases[key]; ok {
		return stage, true
	}
	return "", false
}

// NextStage returns the pipeline step after stage.
func NextStage(stage Stage) (Stage, error) {
	for i, s := range Pipeline {
		if s != stage {
			continue
		}
		if i == len(Pipeline)-1 {
			return "", ErrNoNextStage
		}
		return Pipeline[i+1], nil
	}
	for _, s := range SideStages {
		if s == stage {
			return "", ErrNoNextStage
		}
	}
	return "", ErrUnknownStage
}

// StageDateColumn names the column stamped when a migration enters stage.
func StageDateColumn(stage Stage) string {
	return stageDateColumns[stage]
}

// IsActive reports whether a migration in stage still counts toward workload.
func IsActive(stage Stage) bool {
	switch stage {
	case StageComplete, StageOnHold, StageCancelled:
		return false
	case "":
		return false
	default:
		return true
	}
}

// PipelineIndex is the position of stage in Pipeline, or -1.
func PipelineIndex(stage Stage) int {
	for i, s := range Pipeline {
		if s == stage {
			return i
		}
	}
	return -1
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
