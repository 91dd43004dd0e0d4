package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migrationhub/api/internal/hub"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

// now is a Thursday.
var now = day("2026-03-12")

func fixtures() []hub.Migration {
	return []hub.Migration{
		{ID: "M-0001", Stage: hub.StageMapping, OwnerEmail: "ana@example.com", StartDate: ptr(day("2026-02-01")),
			StageDates: map[hub.Stage]time.Time{hub.StageMapping: day("2026-02-20")}}, // 20 days, behind
		{ID: "M-0002", Stage: hub.StageMapping, OwnerEmail: "ana@example.com", StartDate: ptr(day("2026-03-01")),
			StageDates: map[hub.Stage]time.Time{hub.StageMapping: day("2026-03-10")}}, // 2 days, on track
		{ID: "M-0003", Stage: hub.StageKickoff, OwnerEmail: "bo@example.com", StartDate: ptr(day("2026-03-09")),
			StageDates: map[hub.Stage]time.Time{hub.StageKickoff: day("2026-03-09")}}, // 3 days of 3, at risk
		{ID: "M-0004", Stage: hub.StageComplete, OwnerEmail: "bo@example.com", StartDate: ptr(day("2026-01-01")),
			StageDates: map[hub.Stage]time.Time{hub.StageComplete: day("2026-03-02")}}, // 60 days
		{ID: "M-0005", Stage: hub.StageComplete, OwnerEmail: "", StartDate: ptr(day("2026-02-01")),
			StageDates: map[hub.Stage]time.Time{hub.StageComplete: day("2026-03-11")}}, // 38 days
		{ID: "M-0006", Stage: hub.StageOnHold, OwnerEmail: "cy@example.com"},
		{ID: "M-0007", RawStage: "Limbo", OwnerEmail: "cy@example.com"},
	}
}

func TestSummary(t *testing.T) {
	s := BuildSummary(fixtures(), hub.DefaultThresholds(), now)
	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 4, s.Active)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.OnHold)
	assert.Equal(t, 1, s.Behind)
	assert.Equal(t, 1, s.AtRisk)
	assert.Equal(t, 1, s.OnTrack)
	assert.Equal(t, 1, s.Unknown)
	assert.Equal(t, 49.0, s.AvgDaysToComplete)
	assert.Equal(t, 8.3, s.AvgDaysInStage) // (20+2+3)/3
}

func TestByStage(t *testing.T) {
	r := Build(fixtures(), hub.DefaultThresholds(), now, Window{}, 4)
	require.Len(t, r.Stages, len(hub.AllStages()))
	assert.Equal(t, hub.StageKickoff, r.Stages[0].Stage)

	mapping := r.Stages[hub.PipelineIndex(hub.StageMapping)]
	assert.Equal(t, 2, mapping.Count)
	assert.Equal(t, 1, mapping.Behind)
	assert.Equal(t, 10, mapping.ThresholdDays)
	assert.Equal(t, 11.0, mapping.AvgDaysInStage)

	complete := r.Stages[hub.PipelineIndex(hub.StageComplete)]
	assert.Equal(t, 2, complete.Count)
	assert.Zero(t, complete.ThresholdDays)
}

func TestByOwnerOrdering(t *testing.T) {
	r := Build(fixtures(), hub.DefaultThresholds(), now, Window{}, 4)
	require.Len(t, r.Owners, 4)
	assert.Equal(t, OwnerRow{Owner: "ana@example.com", Active: 2, Behind: 1}, r.Owners[0])
	assert.Equal(t, OwnerRow{Owner: "bo@example.com", Active: 1, AtRisk: 1, Completed: 1}, r.Owners[1])
	assert.Equal(t, OwnerRow{Owner: "cy@example.com", Active: 1}, r.Owners[2])
	assert.Equal(t, OwnerRow{Owner: Unassigned, Completed: 1}, r.Owners[3])
}

func TestHeatmap(t *testing.T) {
	r := Build(fixtures(), hub.DefaultThresholds(), now, Window{}, 4)
	h := r.Heatmap
	assert.Len(t, h.Stages, 6)
	assert.Equal(t, []string{"ana@example.com", "bo@example.com", "cy@example.com", Unassigned}, h.Owners)
	assert.Equal(t, 2, h.Cells[0][hub.PipelineIndex(hub.StageMapping)])
	assert.Equal(t, 1, h.Cells[1][hub.PipelineIndex(hub.StageKickoff)])
	assert.Equal(t, 2, h.Max)
	for _, row := range h.Cells {
		assert.Len(t, row, len(h.Stages))
	}
}

func TestThroughput(t *testing.T) {
	r := Build(fixtures(), hub.DefaultThresholds(), now, Window{}, 3)
	require.Len(t, r.Throughput, 3)
	assert.Equal(t, day("2026-02-23"), r.Throughput[0].WeekStart)
	assert.Equal(t, day("2026-03-09"), r.Throughput[2].WeekStart)
	assert.Equal(t, 0, r.Throughput[0].Completed)
	assert.Equal(t, 1, r.Throughput[1].Completed) // M-0004, Mon 2026-03-02
	assert.Equal(t, 1, r.Throughput[2].Completed) // M-0005
}

func TestWindowFiltersOnStartDate(t *testing.T) {
	r := Build(fixtures(), hub.DefaultThresholds(), now, Window{From: day("2026-03-01")}, 4)
	assert.Equal(t, 2, r.Summary.Total)
}

func TestEmptyInput(t *testing.T) {
	r := Build(nil, hub.DefaultThresholds(), now, Window{}, 0)
	assert.Zero(t, r.Summary.Total)
	assert.Len(t, r.Throughput, 8)
	assert.Empty(t, r.Owners)
	assert.Zero(t, r.Heatmap.Max)
}

func TestStatusesOrdersMostOverdueFirst(t *testing.T) {
	rows := Statuses(fixtures(), hub.DefaultThresholds(), now, Window{})
	require.Len(t, rows, 7)
	assert.Equal(t, "M-0001", rows[0].Migration.ID)
	assert.Equal(t, hub.StatusBehind, rows[0].Evaluation.Status)
	assert.Equal(t, "M-0003", rows[1].Migration.ID)
	assert.Equal(t, hub.StatusAtRisk, rows[1].Evaluation.Status)
	for _, row := range rows[2:] {
		assert.NotEqual(t, hub.StatusBehind, row.Evaluation.Status)
		assert.NotEqual(t, hub.StatusAtRisk, row.Evaluation.Status)
	}
}
