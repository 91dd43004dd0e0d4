// Package reports aggregates migrations into the dashboard's summary, stage, owner,
// heatmap and throughput views.
package reports

import (
	"sort"
	"time"

	"migrationhub/api/internal/hub"
)

// Unassigned labels migrations with a blank owner.
const Unassigned = "Unassigned"

type Summary struct {
	Total             int     `json:"total"`
	Active            int     `json:"active"`
	Completed         int     `json:"completed"`
	OnHold            int     `json:"onHold"`
	Behind            int     `json:"behind"`
	AtRisk            int     `json:"atRisk"`
	OnTrack           int     `json:"onTrack"`
	Unknown           int     `json:"unknown"`
	AvgDaysToComplete float64 `json:"avgDaysToComplete"`
	AvgDaysInStage    float64 `json:"avgDaysInStage"`
}

type StageRow struct {
	Stage          hub.Stage `json:"stage"`
	Count          int       `json:"count"`
	Behind         int       `json:"behind"`
	AtRisk         int       `json:"atRisk"`
	ThresholdDays  int       `json:"thresholdDays,omitempty"`
	AvgDaysInStage float64   `json:"avgDaysInStage"`
}

type OwnerRow struct {
	Owner     string `json:"owner"`
	Active    int    `json:"active"`
	Behind    int    `json:"behind"`
	AtRisk    int    `json:"atRisk"`
	Completed int    `json:"completed"`
}

// Heatmap is the owner × active stage workload matrix. Cells[i][j] counts Owners[i]'s
// migrations in Stages[j].
type Heatmap struct {
	Owners []string    `json:"owners"`
	Stages []hub.Stage `json:"stages"`
	Cells  [][]int     `json:"cells"`
	Max    int         `json:"max"`
}

type WeekBucket struct {
	WeekStart time.Time `json:"weekStart"`
	Completed int       `json:"completed"`
}

// Window restricts aggregation to migrations started in [From, To]. Zero bounds are open.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) contains(m hub.Migration) bool {
	if w.From.IsZero() && w.To.IsZero() {
		return true
	}
	if m.StartDate == nil {
		return false
	}
	if !w.From.IsZero() && m.StartDate.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && m.StartDate.After(w.To) {
		return false
	}
	return true
}

// Report bundles every view computed at one instant.
type Report struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	Summary     Summary      `json:"summary"`
	Stages      []StageRow   `json:"stages"`
	Owners      []OwnerRow   `json:"owners"`
	Heatmap     Heatmap      `json:"heatmap"`
	Throughput  []WeekBucket `json:"throughput"`
}

// evaluated pairs a migration with its SLA verdict so each view evaluates once.
type evaluated struct {
	m    hub.Migration
	eval hub.Evaluation
}

func evaluateAll(migrations []hub.Migration, thresholds hub.Thresholds, now time.Time, window Window) []evaluated {
	out := make([]evaluated, 0, len(migrations))
	for _, m := range migrations {
		if !window.contains(m) {
			continue
		}
		out = append(out, evaluated{m: m, eval: hub.Evaluate(m, thresholds, now)})
	}
	return out
}

// Build computes every view. throughputWeeks <= 0 defaults to 8.
func Build(migrations []hub.Migration, thresholds hub.Thresholds, now time.Time, window Window, throughputWeeks int) Report {
	items := evaluateAll(migrations, thresholds, now, window)
	owners := byOwner(items)
	return Report{
		GeneratedAt: now,
		Summary:     summarize(items),
		Stages:      byStage(items, thresholds),
		Owners:      owners,
		Heatmap:     heatmap(items, owners),
		Throughput:  throughput(items, now, throughputWeeks),
	}
}

// MigrationStatus is one migration with its verdict, the row shape of the CSV export.
type MigrationStatus struct {
	Migration  hub.Migration
	Evaluation hub.Evaluation
}

// Statuses evaluates every migration in the window, listing the most overdue first:
// Behind before At Risk before everything else, then by days in stage.
func Statuses(migrations []hub.Migration, thresholds hub.Thresholds, now time.Time, window Window) []MigrationStatus {
	items := evaluateAll(migrations, thresholds, now, window)
	out := make([]MigrationStatus, len(items))
	for i, it := range items {
		out[i] = MigrationStatus{Migration: it.m, Evaluation: it.eval}
	}
	rank := func(s hub.Status) int {
		switch s {
		case hub.StatusBehind:
			return 0
		case hub.StatusAtRisk:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		ra, rb := rank(out[a].Evaluation.Status), rank(out[b].Evaluation.Status)
		if ra != rb {
			return ra < rb
		}
		return out[a].Evaluation.DaysInStage > out[b].Evaluation.DaysInStage
	})
	return out
}

// BuildSummary computes only the summary.
func BuildSummary(migrations []hub.Migration, thresholds hub.Thresholds, now time.Time) Summary {
	return summarize(evaluateAll(migrations, thresholds, now, Window{}))
}

func summarize(items []evaluated) Summary {
	var s Summary
	var completeDays, completeN, stageDays, stageN int
	for _, it := range items {
		s.Total++
		switch it.eval.Status {
		case hub.StatusComplete:
			s.Completed++
			if done, ok := it.m.CompletedAt(); ok && it.m.StartDate != nil {
				completeDays += hub.DaysBetween(*it.m.StartDate, done)
				completeN++
			}
		case hub.StatusOnHold:
			s.OnHold++
		case hub.StatusBehind:
			s.Behind++
		case hub.StatusAtRisk:
			s.AtRisk++
		case hub.StatusOnTrack:
			s.OnTrack++
		default:
			s.Unknown++
		}
		if it.m.Active() {
			s.Active++
			if it.eval.DaysInStage >= 0 {
				stageDays += it.eval.DaysInStage
				stageN++
			}
		}
	}
	s.AvgDaysToComplete = average(completeDays, completeN)
	s.AvgDaysInStage = average(stageDays, stageN)
	return s
}

func byStage(items []evaluated, thresholds hub.Thresholds) []StageRow {
	stages := hub.AllStages()
	rows := make([]StageRow, len(stages))
	index := make(map[hub.Stage]int, len(stages))
	days := make([]int, len(stages))
	dayN := make([]int, len(stages))
	for i, stage := range stages {
		rows[i] = StageRow{Stage: stage}
		if hub.IsActive(stage) {
			rows[i].ThresholdDays = thresholds.For(stage)
		}
		index[stage] = i
	}
	for _, it := range items {
		i, ok := index[it.m.Stage]
		if !ok {
			continue
		}
		rows[i].Count++
		switch it.eval.Status {
		case hub.StatusBehind:
			rows[i].Behind++
		case hub.StatusAtRisk:
			rows[i].AtRisk++
		}
		if it.eval.DaysInStage >= 0 {
			days[i] += it.eval.DaysInStage
			dayN[i]++
		}
	}
	for i := range rows {
		rows[i].AvgDaysInStage = average(days[i], dayN[i])
	}
	return rows
}

func ownerKey(m hub.Migration) string {
	if m.OwnerEmail == "" {
		return Unassigned
	}
	return m.OwnerEmail
}

func byOwner(items []evaluated) []OwnerRow {
	index := map[string]int{}
	var rows []OwnerRow
	for _, it := range items {
		key := ownerKey(it.m)
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, OwnerRow{Owner: key})
		}
		switch {
		case it.eval.Status == hub.StatusComplete:
			rows[i].Completed++
		case it.m.Active():
			rows[i].Active++
			if it.eval.Status == hub.StatusBehind {
				rows[i].Behind++
			}
			if it.eval.Status == hub.StatusAtRisk {
				rows[i].AtRisk++
			}
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].Active != rows[b].Active {
			return rows[a].Active > rows[b].Active
		}
		return rows[a].Owner < rows[b].Owner
	})
	return rows
}

func heatmap(items []evaluated, owners []OwnerRow) Heatmap {
	var stages []hub.Stage
	for _, stage := range hub.Pipeline {
		if hub.IsActive(stage) {
			stages = append(stages, stage)
		}
	}
	h := Heatmap{Stages: stages, Owners: make([]string, len(owners)), Cells: make([][]int, len(owners))}
	ownerIdx := make(map[string]int, len(owners))
	for i, o := range owners {
		h.Owners[i] = o.Owner
		h.Cells[i] = make([]int, len(stages))
		ownerIdx[o.Owner] = i
	}
	for _, it := range items {
		col := hub.PipelineIndex(it.m.Stage)
		if col < 0 || col >= len(stages) {
			continue
		}
		row := ownerIdx[ownerKey(it.m)]
		h.Cells[row][col]++
		if h.Cells[row][col] > h.Max {
			h.Max = h.Cells[row][col]
		}
	}
	return h
}

// weekStart is the Monday (UTC) of t's ISO week.
func weekStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func throughput(items []evaluated, now time.Time, weeks int) []WeekBucket {
	if weeks <= 0 {
		weeks = 8
	}
	current := weekStart(now)
	first := current.AddDate(0, 0, -7*(weeks-1))
	buckets := make([]WeekBucket, weeks)
	for i := range buckets {
		buckets[i].WeekStart = first.AddDate(0, 0, 7*i)
	}
	for _, it := range items {
		done, ok := it.m.CompletedAt()
		if !ok {
			continue
		}
		ws := weekStart(done)
		if ws.Before(first) || ws.After(current) {
			continue
		}
		buckets[int(ws.Sub(first).Hours()/(24*7))].Completed++
	}
	return buckets
}

func average(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(int(float64(sum)/float64(n)*10+0.5)) / 10
}
