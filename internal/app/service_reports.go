package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"migrationhub/api/internal/export"
	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/reports"
	"migrationhub/api/internal/search"
	"migrationhub/api/internal/sheets"
)

const maxThresholdDays = 365

// ThresholdView is one row of the SLA table with where its value came from.
type ThresholdView struct {
	Stage     hub.Stage  `json:"stage"`
	Days      int        `json:"days"`
	Source    string     `json:"source"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// StageView describes a stage for pickers in the UI.
type StageView struct {
	Stage      hub.Stage `json:"stage"`
	DateColumn string    `json:"dateColumn"`
	Active     bool      `json:"active"`
	Next       hub.Stage `json:"next,omitempty"`
	Threshold  int       `json:"thresholdDays,omitempty"`
}

func (s *Service) Reports(ctx context.Context, current Session, window reports.Window) (reports.Report, error) {
	report, _, err := s.buildReport(ctx, current, window)
	return report, err
}

func (s *Service) buildReport(ctx context.Context, current Session, window reports.Window) (reports.Report, []reports.MigrationStatus, error) {
	_, table, err := s.loadMigrations(ctx, current)
	if err != nil {
		return reports.Report{}, nil, err
	}
	thresholds, _, err := s.effectiveThresholds(ctx)
	if err != nil {
		return reports.Report{}, nil, err
	}
	migrations := hub.MigrationsFromTable(table)
	now := s.now()
	return reports.Build(migrations, thresholds, now, window, 0),
		reports.Statuses(migrations, thresholds, now, window),
		nil
}

// ExportReport renders the current report. With archive set the file is also stored
// and the result carries a presigned link.
func (s *Service) ExportReport(ctx context.Context, current Session, format export.Format, window reports.Window, archive bool) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Report export is not configured", nil)
	}
	report, statuses, err := s.buildReport(ctx, current, window)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, export.Request{
		Format:      format,
		Report:      report,
		Statuses:    statuses,
		GeneratedBy: firstNonBlank(current.Name, current.Email),
		Archive:     archive,
	})
	if err != nil {
		s.record(ctx, current, "", "report.export", "error", map[string]any{"format": format, "error": err.Error()})
		return nil, err
	}
	s.record(ctx, current, "", "report.export", "ok", map[string]any{
		"format":   format,
		"filename": result.Filename,
		"archived": result.ArchiveURL != "",
	})
	return result, nil
}

func (s *Service) Stages(ctx context.Context) ([]StageView, error) {
	thresholds, _, err := s.effectiveThresholds(ctx)
	if err != nil {
		return nil, err
	}
	stages := hub.AllStages()
	out := make([]StageView, 0, len(stages))
	for _, stage := range stages {
		view := StageView{Stage: stage, DateColumn: hub.StageDateColumn(stage), Active: hub.IsActive(stage)}
		if next, err := hub.NextStage(stage); err == nil {
			view.Next = next
		}
		if view.Active {
			view.Threshold = thresholds.For(stage)
		}
		out = append(out, view)
	}
	return out, nil
}

// Thresholds lists the SLA for every active stage.
func (s *Service) Thresholds(ctx context.Context) ([]ThresholdView, error) {
	effective, overrides, err := s.effectiveThresholds(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[hub.Stage]int, len(overrides))
	for i, o := range overrides {
		if stage, ok := hub.NormalizeStage(o.Stage); ok {
			stored[stage] = i
		}
	}
	defaults := hub.DefaultThresholds()

	out := make([]ThresholdView, 0)
	for _, stage := range hub.Pipeline {
		if !hub.IsActive(stage) {
			continue
		}
		view := ThresholdView{Stage: stage, Days: effective.For(stage), Source: "default"}
		if idx, ok := stored[stage]; ok {
			o := overrides[idx]
			updatedAt := o.UpdatedAt
			view.Source = "override"
			view.UpdatedBy = o.UpdatedBy
			view.UpdatedAt = &updatedAt
		} else if days, ok := defaults[stage]; !ok || days != view.Days {
			view.Source = "file"
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) SetThreshold(ctx context.Context, current Session, rawStage string, days int) ([]ThresholdView, error) {
	stage, err := s.activeStage(rawStage)
	if err != nil {
		return nil, err
	}
	if days <= 0 || days > maxThresholdDays {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "days must be between 1 and 365", map[string]any{"days": days})
	}
	if s.store == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Threshold overrides need the database", nil)
	}
	if err := s.store.SetThresholdOverride(ctx, string(stage), days, current.Email); err != nil {
		return nil, err
	}
	s.record(ctx, current, "", "threshold.set", "ok", map[string]any{"stage": stage, "days": days})
	s.logger.Info("threshold override set", zap.String("stage", string(stage)), zap.Int("days", days), zap.String("actor", current.Email))
	return s.Thresholds(ctx)
}

func (s *Service) ClearThreshold(ctx context.Context, current Session, rawStage string) ([]ThresholdView, error) {
	stage, err := s.activeStage(rawStage)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Threshold overrides need the database", nil)
	}
	removed, err := s.store.DeleteThresholdOverride(ctx, string(stage))
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, domainError(http.StatusNotFound, "OVERRIDE_NOT_FOUND", "No override is set for this stage", map[string]any{"stage": stage})
	}
	s.record(ctx, current, "", "threshold.clear", "ok", map[string]any{"stage": stage})
	return s.Thresholds(ctx)
}

func (s *Service) activeStage(raw string) (hub.Stage, error) {
	stage, ok := hub.NormalizeStage(raw)
	if !ok {
		return "", domainError(http.StatusUnprocessableEntity, "UNKNOWN_STAGE", "Unknown stage", map[string]any{"stage": raw})
	}
	if !hub.IsActive(stage) {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Only active stages carry a threshold", map[string]any{"stage": stage})
	}
	return stage, nil
}

func (s *Service) corpusLoader(current Session) search.Loader {
	return func(ctx context.Context) (search.Corpus, error) {
		client, err := s.sheetsFor(ctx, current)
		if err != nil {
			return search.Corpus{}, err
		}
		tables, err := s.readTabs(ctx, client, s.cfg.MigrationsTab, s.cfg.CustomersTab)
		if err != nil {
			return search.Corpus{}, err
		}
		return corpusFromTables(tables[0], tables[1]), nil
	}
}

func corpusFromTables(migrations, customers sheets.Table) search.Corpus {
	return search.NewCorpus(hub.MigrationsFromTable(migrations), hub.CustomersFromTable(customers))
}

func (s *Service) Search(ctx context.Context, current Session, q search.Query) (search.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return search.Response{Results: []search.Result{}, Query: q.Text, Engine: search.EngineMemory}, nil
	}
	switch q.FilterType {
	case "", search.ResultMigration, search.ResultCustomer:
	default:
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be migration or customer", nil)
	}
	return s.search.Search(ctx, q, s.corpusLoader(current))
}

// Reindex rebuilds the search index. It reports false when no index is configured.
func (s *Service) Reindex(ctx context.Context, current Session) (bool, error) {
	indexed, err := s.search.Reindex(ctx, s.corpusLoader(current))
	if err != nil {
		return false, err
	}
	if indexed {
		s.record(ctx, current, "", "search.reindex", "ok", nil)
	}
	return indexed, nil
}

// isExportDependencyError reports whether an export failed for lack of a local tool.
func isExportDependencyError(err error) bool {
	return errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing)
}
