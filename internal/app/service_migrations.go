package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/sheets"
	"migrationhub/api/internal/zapier"
)

// MigrationView is a migration row with its SLA verdict attached.
type MigrationView struct {
	hub.Migration
	Evaluation hub.Evaluation `json:"evaluation"`
}

type MigrationFilter struct {
	Stage  string
	Owner  string
	Status string
	Query  string
}

type MigrationDetail struct {
	MigrationView
	Customer *hub.Customer `json:"customer,omitempty"`
}

// UpdateMigrationInput carries the editable fields. Nil fields are left alone.
type UpdateMigrationInput struct {
	Stage        *string `json:"stage"`
	OwnerEmail   *string `json:"ownerEmail"`
	Priority     *string `json:"priority"`
	Notes        *string `json:"notes"`
	GitHubIssue  *string `json:"githubIssue"`
	SourceSystem *string `json:"sourceSystem"`
}

type CreateMigrationInput struct {
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	OwnerEmail   string `json:"ownerEmail"`
	Priority     string `json:"priority"`
	SourceSystem string `json:"sourceSystem"`
	Notes        string `json:"notes"`
}

// HookOutcome reports a webhook call made as a side effect of a write.
type HookOutcome struct {
	Hook     zapier.Hook    `json:"hook"`
	Sent     bool           `json:"sent"`
	Status   int            `json:"status,omitempty"`
	Error    string         `json:"error,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

type CreateMigrationResult struct {
	Migration MigrationView `json:"migration"`
	Hook      HookOutcome   `json:"hook"`
}

type CustomerView struct {
	hub.Customer
	ActiveMigrations int `json:"activeMigrations"`
}

type CustomerDetail struct {
	hub.Customer
	Migrations []MigrationView `json:"migrations"`
}

type CreateCustomerInput struct {
	Name         string `json:"name"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	CSMEmail     string `json:"csmEmail"`
	Region       string `json:"region"`
	Tier         string `json:"tier"`
	ARR          string `json:"arr"`
	Notes        string `json:"notes"`
}

type DraftEmailInput struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Tone    string `json:"tone"`
}

type DraftEmailResult struct {
	MigrationID string          `json:"migrationId"`
	Draft       string          `json:"draft,omitempty"`
	Response    zapier.Response `json:"response"`
}

type GitHubSyncResult struct {
	Migration MigrationView   `json:"migration"`
	Response  zapier.Response `json:"response"`
}

func errMigrationNotFound(id string) error {
	return domainError(http.StatusNotFound, "MIGRATION_NOT_FOUND", "Migration not found", map[string]any{"migrationId": id})
}

func errCustomerNotFound(id string) error {
	return domainError(http.StatusNotFound, "CUSTOMER_NOT_FOUND", "Customer not found", map[string]any{"customerId": id})
}

func (s *Service) view(m hub.Migration, thresholds hub.Thresholds) MigrationView {
	return MigrationView{Migration: m, Evaluation: hub.Evaluate(m, thresholds, s.now())}
}

func (s *Service) loadMigrations(ctx context.Context, current Session) (*sheets.Client, sheets.Table, error) {
	client, err := s.sheetsFor(ctx, current)
	if err != nil {
		return nil, sheets.Table{}, err
	}
	tables, err := s.readTabs(ctx, client, s.cfg.MigrationsTab)
	if err != nil {
		return nil, sheets.Table{}, err
	}
	return client, tables[0], nil
}

func (s *Service) ListMigrations(ctx context.Context, current Session, filter MigrationFilter) ([]MigrationView, error) {
	var stage hub.Stage
	if raw := strings.TrimSpace(filter.Stage); raw != "" {
		normalized, ok := hub.NormalizeStage(raw)
		if !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown stage", map[string]any{"stage": raw})
		}
		stage = normalized
	}
	_, table, err := s.loadMigrations(ctx, current)
	if err != nil {
		return nil, err
	}
	thresholds, _, err := s.effectiveThresholds(ctx)
	if err != nil {
		return nil, err
	}

	owner := strings.ToLower(strings.TrimSpace(filter.Owner))
	status := strings.TrimSpace(filter.Status)
	terms := strings.Fields(strings.ToLower(filter.Query))

	items := make([]MigrationView, 0)
	for _, m := range hub.MigrationsFromTable(table) {
		if stage != "" && m.Stage != stage {
			continue
		}
		if owner != "" && m.OwnerEmail != owner {
			continue
		}
		if len(terms) > 0 && !matchesTerms(m, terms) {
			continue
		}
		view := s.view(m, thresholds)
		if status != "" && !strings.EqualFold(string(view.Evaluation.Status), status) {
			continue
		}
		items = append(items, view)
	}
	return items, nil
}

func matchesTerms(m hub.Migration, terms []string) bool {
	haystack := strings.ToLower(strings.Join([]string{
		m.ID, m.CustomerID, m.CustomerName, m.OwnerEmail, string(m.Stage), m.RawStage, m.Notes, m.SourceSystem,
	}, " "))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func findMigration(table sheets.Table, id string) (hub.Migration, bool) {
	row, ok := table.FindRow(hub.ColMigrationID, id)
	if !ok {
		return hub.Migration{}, false
	}
	return hub.MigrationFromRow(table, row), true
}

func (s *Service) GetMigration(ctx context.Context, current Session, id string) (MigrationDetail, error) {
	client, err := s.sheetsFor(ctx, current)
	if err != nil {
		return MigrationDetail{}, err
	}
	tables, err := s.readTabs(ctx, client, s.cfg.MigrationsTab, s.cfg.CustomersTab)
	if err != nil {
		return MigrationDetail{}, err
	}
	m, ok := findMigration(tables[0], id)
	if !ok {
		return MigrationDetail{}, errMigrationNotFound(id)
	}
	thresholds, _, err := s.effectiveThresholds(ctx)
	if err != nil {
		return MigrationDetail{}, err
	}
	detail := MigrationDetail{MigrationView: s.view(m, thresholds)}
	if customer, ok := findCustomer(tables[1], m); ok {
		detail.Customer = &customer
	}
	return detail, nil
}

// findCustomer matches on CustomerID, then on the customer name.
func findCustomer(table sheets.Table, m hub.Migration) (hub.Customer, bool) {
	if row, ok := table.FindRow(hub.ColCustomerID, m.CustomerID); ok {
		return hub.CustomerFromRow(table, row), true
	}
	if row, ok := table.FindRow(hub.ColCustomerName, m.CustomerName); ok {
		return hub.CustomerFromRow(table, row), true
	}
	return hub.Customer{}, false
}

func (s *Service) UpdateMigration(ctx context.Context, current Session, id string, input UpdateMigrationInput) (MigrationView, error) {
	client, table, err := s.loadMigrations(ctx, current)
	if err != nil {
		return MigrationView{}, err
	}
	m, ok := findMigration(table, id)
	if !ok {
		return MigrationView{}, errMigrationNotFound(id)
	}

	values := map[string]string{}
	if input.Stage != nil {
		stage, ok := hub.NormalizeStage(*input.Stage)
		if !ok {
			return MigrationView{}, fmt.Errorf("%w: %q", hub.ErrUnknownStage, *input.Stage)
		}
		s.stampStage(table, values, stage)
	}
	if input.OwnerEmail != nil {
		owner := strings.ToLower(strings.TrimSpace(*input.OwnerEmail))
		if !strings.Contains(owner, "@") {
			return MigrationView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ownerEmail must be an email address", nil)
		}
		values[hub.ColOwnerEmail] = owner
	}
	setIfPresent(values, hub.ColPriority, input.Priority)
	setIfPresent(values, hub.ColNotes, input.Notes)
	setIfPresent(values, hub.ColGitHubIssue, input.GitHubIssue)
	setIfPresent(values, hub.ColSourceSystem, input.SourceSystem)
	if len(values) == 0 {
		return MigrationView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "No editable fields supplied", nil)
	}
	if _, stamped := values[hub.ColLastUpdated]; !stamped && table.Has(hub.ColLastUpdated) {
		values[hub.ColLastUpdated] = s.today()
	}

	return s.writeMigration(ctx, current, client, table, m, values, "migration.update")
}

// AdvanceMigration moves a migration to the next pipeline stage.
func (s *Service) AdvanceMigration(ctx context.Context, current Session, id string) (MigrationView, error) {
	client, table, err := s.loadMigrations(ctx, current)
	if err != nil {
		return MigrationView{}, err
	}
	m, ok := findMigration(table, id)
	if !ok {
		return MigrationView{}, errMigrationNotFound(id)
	}
	if m.Stage == "" {
		return MigrationView{}, fmt.Errorf("%w: %q", hub.ErrUnknownStage, m.RawStage)
	}
	next, err := hub.NextStage(m.Stage)
	if err != nil {
		return MigrationView{}, err
	}
	values := map[string]string{}
	s.stampStage(table, values, next)
	return s.writeMigration(ctx, current, client, table, m, values, "migration.advance")
}

func (s *Service) stampStage(table sheets.Table, values map[string]string, stage hub.Stage) {
	for header, value := range hub.StageCells(table, stage, s.now().UTC()) {
		values[header] = value
	}
}

func setIfPresent(values map[string]string, header string, value *string) {
	if value != nil {
		values[header] = strings.TrimSpace(*value)
	}
}

func (s *Service) writeMigration(ctx context.Context, current Session, client *sheets.Client, table sheets.Table, m hub.Migration, values map[string]string, action string) (MigrationView, error) {
	writeCtx, cancel := s.sheetsContext(ctx)
	defer cancel()
	if err := client.UpdateCells(writeCtx, table, m.RowNumber, values); err != nil {
		s.record(ctx, current, m.ID, action, "error", map[string]any{"fields": values, "error": err.Error()})
		return MigrationView{}, err
	}
	s.record(ctx, current, m.ID, action, "ok", map[string]any{"fields": values, "fromStage": string(m.Stage)})
	s.logger.Info(action, zap.String("migration_id", m.ID), zap.String("actor", current.Email))

	row := applyValues(table, m.RowNumber, values)
	if row == nil {
		return MigrationView{}, errMigrationNotFound(m.ID)
	}
	thresholds, _, err := s.effectiveThresholds(ctx)
	if err != nil {
		return MigrationView{}, err
	}
	return s.view(hub.MigrationFromRow(table, *row), thresholds), nil
}

// applyValues returns a copy of the row with the written cells applied, so the
// response reflects the write without a second read.
func applyValues(table sheets.Table, rowNumber int, values map[string]string) *sheets.Row {
	for _, row := range table.Rows {
		if row.Number != rowNumber {
			continue
		}
		cells := make([]string, len(table.Headers))
		copy(cells, row.Cells)
		for header, value := range values {
			if idx := table.Lookup(header); idx >= 0 {
				cells[idx] = value
			}
		}
		return &sheets.Row{Number: row.Number, Cells: cells}
	}
	return nil
}

// CreateMigration appends a Kickoff row and announces it on the new_migration hook.
// A failed hook leaves the row in place and is reported in the result.
func (s *Service) CreateMigration(ctx context.Context, current Session, input CreateMigrationInput) (CreateMigrationResult, error) {
	owner := strings.ToLower(strings.TrimSpace(input.OwnerEmail))
	if !strings.Contains(owner, "@") {
		return CreateMigrationResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ownerEmail must be an email address", nil)
	}
	if strings.TrimSpace(input.CustomerID) == "" && strings.TrimSpace(input.CustomerName) == "" {
		return CreateMigrationResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "customerId or customerName is required", nil)
	}
	client, err := s.sheetsFor(ctx, current)
	if err != nil {
		return CreateMigrationResult{}, err
	}
	tables, err := s.readTabs(ctx, client, s.cfg.MigrationsTab, s.cfg.CustomersTab)
	if err != nil {
		return CreateMigrationResult{}, err
	}
	migrations, customers := tables[0], tables[1]

	customer, ok := findCustomer(customers, hub.Migration{
		CustomerID:   strings.ToUpper(strings.TrimSpace(input.CustomerID)),
		CustomerName: strings.TrimSpace(input.CustomerName),
	})
	if !ok {
		return CreateMigrationResult{}, domainError(http.StatusUnprocessableEntity, "UNKNOWN_CUSTOMER", "Customer not found", map[string]any{
			"customerId":   input.CustomerID,
			"customerName": input.CustomerName,
		})
	}

	id := hub.NextMigrationID(migrations.Column(hub.ColMigrationID))
	today := s.today()
	kickoffColumn := hub.StageDateColumn(hub.StageKickoff)
	values := map[string]string{
		hub.ColMigrationID: id,
		hub.ColStage:       string(hub.StageKickoff),
		hub.ColOwnerEmail:  owner,
	}
	optional := map[string]string{
		hub.ColCustomerID:   customer.ID,
		hub.ColCustomerName: customer.Name,
		hub.ColPriority:     strings.TrimSpace(input.Priority),
		hub.ColSourceSystem: strings.TrimSpace(input.SourceSystem),
		hub.ColNotes:        strings.TrimSpace(input.Notes),
		hub.ColStartDate:    today,
		kickoffColumn:       today,
		hub.ColLastUpdated:  today,
	}
	for header, value := range optional {
		if value != "" && migrations.Has(header) {
			values[header] = value
		}
	}

	writeCtx, cancel := s.sheetsContext(ctx)
	defer cancel()
	if err := client.AppendRow(writeCtx, migrations, values); err != nil {
		return CreateMigrationResult{}, err
	}

	row := sheets.Row{Number: len(migrations.Rows) + 2, Cells: make([]string, len(migrations.Headers))}
	for header, value := range values {
		row.Cells[migrations.Lookup(header)] = value
	}
	created := hub.MigrationFromRow(migrations, row)
	thresholds, _, err := s.effectiveThresholds(ctx)
	if err != nil {
		return CreateMigrationResult{}, err
	}

	outcome := s.sendHook(ctx, zapier.HookNewMigration, zapier.NewMigrationPayload{
		MigrationID:  id,
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		OwnerEmail:   owner,
		Stage:        string(hub.StageKickoff),
		SourceSystem: values[hub.ColSourceSystem],
		Priority:     values[hub.ColPriority],
		StartDate:    today,
		Notes:        values[hub.ColNotes],
		RequestedBy:  current.Email,
	})
	result := "ok"
	if !outcome.Sent {
		result = "hook_failed"
	}
	s.record(ctx, current, id, "migration.create", result, map[string]any{"customerId": customer.ID, "hook": outcome})

	return CreateMigrationResult{Migration: s.view(created, thresholds), Hook: outcome}, nil
}

// sendHook fires a webhook and folds the outcome into a HookOutcome instead of an error.
func (s *Service) sendHook(ctx context.Context, hook zapier.Hook, payload any) HookOutcome {
	outcome := HookOutcome{Hook: hook}
	resp, err := s.hooks.Send(ctx, hook, payload)
	if err != nil {
		outcome.Error = err.Error()
		var hookErr *zapier.HookError
		if errors.As(err, &hookErr) {
			outcome.Status = hookErr.Status
		}
		s.logger.Warn("webhook failed", zap.String("hook", string(hook)), zap.Error(err))
		return outcome
	}
	outcome.Sent = true
	outcome.Status = resp.Status
	outcome.Response = resp.Fields
	return outcome
}

func (s *Service) ListCustomers(ctx context.Context, current Session) ([]CustomerView, error) {
	client, err := s.sheetsFor(ctx, current)
	if err != nil {
		return nil, err
	}
	tables, err := s.readTabs(ctx, client, s.cfg.CustomersTab, s.cfg.MigrationsTab)
	if err != nil {
		return nil, err
	}
	active := map[string]int{}
	for _, m := range hub.MigrationsFromTable(tables[1]) {
		if m.Active() {
			active[customerKey(m.CustomerID, m.CustomerName)]++
		}
	}
	customers := hub.CustomersFromTable(tables[0])
	items := make([]CustomerView, 0, len(customers))
	for _, c := range customers {
		count := active[customerKey("", c.Name)]
		if c.ID != "" {
			count += active[customerKey(c.ID, "")]
		}
		items = append(items, CustomerView{Customer: c, ActiveMigrations: count})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

func customerKey(id, name string) string {
	if id != "" {
		return "id:" + strings.ToUpper(id)
	}
	return "name:" + strings.ToLower(strings.TrimSpace(name))
}

func (s *Service) GetCustomer(ctx context.Context, current Session, id string) (CustomerDetail, error) {
	client, err := s.sheetsFor(ctx, current)
	if err != nil {
		return CustomerDetail{}, err
	}
	tables, err := s.readTabs(ctx, client, s.cfg.CustomersTab, s.cfg.MigrationsTab)
	if err != nil {
		return CustomerDetail{}, err
	}
	row, ok := tables[0].FindRow(hub.ColCustomerID, id)
	if !ok {
		return CustomerDetail{}, errCustomerNotFound(id)
	}
	customer := hub.CustomerFromRow(tables[0], row)
	thresholds, _, err := s.effectiveThresholds(ctx)
	if err != nil {
		return CustomerDetail{}, err
	}
	detail := CustomerDetail{Customer: customer, Migrations: make([]MigrationView, 0)}
	for _, m := range hub.MigrationsFromTable(tables[1]) {
		sameID := m.CustomerID != "" && strings.EqualFold(m.CustomerID, customer.ID)
		sameName := m.CustomerID == "" && strings.EqualFold(m.CustomerName, customer.Name)
		if sameID || sameName {
			detail.Migrations = append(detail.Migrations, s.view(m, thresholds))
		}
	}
	return detail, nil
}

func (s *Service) CreateCustomer(ctx context.Context, current Session, input CreateCustomerInput) (hub.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return hub.Customer{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	arr := strings.TrimSpace(input.ARR)
	if arr != "" {
		if _, ok := hub.ParseNumber(arr); !ok {
			return hub.Customer{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "arr must be a number", nil)
		}
	}
	client, err := s.sheetsFor(ctx, current)
	if err != nil {
		return hub.Customer{}, err
	}
	tables, err := s.readTabs(ctx, client, s.cfg.CustomersTab)
	if err != nil {
		return hub.Customer{}, err
	}
	table := tables[0]
	if _, exists := table.FindRow(hub.ColCustomerName, name); exists {
		return hub.Customer{}, domainError(http.StatusConflict, "CUSTOMER_EXISTS", "A customer with this name already exists", map[string]any{"name": name})
	}

	id := hub.NextCustomerID(table.Column(hub.ColCustomerID))
	values := map[string]string{
		hub.ColCustomerID:   id,
		hub.ColCustomerName: name,
	}
	optional := map[string]string{
		hub.ColContactName:  strings.TrimSpace(input.ContactName),
		hub.ColContactEmail: strings.ToLower(strings.TrimSpace(input.ContactEmail)),
		hub.ColCSMEmail:     strings.ToLower(strings.TrimSpace(input.CSMEmail)),
		hub.ColRegion:       strings.TrimSpace(input.Region),
		hub.ColTier:         strings.TrimSpace(input.Tier),
		hub.ColARR:          arr,
		hub.ColNotes:        strings.TrimSpace(input.Notes),
	}
	for header, value := range optional {
		if value != "" && table.Has(header) {
			values[header] = value
		}
	}

	writeCtx, cancel := s.sheetsContext(ctx)
	defer cancel()
	if err := client.AppendRow(writeCtx, table, values); err != nil {
		return hub.Customer{}, err
	}
	s.record(ctx, current, "", "customer.create", "ok", map[string]any{"customerId": id, "name": name})

	row := sheets.Row{Number: len(table.Rows) + 2, Cells: make([]string, len(table.Headers))}
	for header, value := range values {
		row.Cells[table.Lookup(header)] = value
	}
	return hub.CustomerFromRow(table, row), nil
}

// DraftEmail asks the email_draft zap for a reply to the customer and returns what it answered.
func (s *Service) DraftEmail(ctx context.Context, current Session, id string, input DraftEmailInput) (DraftEmailResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return DraftEmailResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message is required", nil)
	}
	detail, err := s.GetMigration(ctx, current, id)
	if err != nil {
		return DraftEmailResult{}, err
	}
	payload := zapier.EmailDraftPayload{
		MigrationID:  detail.ID,
		CustomerName: detail.CustomerName,
		Stage:        string(detail.Stage),
		Status:       string(detail.Evaluation.Status),
		DaysInStage:  detail.Evaluation.DaysInStage,
		OwnerEmail:   detail.OwnerEmail,
		Subject:      strings.TrimSpace(input.Subject),
		Message:      message,
		Tone:         strings.TrimSpace(input.Tone),
		RequestedBy:  current.Email,
	}
	if detail.Customer != nil {
		payload.ContactName = detail.Customer.ContactName
		payload.ContactEmail = detail.Customer.ContactEmail
		payload.CustomerName = firstNonBlank(detail.CustomerName, detail.Customer.Name)
	}

	resp, err := s.hooks.Send(ctx, zapier.HookEmailDraft, payload)
	if err != nil {
		s.record(ctx, current, detail.ID, "migration.email_draft", "error", map[string]any{"error": err.Error()})
		return DraftEmailResult{}, err
	}
	s.record(ctx, current, detail.ID, "migration.email_draft", "ok", map[string]any{"subject": payload.Subject, "tone": payload.Tone})
	return DraftEmailResult{MigrationID: detail.ID, Draft: resp.Field("draft"), Response: resp}, nil
}

func (s *Service) ListDrafts(ctx context.Context, current Session, id string) ([]hub.Draft, error) {
	client, err := s.sheetsFor(ctx, current)
	if err != nil {
		return nil, err
	}
	tables, err := s.readTabs(ctx, client, s.cfg.DraftsTab)
	if err != nil {
		return nil, err
	}
	return hub.DraftsForMigration(tables[0], id), nil
}

// SyncGitHub pushes stage and status to the tracking issue and stamps GitHubSyncedAt.
func (s *Service) SyncGitHub(ctx context.Context, current Session, id string) (GitHubSyncResult, error) {
	client, table, err := s.loadMigrations(ctx, current)
	if err != nil {
		return GitHubSyncResult{}, err
	}
	m, ok := findMigration(table, id)
	if !ok {
		return GitHubSyncResult{}, errMigrationNotFound(id)
	}
	thresholds, _, err := s.effectiveThresholds(ctx)
	if err != nil {
		return GitHubSyncResult{}, err
	}
	view := s.view(m, thresholds)

	resp, err := s.hooks.Send(ctx, zapier.HookGitHubSync, zapier.GitHubSyncPayload{
		MigrationID:  m.ID,
		CustomerName: m.CustomerName,
		GitHubIssue:  m.GitHubIssue,
		Stage:        string(firstNonBlankStage(m)),
		Status:       string(view.Evaluation.Status),
		DaysInStage:  view.Evaluation.DaysInStage,
		OwnerEmail:   m.OwnerEmail,
		RequestedBy:  current.Email,
	})
	if err != nil {
		s.record(ctx, current, m.ID, "migration.github_sync", "error", map[string]any{"error": err.Error()})
		return GitHubSyncResult{}, err
	}

	values := map[string]string{}
	if table.Has(hub.ColGitHubSyncedAt) {
		values[hub.ColGitHubSyncedAt] = s.today()
	}
	if issue := firstNonBlank(resp.Field("issueUrl"), resp.Field("githubIssue")); issue != "" && m.GitHubIssue == "" && table.Has(hub.ColGitHubIssue) {
		values[hub.ColGitHubIssue] = issue
	}
	if len(values) == 0 {
		s.record(ctx, current, m.ID, "migration.github_sync", "ok", nil)
		return GitHubSyncResult{Migration: view, Response: resp}, nil
	}
	updated, err := s.writeMigration(ctx, current, client, table, m, values, "migration.github_sync")
	if err != nil {
		return GitHubSyncResult{}, err
	}
	return GitHubSyncResult{Migration: updated, Response: resp}, nil
}

func firstNonBlankStage(m hub.Migration) hub.Stage {
	if m.Stage != "" {
		return m.Stage
	}
	return hub.Stage(m.RawStage)
}
