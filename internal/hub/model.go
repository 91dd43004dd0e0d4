package hub

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"migrationhub/api/internal/sheets"
)

// Column headers the hub reads and writes.
const (
	ColMigrationID    = "MigrationID"
	ColCustomerID     = "CustomerID"
	ColCustomerName   = "CustomerName"
	ColStage          = "Stage"
	ColOwnerEmail     = "OwnerEmail"
	ColPriority       = "Priority"
	ColSourceSystem   = "SourceSystem"
	ColGitHubIssue    = "GitHubIssue"
	ColNotes          = "Notes"
	ColStartDate      = "StartDate"
	ColLastUpdated    = "LastUpdated"
	ColGitHubSyncedAt = "GitHubSyncedAt"

	ColContactName  = "ContactName"
	ColContactEmail = "ContactEmail"
	ColCSMEmail     = "CSMEmail"
	ColRegion       = "Region"
	ColTier         = "Tier"
	ColARR          = "ARR"

	ColDraftCreatedAt = "CreatedAt"
	ColDraftSubject   = "Subject"
	ColDraftBody      = "DraftBody"
	ColDraftStatus    = "DraftStatus"
	ColRequestedBy    = "RequestedBy"
)

type Migration struct {
	ID             string              `json:"migrationId"`
	CustomerID     string              `json:"customerId"`
	CustomerName   string              `json:"customerName"`
	Stage          Stage               `json:"stage"`
	RawStage       string              `json:"rawStage,omitempty"`
	OwnerEmail     string              `json:"ownerEmail"`
	Priority       string              `json:"priority,omitempty"`
	SourceSystem   string              `json:"sourceSystem,omitempty"`
	GitHubIssue    string              `json:"githubIssue,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	StartDate      *time.Time          `json:"startDate,omitempty"`
	StageDates     map[Stage]time.Time `json:"stageDates,omitempty"`
	LastUpdated    *time.Time          `json:"lastUpdated,omitempty"`
	GitHubSyncedAt *time.Time          `json:"githubSyncedAt,omitempty"`
	RowNumber      int                 `json:"-"`
}

// Active reports whether the migration is still workload. Stage text that
// matched no known stage counts too; only Complete, On Hold and Cancelled leave.
func (m Migration) Active() bool {
	return IsActive(m.Stage) || (m.Stage == "" && m.RawStage != "")
}

type Customer struct {
	ID           string  `json:"customerId"`
	Name         string  `json:"name"`
	ContactName  string  `json:"contactName,omitempty"`
	ContactEmail string  `json:"contactEmail,omitempty"`
	CSMEmail     string  `json:"csmEmail,omitempty"`
	Region       string  `json:"region,omitempty"`
	Tier         string  `json:"tier,omitempty"`
	ARR          float64 `json:"arr,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	RowNumber    int     `json:"-"`
}

// Draft is an AI-drafted email reply the email zap wrote back into the drafts tab.
type Draft struct {
	MigrationID string     `json:"migrationId"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body"`
	Status      string     `json:"status,omitempty"`
	RequestedBy string     `json:"requestedBy,omitempty"`
	RowNumber   int        `json:"-"`
}

// MigrationFromRow coerces one sheet row. The stage is normalised when recognised; the raw
// text is kept either way so an unexpected value is never lost.
func MigrationFromRow(t sheets.Table, row sheets.Row) Migration {
	m := Migration{
		ID:           strings.ToUpper(row.Get(t, ColMigrationID)),
		CustomerID:   row.Get(t, ColCustomerID),
		CustomerName: row.Get(t, ColCustomerName),
		OwnerEmail:   normalizeEmail(row.Get(t, ColOwnerEmail)),
		Priority:     row.Get(t, ColPriority),
		SourceSystem: row.Get(t, ColSourceSystem),
		GitHubIssue:  row.Get(t, ColGitHubIssue),
		Notes:        row.Get(t, ColNotes),
		RowNumber:    row.Number,
	}
	raw := row.Get(t, ColStage)
	if stage, ok := NormalizeStage(raw); ok {
		m.Stage = stage
	} else {
		m.RawStage = raw
	}
	m.StartDate = datePtr(row.Get(t, ColStartDate))
	m.LastUpdated = datePtr(row.Get(t, ColLastUpdated))
	m.GitHubSyncedAt = datePtr(row.Get(t, ColGitHubSyncedAt))
	for _, stage := range AllStages() {
		if d, ok := ParseDate(row.Get(t, StageDateColumn(stage))); ok {
			if m.StageDates == nil {
				m.StageDates = make(map[Stage]time.Time)
			}
			m.StageDates[stage] = d
		}
	}
	if m.StartDate == nil {
		if d, ok := m.StageDates[StageKickoff]; ok {
			m.StartDate = &d
		}
	}
	return m
}

// MigrationsFromTable converts every row carrying a MigrationID.
func MigrationsFromTable(t sheets.Table) []Migration {
	out := make([]Migration, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := MigrationFromRow(t, row)
		if m.ID == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func CustomerFromRow(t sheets.Table, row sheets.Row) Customer {
	c := Customer{
		ID:           strings.ToUpper(row.Get(t, ColCustomerID)),
		Name:         row.Get(t, ColCustomerName),
		ContactName:  row.Get(t, ColContactName),
		ContactEmail: normalizeEmail(row.Get(t, ColContactEmail)),
		CSMEmail:     normalizeEmail(row.Get(t, ColCSMEmail)),
		Region:       row.Get(t, ColRegion),
		Tier:         row.Get(t, ColTier),
		Notes:        row.Get(t, ColNotes),
		RowNumber:    row.Number,
	}
	if arr, ok := ParseNumber(row.Get(t, ColARR)); ok {
		c.ARR = arr
	}
	return c
}

// CustomersFromTable converts every row carrying a CustomerID or name.
func CustomersFromTable(t sheets.Table) []Customer {
	out := make([]Customer, 0, len(t.Rows))
	for _, row := range t.Rows {
		c := CustomerFromRow(t, row)
		if c.ID == "" && c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// DraftsForMigration lists the drafts written for one migration, newest row first.
func DraftsForMigration(t sheets.Table, migrationID string) []Draft {
	out := make([]Draft, 0)
	for i := len(t.Rows) - 1; i >= 0; i-- {
		row := t.Rows[i]
		if !strings.EqualFold(row.Get(t, ColMigrationID), migrationID) {
			continue
		}
		out = append(out, Draft{
			MigrationID: strings.ToUpper(row.Get(t, ColMigrationID)),
			CreatedAt:   datePtr(row.Get(t, ColDraftCreatedAt)),
			Subject:     row.Get(t, ColDraftSubject),
			Body:        row.Get(t, ColDraftBody),
			Status:      row.Get(t, ColDraftStatus),
			RequestedBy: normalizeEmail(row.Get(t, ColRequestedBy)),
			RowNumber:   row.Number,
		})
	}
	return out
}

// StageEnteredAt is when the migration entered its current stage: the stage date column,
// else LastUpdated, else StartDate.
func (m Migration) StageEnteredAt() (time.Time, bool) {
	if d, ok := m.StageDates[m.Stage]; ok {
		return d, true
	}
	if m.LastUpdated != nil {
		return *m.LastUpdated, true
	}
	if m.StartDate != nil {
		return *m.StartDate, true
	}
	return time.Time{}, false
}

// DaysInStage is the whole days spent in the current stage, or -1 when no date is known.
func (m Migration) DaysInStage(now time.Time) int {
	entered, ok := m.StageEnteredAt()
	if !ok {
		return -1
	}
	days := DaysBetween(entered, now)
	if days < 0 {
		return 0
	}
	return days
}

// CompletedAt is the CompletedDate when the migration is complete.
func (m Migration) CompletedAt() (time.Time, bool) {
	if m.Stage != StageComplete {
		return time.Time{}, false
	}
	d, ok := m.StageDates[StageComplete]
	return d, ok
}

// StageCells are the cells written when a migration enters stage on day: the stage itself,
// its date column and LastUpdated. Columns the tab lacks are skipped.
func StageCells(t sheets.Table, stage Stage, day time.Time) map[string]string {
	cells := map[string]string{ColStage: string(stage)}
	stamp := FormatDate(day)
	if column := StageDateColumn(stage); column != "" && t.Has(column) {
		cells[column] = stamp
	}
	if t.Has(ColLastUpdated) {
		cells[ColLastUpdated] = stamp
	}
	return cells
}

// NextMigrationID returns max(existing)+1 in M-XXXX form. Unparseable ids are ignored.
func NextMigrationID(existing []string) string {
	return nextID("M", existing)
}

// NextCustomerID returns max(existing)+1 in C-XXXX form.
func NextCustomerID(existing []string) string {
	return nextID("C", existing)
}

func nextID(prefix string, existing []string) string {
	highest := 0
	for _, id := range existing {
		id = strings.ToUpper(strings.TrimSpace(id))
		if !strings.HasPrefix(id, prefix+"-") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix+"-"))
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, highest+1)
}

func datePtr(raw string) *time.Time {
	d, ok := ParseDate(raw)
	if !ok {
		return nil
	}
	return &d
}
