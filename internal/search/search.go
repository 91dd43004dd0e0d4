package search

import (
	"strings"

	"migrationhub/api/internal/hub"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultMigration ResultType = "migration"
	ResultCustomer  ResultType = "customer"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Stage   string     `json:"stage,omitempty"`
	Owner   string     `json:"owner,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// MigrationRecord is the data we index for a migration row.
type MigrationRecord struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	Stage        string `json:"stage"`
	OwnerEmail   string `json:"ownerEmail"`
	SourceSystem string `json:"sourceSystem"`
	Priority     string `json:"priority"`
	Notes        string `json:"notes"`
	GitHubIssue  string `json:"githubIssue"`
}

// CustomerRecord is the data we index for a customer row.
type CustomerRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	CSMEmail     string `json:"csmEmail"`
	Region       string `json:"region"`
	Tier         string `json:"tier"`
}

// Corpus is everything searchable, read fresh from the sheet.
type Corpus struct {
	Migrations []MigrationRecord
	Customers  []CustomerRecord
}

func NewCorpus(migrations []hub.Migration, customers []hub.Customer) Corpus {
	c := Corpus{
		Migrations: make([]MigrationRecord, 0, len(migrations)),
		Customers:  make([]CustomerRecord, 0, len(customers)),
	}
	for _, m := range migrations {
		stage := string(m.Stage)
		if stage == "" {
			stage = m.RawStage
		}
		c.Migrations = append(c.Migrations, MigrationRecord{
			ID:           m.ID,
			CustomerID:   m.CustomerID,
			CustomerName: m.CustomerName,
			Stage:        stage,
			OwnerEmail:   m.OwnerEmail,
			SourceSystem: m.SourceSystem,
			Priority:     m.Priority,
			Notes:        m.Notes,
			GitHubIssue:  m.GitHubIssue,
		})
	}
	for _, cu := range customers {
		c.Customers = append(c.Customers, CustomerRecord{
			ID:           cu.ID,
			Name:         cu.Name,
			ContactName:  cu.ContactName,
			ContactEmail: cu.ContactEmail,
			CSMEmail:     cu.CSMEmail,
			Region:       cu.Region,
			Tier:         cu.Tier,
		})
	}
	return c
}

func migrationTitle(id, customer string) string {
	return strings.TrimSpace(id + " " + customer)
}
