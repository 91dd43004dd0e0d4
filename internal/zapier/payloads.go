package zapier

// NewMigrationPayload announces a freshly appended migration row so the zap can open the
// GitHub issue.
type NewMigrationPayload struct {
	MigrationID  string `json:"migrationId"`
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	OwnerEmail   string `json:"ownerEmail"`
	Stage        string `json:"stage"`
	SourceSystem string `json:"sourceSystem,omitempty"`
	Priority     string `json:"priority,omitempty"`
	StartDate    string `json:"startDate"`
	Notes        string `json:"notes,omitempty"`
	RequestedBy  string `json:"requestedBy"`
}

// EmailDraftPayload asks the zap for an AI-drafted reply.
type EmailDraftPayload struct {
	MigrationID  string `json:"migrationId"`
	CustomerName string `json:"customerName"`
	ContactName  string `json:"contactName,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	Stage        string `json:"stage"`
	Status       string `json:"status"`
	DaysInStage  int    `json:"daysInStage"`
	OwnerEmail   string `json:"ownerEmail"`
	Subject      string `json:"subject,omitempty"`
	Message      string `json:"message"`
	Tone         string `json:"tone,omitempty"`
	RequestedBy  string `json:"requestedBy"`
}

// GitHubSyncPayload pushes the current stage and SLA status onto the tracking issue.
type GitHubSyncPayload struct {
	MigrationID  string `json:"migrationId"`
	CustomerName string `json:"customerName"`
	GitHubIssue  string `json:"githubIssue"`
	Stage        string `json:"stage"`
	Status       string `json:"status"`
	DaysInStage  int    `json:"daysInStage"`
	OwnerEmail   string `json:"ownerEmail"`
	RequestedBy  string `json:"requestedBy"`
}
