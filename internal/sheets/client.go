package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownColumn is returned when a write names a header the tab does not carry.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrRowNotFound is returned when no row matches a lookup.
	ErrRowNotFound = errors.New("row not found")
)

// CellUpdate is a single A1-addressed cell write.
type CellUpdate struct {
	Range string
	Value string
}

// ValuesAPI is the slice of the Sheets values API the hub needs.
type ValuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	BatchUpdate(ctx context.Context, spreadsheetID string, updates []CellUpdate) error
	Append(ctx context.Context, spreadsheetID, rng string, row []string) error
	Ping(ctx context.Context, spreadsheetID string) error
}

// Client addresses one spreadsheet.
type Client struct {
	api           ValuesAPI
	spreadsheetID string
}

func NewClient(api ValuesAPI, spreadsheetID string) *Client {
	return &Client{api: api, spreadsheetID: spreadsheetID}
}

func (c *Client) SpreadsheetID() string {
	return c.spreadsheetID
}

// ReadTab fetches a whole tab. The first row is treated as the header row.
func (c *Client) ReadTab(ctx context.Context, tab string) (Table, error) {
	values, err := c.api.Get(ctx, c.spreadsheetID, quoteTab(tab))
	if err != nil {
		return Table{}, fmt.Errorf("read tab %s: %w", tab, err)
	}
	return buildTable(tab, values), nil
}

// UpdateCells writes values into one row, addressed by header name, in a single batch.
func (c *Client) UpdateCells(ctx context.Context, table Table, rowNumber int, values map[string]string) error {
	if rowNumber < 2 {
		return fmt.Errorf("update %s row %d: %w", table.Tab, rowNumber, ErrRowNotFound)
	}
	updates := make([]CellUpdate, 0, len(values))
	for header, value := range values {
		idx := table.Lookup(header)
		if idx < 0 {
			return fmt.Errorf("update %s: %w: %s", table.Tab, ErrUnknownColumn, header)
		}
		updates = append(updates, CellUpdate{Range: CellRange(table.Tab, idx, rowNumber), Value: value})
	}
	if len(updates) == 0 {
		return nil
	}
	if err := c.api.BatchUpdate(ctx, c.spreadsheetID, updates); err != nil {
		return fmt.Errorf("update %s row %d: %w", table.Tab, rowNumber, err)
	}
	return nil
}

// AppendRow appends one row ordered by the tab's header row. Headers absent from the tab are
// rejected so a typo never silently drops a value.
func (c *Client) AppendRow(ctx context.Context, table Table, values map[string]string) error {
	if len(table.Headers) == 0 {
		return fmt.Errorf("append %s: tab has no header row", table.Tab)
	}
	row := make([]string, len(table.Headers))
	for header, value := range values {
		idx := table.Lookup(header)
		if idx < 0 {
			return fmt.Errorf("append %s: %w: %s", table.Tab, ErrUnknownColumn, header)
		}
		row[idx] = value
	}
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	if err := c.api.Append(ctx, c.spreadsheetID, quoteTab(table.Tab)+"!A1", row[:end]); err != nil {
		return fmt.Errorf("append %s: %w", table.Tab, err)
	}
	return nil
}

// Ping checks the spreadsheet is reachable with the current credentials.
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Ping(ctx, c.spreadsheetID)
}
