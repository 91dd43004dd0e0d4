// Package sheets reads and writes Google Sheets tabs as header-addressed tables.
package sheets

import (
	"strconv"
	"strings"
	"unicode"
)

// Table is one tab: the header row plus every data row below it.
type Table struct {
	Tab     string
	Headers []string
	Rows    []Row
}

// Row is a data row. Number is the 1-based sheet row; the header is row 1.
type Row struct {
	Number int
	Cells  []string
}

// aliases folds alternative header spellings onto one canonical key.
var aliases = map[string]string{
	"id":             "migrationid",
	"migration":      "migrationid",
	"btc":            "owneremail",
	"owner":          "owneremail",
	"ownername":      "owneremail",
	"btcemail":       "owneremail",
	"engineer":       "owneremail",
	"customer":       "customername",
	"account":        "customername",
	"accountname":    "customername",
	"custid":         "customerid",
	"accountid":      "customerid",
	"currentstage":   "stage",
	"status":         "stage",
	"github":         "githubissue",
	"githuburl":      "githubissue",
	"issue":          "githubissue",
	"source":         "sourcesystem",
	"ats":            "sourcesystem",
	"updated":        "lastupdated",
	"lastmodified":   "lastupdated",
	"started":        "startdate",
	"kickoff":        "kickoffdate",
	"contact":        "contactname",
	"primarycontact": "contactname",
	"primaryemail":   "contactemail",
	"csm":            "csmemail",
	"accountmanager": "csmemail",
	"completiondate": "completeddate",
	"golivedate":     "completeddate",
	"datauploaddate": "datarequesteddate",
	"datareceived":   "datareceiveddate",
	"reviewdate":     "reviewstartdate",
	"finalimport":    "finalimportdate",
	"mappingdate":    "mappingstartdate",
	"githubsynced":   "githubsyncedat",
	"githubsyncdate": "githubsyncedat",
	"draft":          "draftbody",
	"body":           "draftbody",
	"reply":          "draftbody",
	"timestamp":      "createdat",
	"created":        "createdat",
	"requester":      "requestedby",
}

// NormalizeHeader lower-cases a header and strips everything but letters and digits.
func NormalizeHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func canonicalHeader(header string) string {
	key := NormalizeHeader(header)
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return key
}

// Lookup returns the column index for header, or -1. An exact normalised match wins over an
// alias match so that a sheet carrying both "Status" and "Stage" resolves each to itself.
func (t Table) Lookup(header string) int {
	want := NormalizeHeader(header)
	for i, h := range t.Headers {
		if NormalizeHeader(h) == want {
			return i
		}
	}
	canonical := canonicalHeader(header)
	for i, h := range t.Headers {
		if canonicalHeader(h) == canonical {
			return i
		}
	}
	return -1
}

// Has reports whether the tab carries a column for header.
func (t Table) Has(header string) bool {
	return t.Lookup(header) >= 0
}

// Get returns the trimmed cell under header, or "" when the column or cell is missing.
func (r Row) Get(t Table, header string) string {
	idx := t.Lookup(header)
	if idx < 0 || idx >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[idx])
}

// Empty reports whether every cell is blank.
func (r Row) Empty() bool {
	for _, cell := range r.Cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// FindRow returns the first row whose cell under header equals value, ignoring case and
// surrounding space.
func (t Table) FindRow(header, value string) (Row, bool) {
	want := strings.TrimSpace(value)
	if want == "" {
		return Row{}, false
	}
	for _, row := range t.Rows {
		if strings.EqualFold(row.Get(t, header), want) {
			return row, true
		}
	}
	return Row{}, false
}

// Column returns every non-blank value under header in row order.
func (t Table) Column(header string) []string {
	var out []string
	for _, row := range t.Rows {
		if v := row.Get(t, header); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ColumnLetter converts a 0-based column index to A1 letters: 0 is A, 26 is AA.
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var letters []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		letters = append([]byte{byte('A' + (n-1)%26)}, letters...)
	}
	return string(letters)
}

// CellRange returns the A1 range of a single cell, quoting the tab name.
func CellRange(tab string, column, rowNumber int) string {
	return quoteTab(tab) + "!" + ColumnLetter(column) + strconv.Itoa(rowNumber)
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// buildTable turns raw values (header first) into a Table. Short rows are padded to the
// header width and trailing blank rows are dropped.
func buildTable(tab string, values [][]string) Table {
	table := Table{Tab: tab}
	if len(values) == 0 {
		return table
	}
	for _, h := range values[0] {
		table.Headers = append(table.Headers, strings.TrimSpace(h))
	}
	for i, raw := range values[1:] {
		cells := make([]string, len(table.Headers))
		copy(cells, raw)
		table.Rows = append(table.Rows, Row{Number: i + 2, Cells: cells})
	}
	for len(table.Rows) > 0 && table.Rows[len(table.Rows)-1].Empty() {
		table.Rows = table.Rows[:len(table.Rows)-1]
	}
	return table
}
