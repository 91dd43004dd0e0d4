package search

import (
	"sort"
	"strings"
)

// Memory searches a corpus already held in memory. It backs the search
// endpoint whenever Meilisearch is absent or unhealthy.
type Memory struct {
	corpus Corpus
}

func NewMemory(c Corpus) *Memory {
	return &Memory{corpus: c}
}

func (m *Memory) Healthy() bool { return true }

// Search matches when every whitespace separated term occurs, case
// insensitively, somewhere in the entity's fields. Exact id hits rank first.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	type scored struct {
		result Result
		exact  bool
	}
	var hits []scored

	if q.FilterType == "" || q.FilterType == ResultMigration {
		for _, rec := range m.corpus.Migrations {
			fields := []string{rec.ID, rec.CustomerName, rec.CustomerID, rec.OwnerEmail, rec.Stage, rec.SourceSystem, rec.Priority, rec.GitHubIssue, rec.Notes}
			snippet, ok := matchAll(terms, fields)
			if !ok {
				continue
			}
			hits = append(hits, scored{
				result: Result{
					Type:    ResultMigration,
					ID:      rec.ID,
					Title:   migrationTitle(rec.ID, rec.CustomerName),
					Snippet: snippet,
					Stage:   rec.Stage,
					Owner:   rec.OwnerEmail,
				},
				exact: strings.EqualFold(rec.ID, q.Text),
			})
		}
	}
	if q.FilterType == "" || q.FilterType == ResultCustomer {
		for _, rec := range m.corpus.Customers {
			fields := []string{rec.ID, rec.Name, rec.ContactName, rec.ContactEmail, rec.CSMEmail, rec.Region, rec.Tier}
			snippet, ok := matchAll(terms, fields)
			if !ok {
				continue
			}
			hits = append(hits, scored{
				result: Result{Type: ResultCustomer, ID: rec.ID, Title: rec.Name, Snippet: snippet},
				exact:  strings.EqualFold(rec.ID, q.Text),
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].exact && !hits[j].exact
	})

	total := len(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, h.result)
	}
	return results, total, nil
}

// matchAll reports whether every term is found, returning the first field
// that contained the first term as the snippet.
func matchAll(terms []string, fields []string) (string, bool) {
	lowered := make([]string, len(fields))
	for i, f := range fields {
		lowered[i] = strings.ToLower(f)
	}
	haystack := strings.Join(lowered, "\n")
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return "", false
		}
	}
	for i, f := range lowered {
		if strings.Contains(f, terms[0]) {
			return fields[i], true
		}
	}
	return "", true
}
