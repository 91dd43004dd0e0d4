package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"migrationhub/api/internal/hub"
)

func fixtureCorpus() Corpus {
	return NewCorpus(
		[]hub.Migration{
			{ID: "M-0001", CustomerID: "C-0001", CustomerName: "Acme Corp", Stage: hub.StageKickoff, OwnerEmail: "ana@example.com", SourceSystem: "Salesforce"},
			{ID: "M-0002", CustomerID: "C-0002", CustomerName: "Globex", RawStage: "Paused?", OwnerEmail: "ben@example.com", Notes: "Waiting for acme style mapping"},
			{ID: "M-0010", CustomerID: "C-0001", CustomerName: "Acme Corp", Stage: hub.StageComplete, OwnerEmail: "ana@example.com"},
		},
		[]hub.Customer{
			{ID: "C-0001", Name: "Acme Corp", ContactName: "Wile E.", Region: "NA"},
			{ID: "C-0002", Name: "Globex", ContactName: "Hank", Region: "EU"},
		},
	)
}

func TestNewCorpusKeepsRawStage(t *testing.T) {
	c := fixtureCorpus()
	require.Len(t, c.Migrations, 3)
	assert.Equal(t, "Kickoff", c.Migrations[0].Stage)
	assert.Equal(t, "Paused?", c.Migrations[1].Stage)
}

func TestMemorySearchMatchesAllTerms(t *testing.T) {
	m := NewMemory(fixtureCorpus())

	results, total, err := m.Search(Query{Text: "acme ana"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, r := range results {
		assert.Equal(t, ResultMigration, r.Type)
	}

	results, total, err = m.Search(Query{Text: "acme"})
	require.NoError(t, err)
	// Two Acme migrations, Globex's notes mention acme, and the Acme customer.
	assert.Equal(t, 4, total)
	assert.Len(t, results, 4)
}

func TestMemorySearchFilterAndExactID(t *testing.T) {
	m := NewMemory(fixtureCorpus())

	results, _, err := m.Search(Query{Text: "c-0001", FilterType: ResultCustomer})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Acme Corp", results[0].Title)

	results, _, err = m.Search(Query{Text: "m-0001"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "M-0001", results[0].ID)
	assert.Equal(t, "M-0001 Acme Corp", results[0].Title)
}

func TestMemorySearchBlankAndLimit(t *testing.T) {
	m := NewMemory(fixtureCorpus())

	results, total, err := m.Search(Query{Text: "   "})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, total)

	results, total, err = m.Search(Query{Text: "example.com", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, results, 1)
}

type fakeIndex struct {
	healthy  bool
	searchFn func(q Query) ([]Result, int, error)
	replaced *Corpus
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(q Query) ([]Result, int, error) {
	return f.searchFn(q)
}

func (f *fakeIndex) Replace(c Corpus) error {
	f.replaced = &c
	return nil
}

func TestServiceUsesHealthyIndex(t *testing.T) {
	idx := &fakeIndex{healthy: true, searchFn: func(q Query) ([]Result, int, error) {
		return []Result{{Type: ResultMigration, ID: "M-0001"}}, 1, nil
	}}
	svc := NewService(idx, nil)

	resp, err := svc.Search(context.Background(), Query{Text: "x"}, func(context.Context) (Corpus, error) {
		t.Fatal("loader should not run when the index answers")
		return Corpus{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, EngineMeili, resp.Engine)
	assert.Equal(t, 1, resp.Total)
}

func TestServiceFallsBackToMemory(t *testing.T) {
	idx := &fakeIndex{healthy: true, searchFn: func(q Query) ([]Result, int, error) {
		return nil, 0, errors.New("boom")
	}}
	svc := NewService(idx, nil)

	resp, err := svc.Search(context.Background(), Query{Text: "globex"}, func(context.Context) (Corpus, error) {
		return fixtureCorpus(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, EngineMemory, resp.Engine)
	assert.Equal(t, 2, resp.Total)

	_, err = NewService(nil, nil).Search(context.Background(), Query{Text: "x"}, func(context.Context) (Corpus, error) {
		return Corpus{}, errors.New("sheet down")
	})
	assert.EqualError(t, err, "sheet down")
}

func TestServiceReindex(t *testing.T) {
	loader := func(context.Context) (Corpus, error) { return fixtureCorpus(), nil }

	done, err := NewService(nil, nil).Reindex(context.Background(), loader)
	require.NoError(t, err)
	assert.False(t, done)

	idx := &fakeIndex{healthy: true}
	done, err = NewService(idx, nil).Reindex(context.Background(), loader)
	require.NoError(t, err)
	assert.True(t, done)
	require.NotNil(t, idx.replaced)
	assert.Len(t, idx.replaced.Customers, 2)
}
