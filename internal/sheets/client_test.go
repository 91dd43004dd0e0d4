package sheets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValues struct {
	values      [][]string
	getErr      error
	gotRange    string
	updates     []CellUpdate
	appendRange string
	appended    []string
}

func (f *fakeValues) Get(_ context.Context, _, rng string) ([][]string, error) {
	f.gotRange = rng
	return f.values, f.getErr
}

func (f *fakeValues) BatchUpdate(_ context.Context, _ string, updates []CellUpdate) error {
	f.updates = append(f.updates, updates...)
	return nil
}

func (f *fakeValues) Append(_ context.Context, _, rng string, row []string) error {
	f.appendRange = rng
	f.appended = row
	return nil
}

func (f *fakeValues) Ping(context.Context, string) error { return nil }

func TestReadTab(t *testing.T) {
	api := &fakeValues{values: [][]string{{"MigrationID", "Stage"}, {"M-0001", "Kickoff"}}}
	client := NewClient(api, "sheet-1")

	table, err := client.ReadTab(context.Background(), "MH_View_Migrations")
	require.NoError(t, err)
	assert.Equal(t, "'MH_View_Migrations'", api.gotRange)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Kickoff", table.Rows[0].Get(table, "stage"))
}

func TestReadTabWrapsError(t *testing.T) {
	boom := errors.New("boom")
	client := NewClient(&fakeValues{getErr: boom}, "sheet-1")
	_, err := client.ReadTab(context.Background(), "Tab")
	require.ErrorIs(t, err, boom)
}

func TestUpdateCells(t *testing.T) {
	api := &fakeValues{}
	client := NewClient(api, "sheet-1")
	table := buildTable("Tab", [][]string{{"MigrationID", "Stage", "BTC"}})

	err := client.UpdateCells(context.Background(), table, 4, map[string]string{"OwnerEmail": "bo@example.com"})
	require.NoError(t, err)
	require.Len(t, api.updates, 1)
	assert.Equal(t, CellUpdate{Range: "'Tab'!C4", Value: "bo@example.com"}, api.updates[0])

	err = client.UpdateCells(context.Background(), table, 4, map[string]string{"Priority": "High"})
	require.ErrorIs(t, err, ErrUnknownColumn)

	err = client.UpdateCells(context.Background(), table, 1, map[string]string{"Stage": "x"})
	require.ErrorIs(t, err, ErrRowNotFound)
}

func TestAppendRowOrdersByHeader(t *testing.T) {
	api := &fakeValues{}
	client := NewClient(api, "sheet-1")
	table := buildTable("Tab", [][]string{{"MigrationID", "Stage", "Notes"}})

	err := client.AppendRow(context.Background(), table, map[string]string{"Stage": "Kickoff", "id": "M-0007"})
	require.NoError(t, err)
	assert.Equal(t, "'Tab'!A1", api.appendRange)
	assert.Equal(t, []string{"M-0007", "Kickoff"}, api.appended)

	err = client.AppendRow(context.Background(), Table{Tab: "Empty"}, map[string]string{"a": "b"})
	require.Error(t, err)
}
