package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	schemas map[string][]string
	order   []string
	columns map[string][]ColumnDef
	failOn  string
}

func (f *fakeSource) SchemaNames(_ context.Context, _ string) ([]string, error) {
	if f.failOn == "schemas" {
		return nil, errors.New("locked")
	}
	return f.order, nil
}

func (f *fakeSource) TableNames(_ context.Context, _, schema string) ([]string, error) {
	return f.schemas[schema], nil
}

func (f *fakeSource) TableDefinition(_ context.Context, _, schema, table string) ([]ColumnDef, error) {
	if f.failOn == schema+"."+table {
		return nil, errors.New("corrupt")
	}
	return f.columns[schema+"."+table], nil
}

func TestReadBuildsSnapshotInCatalogOrder(t *testing.T) {
	src := &fakeSource{
		order:   []string{"Extract", "public"},
		schemas: map[string][]string{"Extract": {"Orders", "Items"}, "public": {"t"}},
		columns: map[string][]ColumnDef{
			"Extract.Orders": {{Name: "id", Type: "BIGINT"}, {Name: "name", Type: "VARCHAR", Nullable: true}},
			"Extract.Items":  {{Name: "sku", Type: "VARCHAR"}},
			"public.t":       {{Name: "x", Type: "INTEGER", Nullable: true}},
		},
	}

	snap, err := Read(context.Background(), src, "a")
	require.NoError(t, err)
	require.Len(t, snap.Schemas, 2)
	assert.Equal(t, "Extract", snap.Schemas[0].Name)
	assert.Equal(t, []string{"Orders", "Items"}, []string{snap.Schemas[0].Tables[0].Name, snap.Schemas[0].Tables[1].Name})
	assert.Equal(t, 3, snap.TableCount())

	orders := snap.Table("extract", "ORDERS")
	require.NotNil(t, orders)
	assert.Equal(t, "Extract", orders.Schema)
	assert.Equal(t, []string{"id", "name"}, orders.ColumnNames())
	assert.True(t, orders.HasColumn("NAME"))
	assert.Nil(t, snap.Table("Extract", "missing"))
}

func TestReadWrapsFailures(t *testing.T) {
	src := &fakeSource{
		order:   []string{"s"},
		schemas: map[string][]string{"s": {"bad"}},
		failOn:  "s.bad",
	}
	_, err := Read(context.Background(), src, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe a.s.bad")

	src.failOn = "schemas"
	_, err = Read(context.Background(), src, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list schemas of a")
}

func TestColumnDefEqual(t *testing.T) {
	base := ColumnDef{Name: "x", Type: "BIGINT", Nullable: true}

	assert.True(t, base.Equal(ColumnDef{Name: "X", Type: "bigint", Nullable: true}))
	assert.False(t, base.Equal(ColumnDef{Name: "x", Type: "VARCHAR", Nullable: true}))
	assert.False(t, base.Equal(ColumnDef{Name: "x", Type: "BIGINT", Nullable: false}))
	assert.False(t, base.Equal(ColumnDef{Name: "x", Type: "BIGINT", Nullable: true, Collation: "nocase"}))
}

func TestNilSnapshotLookup(t *testing.T) {
	var s *Snapshot
	assert.Nil(t, s.Table("a", "b"))
}
