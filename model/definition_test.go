package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridDefinition_DefaultSorting(t *testing.T) {
	g := GridDefinition{DefaultSort: "created_at", SortDir: "sideways"}
	got := g.DefaultSorting()
	if assert.Len(t, got, 1) {
		assert.Equal(t, SortAsc, got[0].Direction, "unknown direction falls back to asc")
	}
	assert.Nil(t, GridDefinition{}.DefaultSorting())
}

func TestGridDefinition_AllowsExport(t *testing.T) {
	assert.True(t, GridDefinition{}.AllowsExport(FormatPDF), "empty export list allows every format")

	g := GridDefinition{Exports: []ExportFormat{FormatCSV}}
	assert.True(t, g.AllowsExport(FormatCSV))
	assert.False(t, g.AllowsExport(FormatXLSX))
}

func TestColumnDef_defaults(t *testing.T) {
	c := ColumnDef{ID: "total"}
	assert.True(t, c.CanHide(), "hideable by default")
	assert.Equal(t, "total", c.SourceColumn())

	no := false
	c = ColumnDef{ID: "total", Column: "order_total", Hideable: &no}
	assert.False(t, c.CanHide())
	assert.Equal(t, "order_total", c.SourceColumn())
}
