package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// writeTestWorkbook builds a small XLSX file on disk and returns its path.
func writeTestWorkbook(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, row := range rows {
			r := sheet.AddRow()
			for _, cell := range row {
				r.AddCell().SetString(cell)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeTestWorkbook(t, map[string][][]string{
		"Catalog": {
			{"name", "city"},
			{"Cornell University", "Ithaca"},
			{"MIT", "Cambridge"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "city"}, rows[0])
	assert.Equal(t, []string{"MIT", "Cambridge"}, rows[2])
}

func TestReadXLSXSkipRows(t *testing.T) {
	path := writeTestWorkbook(t, map[string][][]string{
		"Catalog": {
			{"Exported 2026-08-01"},
			{"name", "city"},
			{"MIT", "Cambridge"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"name", "city"}, rows[0])
}

func TestReadXLSXSheetByName(t *testing.T) {
	path := writeTestWorkbook(t, map[string][][]string{
		"Notes":   {{"scratch"}},
		"Catalog": {{"name"}, {"MIT"}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Catalog"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "MIT", rows[1][0])

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	assert.Error(t, err)
}

func TestReadXLSXSheetIndexOutOfRange(t *testing.T) {
	path := writeTestWorkbook(t, map[string][][]string{
		"Catalog": {{"name"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)
}

func TestReadXLSXMissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	assert.Error(t, err)
}
