package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/fetcher"
	"github.com/campusdata/enrich-cli/internal/model"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import institutions from a CSV or XLSX catalog file",
	Long:  "Reads a catalog file whose header names match institution field names (a 'name' column is required) and upserts the rows. Existing records gain missing values only; populated attributes are never overwritten.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		header, rows, err := readCatalogFile(importFilePath)
		if err != nil {
			return err
		}

		unis, skipped, err := parseCatalogRows(header, rows)
		if err != nil {
			return err
		}
		if len(unis) == 0 {
			return eris.Errorf("no importable rows in %s", importFilePath)
		}

		n, err := st.UpsertUniversities(ctx, unis)
		if err != nil {
			return eris.Wrap(err, "import upsert")
		}

		zap.L().Info("import complete",
			zap.Int("upserted", n),
			zap.Int("skipped", skipped),
			zap.String("file", importFilePath),
		)
		fmt.Printf("Imported %d institutions (%d rows skipped)\n", n, skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX catalog file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

// readCatalogFile reads a catalog file by extension, returning the header
// row and the data rows.
func readCatalogFile(path string) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, eris.Wrap(err, "import: open csv")
		}
		defer f.Close() //nolint:errcheck
		return fetcher.ReadCSV(f, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})
	case ".xlsx":
		rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, nil, err
		}
		if len(rows) == 0 {
			return nil, nil, eris.Errorf("import: %s is empty", path)
		}
		return rows[0], rows[1:], nil
	default:
		return nil, nil, eris.Errorf("import: unsupported file type %q", filepath.Ext(path))
	}
}

// parseCatalogRows maps rows onto institution records using the header.
// Columns whose names are not known fields are ignored; rows without a name
// or with unparseable cells are skipped with a warning.
func parseCatalogRows(header []string, rows [][]string) ([]model.University, int, error) {
	nameCol := -1
	fieldCols := make(map[int]model.Field)
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		if col == "name" {
			nameCol = i
			continue
		}
		f := model.Field(col)
		if _, known := model.MetaFor(f); known {
			fieldCols[i] = f
		}
	}
	if nameCol < 0 {
		return nil, 0, eris.New("import: header has no name column")
	}

	var unis []model.University
	skipped := 0
	for rowNum, row := range rows {
		if nameCol >= len(row) || strings.TrimSpace(row[nameCol]) == "" {
			skipped++
			continue
		}
		u := model.University{Name: strings.TrimSpace(row[nameCol])}

		ok := true
		for i, f := range fieldCols {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			if err := u.SetField(f, cell); err != nil {
				zap.L().Warn("skipping unparseable row",
					zap.Int("row", rowNum+1),
					zap.String("name", u.Name),
					zap.String("field", string(f)),
					zap.Error(err))
				ok = false
				break
			}
		}
		if !ok {
			skipped++
			continue
		}
		unis = append(unis, u)
	}
	return unis, skipped, nil
}
