package excel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CatalogSheet is the sheet read from catalog workbooks.
const CatalogSheet = "Stages"

// CatalogRow is one stage line of a catalog file: code in the first column,
// optional title in the second.
type CatalogRow struct {
	Line  int
	Code  string
	Title string
}

// ReadCatalog reads stage rows from an .xlsx or .csv file. The first row is a
// header and is skipped.
func ReadCatalog(path string) ([]CatalogRow, error) {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return readCatalogCSV(path)
	}
	return readCatalogXLSX(path)
}

func readCatalogXLSX(path string) ([]CatalogRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(CatalogSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", CatalogSheet, err)
	}
	return catalogRows(rows), nil
}

func readCatalogCSV(path string) ([]CatalogRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}
	return catalogRows(rows), nil
}

func catalogRows(rows [][]string) []CatalogRow {
	var out []CatalogRow
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		code := strings.TrimSpace(row[0])
		if code == "" {
			continue
		}
		entry := CatalogRow{Line: i + 1, Code: code}
		if len(row) > 1 {
			entry.Title = strings.TrimSpace(row[1])
		}
		out = append(out, entry)
	}
	return out
}
